package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smazurov/pdfnode/internal/converter"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

const echoConverter = `#!/bin/sh
read -r args
printf '%s\n' "$args"
cat
`

const failingConverter = `#!/bin/sh
read -r args
cat >/dev/null
exit 2
`

func newTestService(t *testing.T, script string) *converter.Service {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake converters are shell scripts")
	}

	binary := filepath.Join(t.TempDir(), "wkhtmltopdf")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake converter: %v", err)
	}

	pool := process.NewPool(&process.PoolOptions{
		Binary:          binary,
		MonitorInterval: process.MaxMonitorInterval,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(pool.Shutdown)
	return converter.NewService(pool, nil)
}

func writeInputs(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("<p>"+name+"</p>"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestPlanJobs(t *testing.T) {
	tests := []struct {
		name    string
		inputs  []string
		output  string
		want    []Job
		wantErr bool
	}{
		{
			name:   "default outputs",
			inputs: []string{"a.html", "dir/b.htm", "c"},
			want: []Job{
				{Input: "a.html", Output: "a.pdf"},
				{Input: "dir/b.htm", Output: "dir/b.pdf"},
				{Input: "c", Output: "c.pdf"},
			},
		},
		{
			name:   "explicit output",
			inputs: []string{"a.html"},
			output: "out/report.pdf",
			want:   []Job{{Input: "a.html", Output: "out/report.pdf"}},
		},
		{
			name:    "output with many inputs",
			inputs:  []string{"a.html", "b.html"},
			output:  "out.pdf",
			wantErr: true,
		},
		{
			name:    "would overwrite input",
			inputs:  []string{"doc.pdf"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanJobs(tt.inputs, tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("jobs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOptionFlags(t *testing.T) {
	opts, err := ParseOptionFlags([]string{"page-size=Letter", "grayscale", "margin_top = 10"})
	if err != nil {
		t.Fatalf("ParseOptionFlags failed: %v", err)
	}

	got := wkhtmltopdf.BuildArgs(opts)
	want := []string{"--grayscale", "--margin-top", "10", "--page-size", `"Letter"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	if _, err := ParseOptionFlags([]string{"=x"}); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := ParseOptionFlags([]string{"no-such-flag=1"}); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestConvertFiles(t *testing.T) {
	svc := newTestService(t, echoConverter)
	inputs := writeInputs(t, "one.html", "two.html", "three.html")

	planned, err := PlanJobs(inputs, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := ConvertFiles(context.Background(), svc, wkhtmltopdf.Options{}, 2, planned); err != nil {
		t.Fatalf("ConvertFiles failed: %v", err)
	}

	const args = `--page-size "A4" --disable-javascript --javascript-delay 0 --allow "fonts" --disable-local-file-access - -`
	for _, job := range planned {
		got, err := os.ReadFile(job.Output)
		if err != nil {
			t.Fatalf("missing output for %s: %v", job.Input, err)
		}
		want := args + "\n<p>" + filepath.Base(job.Input) + "</p>"
		if diff := cmp.Diff(want, string(got)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", job.Output, diff)
		}
	}
}

func TestConvertFilesFailureLeavesNoOutput(t *testing.T) {
	svc := newTestService(t, failingConverter)
	inputs := writeInputs(t, "broken.html")

	planned, err := PlanJobs(inputs, "")
	if err != nil {
		t.Fatal(err)
	}

	err = ConvertFiles(context.Background(), svc, wkhtmltopdf.Options{}, 1, planned)
	if err == nil {
		t.Fatal("expected conversion error")
	}

	if _, statErr := os.Stat(planned[0].Output); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("expected no output file, stat err = %v", statErr)
	}

	entries, _ := os.ReadDir(filepath.Dir(planned[0].Output))
	if len(entries) != 1 {
		t.Errorf("expected only the input to remain, found %d entries", len(entries))
	}
}

func TestConvertFilesMissingInput(t *testing.T) {
	svc := newTestService(t, echoConverter)
	missing := filepath.Join(t.TempDir(), "missing.html")

	err := ConvertFiles(context.Background(), svc, wkhtmltopdf.Options{}, 1, []Job{{Input: missing, Output: missing + ".pdf"}})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
