package converter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/smazurov/pdfnode/internal/events"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

const echoConverter = `#!/bin/sh
read -r args
printf '%s\n' "$args"
cat
`

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) snapshot() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Event(nil), b.events...)
}

func newTestService(t *testing.T, script string) (*Service, *recordingBus) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake converters are shell scripts")
	}

	binary := filepath.Join(t.TempDir(), "wkhtmltopdf")
	if script != "" {
		if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
			t.Fatalf("failed to write fake converter: %v", err)
		}
	}

	pool := process.NewPool(&process.PoolOptions{
		Binary:          binary,
		MonitorInterval: process.MaxMonitorInterval,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(pool.Shutdown)

	bus := &recordingBus{}
	return NewService(pool, bus), bus
}

func TestConvertAppliesDefaults(t *testing.T) {
	svc, bus := newTestService(t, echoConverter)
	ctx := WithRequestID(context.Background(), "req-1")

	overrides := wkhtmltopdf.NewOptions(
		wkhtmltopdf.Option{Key: "pageSize", Value: "Letter"},
		wkhtmltopdf.Option{Key: "orientation", Value: "Landscape"},
	)
	stream, err := svc.Convert(ctx, strings.NewReader("<p>hi</p>"), overrides)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	defer stream.Close()

	out, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	want := `--page-size "Letter" --disable-javascript --javascript-delay 0 --allow "fonts" --disable-local-file-access --orientation "Landscape" - -` +
		"\n<p>hi</p>"
	if diff := cmp.Diff(want, string(out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	evs := bus.snapshot()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(evs), evs)
	}
	completed, ok := evs[0].(events.ConversionCompletedEvent)
	if !ok {
		t.Fatalf("expected ConversionCompletedEvent, got %T", evs[0])
	}
	if completed.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", completed.RequestID)
	}
	if completed.Bytes != int64(len(out)) {
		t.Errorf("Bytes = %d, want %d", completed.Bytes, len(out))
	}
	if completed.WorkerID != stream.WorkerID() {
		t.Errorf("WorkerID = %d, want %d", completed.WorkerID, stream.WorkerID())
	}
}

func TestConvertSpawnFailure(t *testing.T) {
	svc, bus := newTestService(t, "")

	_, err := svc.Convert(context.Background(), strings.NewReader("x"), wkhtmltopdf.Options{})
	if !errors.Is(err, process.ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}

	evs := bus.snapshot()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if _, ok := evs[0].(events.ConversionFailedEvent); !ok {
		t.Errorf("expected ConversionFailedEvent, got %T", evs[0])
	}
}

func TestStreamClosedEarlyReportsAbort(t *testing.T) {
	svc, bus := newTestService(t, echoConverter)

	pr, pw := io.Pipe()
	defer pw.Close()

	stream, err := svc.Convert(context.Background(), pr, wkhtmltopdf.Options{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// A second Close must not report twice.
	_ = stream.Close()

	evs := bus.snapshot()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	failed, ok := evs[0].(events.ConversionFailedEvent)
	if !ok {
		t.Fatalf("expected ConversionFailedEvent, got %T", evs[0])
	}
	if failed.Error != ErrAborted.Error() {
		t.Errorf("Error = %q, want %q", failed.Error, ErrAborted.Error())
	}
}

func TestRequestID(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}

	id := NewRequestID()
	if len(id) != 36 {
		t.Errorf("unexpected request id %q", id)
	}
	if got := RequestIDFromContext(WithRequestID(context.Background(), id)); got != id {
		t.Errorf("RequestIDFromContext = %q, want %q", got, id)
	}
}

func TestPoolHooksPublish(t *testing.T) {
	bus := &recordingBus{}
	onStateChange, onStats := PoolHooks(bus)

	onStateChange(4, process.StateRunning, process.StateDead, errors.New("exit status 1"))
	onStats(process.Stats{Idle: 2, Running: 1, MaxIdle: 2})

	evs := bus.snapshot()
	want := []events.Event{
		events.WorkerStateChangedEvent{WorkerID: 4, OldState: "running", NewState: "dead", Error: "exit status 1"},
		events.PoolStatsEvent{Idle: 2, Running: 1, MaxIdle: 2},
	}
	ignoreTime := cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".Timestamp"
	}, cmp.Ignore())
	if diff := cmp.Diff(want, evs, ignoreTime); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}
