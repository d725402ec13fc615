package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/pdfnode/internal/config"
	"github.com/smazurov/pdfnode/internal/converter"
	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

// Job is one input file and where its PDF goes.
type Job struct {
	Input  string
	Output string
}

// CreateConvertCmd creates the convert command.
func CreateConvertCmd() *cobra.Command {
	var output string
	var jobs int
	var binary string
	var timeout time.Duration
	var options []string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "convert [flags] input.html...",
		Short: "Convert HTML files to PDF without starting the server",
		Long: `Converts each input file to PDF using wkhtmltopdf. By default the PDF is written next to ` +
			`its input with a .pdf extension. Files are converted concurrently, limited by --jobs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if f := cmd.Flag("config"); f != nil {
				configPath = f.Value.String()
			}
			loggingConfig := config.LoadLoggingConfig(configPath)
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			planned, err := PlanJobs(args, output)
			if err != nil {
				return err
			}

			overrides, err := ParseOptionFlags(options)
			if err != nil {
				return err
			}

			// No pre-warming: every worker is spawned for a known input
			pool := process.NewPool(&process.PoolOptions{
				Binary:          binary,
				MaxIdle:         0,
				MonitorInterval: process.MaxMonitorInterval,
				ConvertTimeout:  timeout,
				Logger:          logging.GetLogger("pool"),
			})
			defer pool.Shutdown()

			svc := converter.NewService(pool, nil)
			return ConvertFiles(cmd.Context(), svc, overrides, jobs, planned)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (single input only)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Maximum concurrent conversions")
	cmd.Flags().StringVar(&binary, "binary", process.DefaultBinary, "wkhtmltopdf executable")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-file conversion timeout (0 disables)")
	cmd.Flags().StringArrayVarP(&options, "option", "O", nil, "Converter option as key=value, e.g. page-size=Letter (repeatable)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// PlanJobs pairs each input with its output path.
func PlanJobs(inputs []string, output string) ([]Job, error) {
	if output != "" && len(inputs) > 1 {
		return nil, errors.New("--output requires exactly one input")
	}

	planned := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		out := output
		if out == "" {
			out = strings.TrimSuffix(in, filepath.Ext(in)) + ".pdf"
		}
		if filepath.Clean(out) == filepath.Clean(in) {
			return nil, fmt.Errorf("output for %s would overwrite the input", in)
		}
		planned = append(planned, Job{Input: in, Output: out})
	}
	return planned, nil
}

// ParseOptionFlags turns repeated key=value flags into converter options.
// A bare key sets a boolean flag.
func ParseOptionFlags(flags []string) (wkhtmltopdf.Options, error) {
	params := make(map[string][]string, len(flags))
	for _, f := range flags {
		key, value, _ := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return wkhtmltopdf.Options{}, fmt.Errorf("invalid option %q", f)
		}
		params[key] = append(params[key], strings.TrimSpace(value))
	}
	return wkhtmltopdf.ParseOverrides(params)
}

// ConvertFiles converts all jobs, at most limit at a time. The first failure
// cancels the conversions that have not finished yet.
func ConvertFiles(ctx context.Context, svc *converter.Service, overrides wkhtmltopdf.Options, limit int, planned []Job) error {
	logger := logging.GetLogger("converter")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for _, job := range planned {
		g.Go(func() error {
			start := time.Now()
			n, err := convertFile(ctx, svc, overrides, job)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Input, err)
			}
			logger.Info("Converted file", "input", job.Input, "output", job.Output,
				"size", n, "duration", time.Since(start))
			return nil
		})
	}

	return g.Wait()
}

// convertFile writes to a temporary file next to the output and renames it
// into place, so a failed conversion never leaves a partial PDF behind.
func convertFile(ctx context.Context, svc *converter.Service, overrides wkhtmltopdf.Options, job Job) (int64, error) {
	in, err := os.Open(job.Input)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	ctx = logging.WithLogger(ctx, logging.GetLogger("converter").With("input", job.Input))
	stream, err := svc.Convert(ctx, in, overrides)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	tmp, err := os.CreateTemp(filepath.Dir(job.Output), ".pdfnode-*.pdf")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return 0, err
	}

	n, err := io.Copy(tmp, stream)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), job.Output); err != nil {
		return n, fmt.Errorf("failed to write output: %w", err)
	}
	return n, nil
}
