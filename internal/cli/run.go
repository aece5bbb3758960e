package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/rshade/bulkload/internal/config"
	"github.com/rshade/bulkload/internal/ingest"
	"github.com/rshade/bulkload/internal/logging"
	"github.com/rshade/bulkload/internal/metrics"
	"github.com/rshade/bulkload/pkg/uploader"
	"github.com/rshade/bulkload/plugins/mockapi"
)

// Exit code limits (Unix standard).
const (
	MinExitCode = 0
	MaxExitCode = 255
)

var (
	// ErrExitCodeOutOfRange is returned when --exit-code is outside 0-255.
	ErrExitCodeOutOfRange = errors.New("exit code must be between 0 and 255")
	// ErrMinTimeTooShort is returned when --min-time is below the configured
	// millisecond resolution.
	ErrMinTimeTooShort = errors.New("--min-time must be at least 1ms")
)

// RunFlags holds the flags of the run command.
type RunFlags struct {
	Input         string
	BatchSize     int
	MaxConcurrent int
	MinTime       time.Duration
	LogFile       string
	Quiet         bool
	AwaitEach     bool
	MetricsFile   string
	FailOnError   bool
	ExitCode      int

	// Mock target behaviour.
	FailEvery int
	DropEvery int
	Latency   time.Duration
}

// RunFailedError is returned when --fail-on-error is set and a batch failed.
// main uses ExitCode as the process exit status.
type RunFailedError struct {
	ExitCode int
	Failed   int
	Total    int
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("%d of %d batches failed", e.Failed, e.Total)
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var flags RunFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Upload items from a file in rate-limited batches",
		Long: `Reads items from --input, splits them into batches and uploads every batch
under a concurrency cap and a minimum spacing between batch starts.

Supported inputs: .json (array), .ndjson/.jsonl (one value per line) and
.yaml/.yml (sequence). The upload target is an in-process mock API whose
failure schedule is controlled by --fail-every, --drop-every and --latency.`,
		Example: `  # Upload with defaults (batch size 100, 5 concurrent, 200ms spacing)
  bulkload run --input items.json

  # Simulate a flaky API and keep a failure log
  bulkload run --input items.json --fail-every 4 --log-file errors.log

  # One batch at a time, no console output, non-zero exit on failure
  bulkload run --input items.json --await-each --quiet --fail-on-error --exit-code 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeRun(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.Input, "input", "i", "", "path to the items file (required)")
	f.IntVar(&flags.BatchSize, "batch-size", config.DefaultBatchSize, "items per batch")
	f.IntVar(&flags.MaxConcurrent, "max-concurrent", config.DefaultMaxConcurrent, "maximum batches in flight")
	f.DurationVar(&flags.MinTime, "min-time", time.Duration(config.DefaultMinTimeMS)*time.Millisecond,
		"minimum time between batch starts")
	f.StringVar(&flags.LogFile, "log-file", "", "file that receives the details of failed batches")
	f.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress progress and summary messages")
	f.BoolVar(&flags.AwaitEach, "await-each", false, "wait for each batch to finish before starting the next")
	f.StringVar(&flags.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	f.BoolVar(&flags.FailOnError, "fail-on-error", false, "exit non-zero when any batch fails")
	f.IntVar(&flags.ExitCode, "exit-code", 1, "exit code used by --fail-on-error (0-255)")
	f.IntVar(&flags.FailEvery, "fail-every", 0, "mock API: fail every n-th call (0 disables)")
	f.IntVar(&flags.DropEvery, "drop-every", 0, "mock API: drop one identifier on every n-th call (0 disables)")
	f.DurationVar(&flags.Latency, "latency", 0, "mock API: delay before every response")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// executeRun loads the input, runs the upload and renders the summary.
func executeRun(cmd *cobra.Command, flags RunFlags) error {
	base := logging.FromContext(cmd.Context())
	ctx := logging.ContextWithRunID(cmd.Context(), ulid.Make().String())
	log := logging.FromContext(ctx).With().Str("component", "cli").Str("command", "run").Logger()

	if flags.ExitCode < MinExitCode || flags.ExitCode > MaxExitCode {
		return fmt.Errorf("%w: got %d", ErrExitCodeOutOfRange, flags.ExitCode)
	}

	cfg := configFromContext(ctx)
	if err := applyRunFlags(cmd, cfg, flags); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	items, err := ingest.LoadItemsWithContext(ctx, flags.Input)
	if err != nil {
		return err
	}

	api := &mockapi.Client{
		FailEvery: flags.FailEvery,
		DropEvery: flags.DropEvery,
		Latency:   flags.Latency,
		Logger:    log,
	}
	recorder := metrics.NewPrometheusRecorder()

	opts := uploadOptions(cfg)
	opts = append(opts,
		uploader.WithConsole(cmd.OutOrStdout(), cmd.ErrOrStderr()),
		uploader.WithLogger(base),
		uploader.WithMetrics(recorder),
	)

	rep, err := uploader.Run[json.RawMessage](ctx, items, api.Upload, opts...)
	if err != nil {
		return err
	}

	if flags.MetricsFile != "" {
		if err = recorder.WriteTextfile(flags.MetricsFile); err != nil {
			log.Warn().Err(err).Msg("could not write metrics file")
			cmd.PrintErrf("Warning: %v\n", err)
		}
	}

	if cfg.Upload.GetNativeLogging() {
		if err = RenderSummary(cmd.OutOrStdout(), NewSummary(rep, len(items))); err != nil {
			return err
		}
	}

	if flags.FailOnError && !rep.OK() {
		return &RunFailedError{
			ExitCode: flags.ExitCode,
			Failed:   rep.Counters.Failure,
			Total:    rep.Counters.Total,
		}
	}
	return nil
}

// applyRunFlags copies explicitly set flags over the file and env settings.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags RunFlags) error {
	changed := cmd.Flags().Changed
	if changed("batch-size") {
		cfg.Upload.BatchSize = &flags.BatchSize
	}
	if changed("max-concurrent") {
		cfg.Upload.MaxConcurrent = &flags.MaxConcurrent
	}
	if changed("min-time") {
		if flags.MinTime < time.Millisecond {
			return fmt.Errorf("%w: got %s", ErrMinTimeTooShort, flags.MinTime)
		}
		// Sub-millisecond remainders round up so the spacing is never shortened.
		ms := int((flags.MinTime + time.Millisecond - 1) / time.Millisecond)
		cfg.Upload.MinTimeMS = &ms
	}
	if changed("log-file") {
		cfg.Upload.LogFile = flags.LogFile
	}
	if changed("quiet") {
		native := !flags.Quiet
		cfg.Upload.NativeLogging = &native
	}
	if changed("await-each") {
		cfg.Upload.AwaitEach = flags.AwaitEach
	}
	return nil
}

// uploadOptions maps the upload section to uploader options.
func uploadOptions(cfg *config.Config) []uploader.Option {
	u := cfg.Upload
	return []uploader.Option{
		uploader.WithBatchSize(u.GetBatchSize()),
		uploader.WithRateLimit(u.GetMaxConcurrent(), u.GetMinTime()),
		uploader.WithNativeLogging(u.GetNativeLogging()),
		uploader.WithLogFile(u.LogFile),
		uploader.WithAwaitEach(u.AwaitEach),
	}
}
