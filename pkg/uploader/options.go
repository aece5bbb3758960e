package uploader

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/bulkload/internal/engine/batch"
	"github.com/rshade/bulkload/internal/ratelimit"
)

// Defaults used when an option is not supplied.
const (
	DefaultBatchSize     = batch.DefaultBatchSize
	DefaultMaxConcurrent = ratelimit.DefaultMaxConcurrent
	DefaultMinTime       = ratelimit.DefaultMinTime
)

// Option configures a run.
type Option func(*settings)

type settings struct {
	batchSize     int
	rate          ratelimit.Config
	onError       any
	onProgress    func(line string)
	nativeLogging bool
	logFile       string
	console       io.Writer
	errConsole    io.Writer
	logger        zerolog.Logger
	recorder      Recorder
	clock         func() time.Time
	awaitEach     bool
	newAdmitter   admitterFactory

	// errs collects option errors; they are reported before any upload.
	errs []error
}

func defaultSettings() settings {
	return settings{
		batchSize:     DefaultBatchSize,
		rate:          ratelimit.DefaultConfig(),
		nativeLogging: true,
		console:       os.Stdout,
		errConsole:    os.Stderr,
		logger:        zerolog.Nop(),
		recorder:      nopRecorder{},
		clock:         time.Now,
		newAdmitter:   newScheduler,
	}
}

// admitterFactory builds the admission gate for a run.
type admitterFactory func(cfg ratelimit.Config, opts ...ratelimit.Option) (ratelimit.Admitter, error)

func newScheduler(cfg ratelimit.Config, opts ...ratelimit.Option) (ratelimit.Admitter, error) {
	s, err := ratelimit.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithBatchSize sets the number of items per batch. Values below 1 are invalid.
func WithBatchSize(n int) Option {
	return func(s *settings) {
		if err := batch.ValidateSize(n); err != nil {
			s.errs = append(s.errs, err)
			return
		}
		s.batchSize = n
	}
}

// WithRateLimit sets both the concurrency cap and the minimum spacing between
// admissions.
func WithRateLimit(maxConcurrent int, minTime time.Duration) Option {
	return func(s *settings) {
		s.rate = ratelimit.Config{MaxConcurrent: maxConcurrent, MinTime: minTime}
	}
}

// WithMaxConcurrent overrides only the concurrency cap.
func WithMaxConcurrent(n int) Option {
	return func(s *settings) { s.rate.MaxConcurrent = n }
}

// WithMinTime overrides only the minimum spacing between admissions.
func WithMinTime(d time.Duration) Option {
	return func(s *settings) { s.rate.MinTime = d }
}

// WithOnError registers a callback invoked once per failed batch with the
// underlying cause and the batch items. T must match the run's item type.
func WithOnError[T any](fn func(err error, batch []T)) Option {
	return func(s *settings) {
		if fn != nil {
			s.onError = fn
		}
	}
}

// WithOnProgress registers a callback invoked with every progress line,
// whether or not native logging is enabled.
func WithOnProgress(fn func(line string)) Option {
	return func(s *settings) { s.onProgress = fn }
}

// WithNativeLogging toggles console progress and summary output. Default true.
func WithNativeLogging(enabled bool) Option {
	return func(s *settings) { s.nativeLogging = enabled }
}

// WithLogFile sets where the aggregated failure log is written.
func WithLogFile(path string) Option {
	return func(s *settings) { s.logFile = path }
}

// WithConsole replaces the console sinks (stdout and stderr by default).
func WithConsole(out, errOut io.Writer) Option {
	return func(s *settings) {
		if out != nil {
			s.console = out
		}
		if errOut != nil {
			s.errConsole = errOut
		}
	}
}

// WithLogger sets the structured diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the clock used for progress and error-log timestamps.
func WithClock(clk func() time.Time) Option {
	return func(s *settings) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithAwaitEach makes the driver wait for each batch to settle before admitting
// the next one, so at most one upload is ever in flight.
func WithAwaitEach(enabled bool) Option {
	return func(s *settings) { s.awaitEach = enabled }
}

// validate reports the first configuration problem, if any.
func (s *settings) validate() error {
	if len(s.errs) > 0 {
		return s.errs[0]
	}
	if err := s.rate.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}
