package uploader

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rshade/bulkload/internal/engine/batch"
	"github.com/rshade/bulkload/internal/logging"
	"github.com/rshade/bulkload/internal/ratelimit"
	"github.com/rshade/bulkload/internal/report"
)

// UploadResult is what the upload function returns for a batch. On full success
// IDs holds one identifier per batch item.
type UploadResult struct {
	IDs []string
}

// UploadFunc uploads one batch. It is called exactly once per batch.
type UploadFunc[T any] func(ctx context.Context, batch []T) (UploadResult, error)

// Counters are the outcome counters of a run.
type Counters struct {
	Success int
	Failure int
	Total   int
}

// Settled returns the number of batches that have completed either way.
func (c Counters) Settled() int {
	return c.Success + c.Failure
}

// Percentages returns the rounded success, failure and remaining shares.
func (c Counters) Percentages() (success, failure, remaining int) {
	return batch.RunCounters(c).Percentages()
}

// FailureRecord pairs a batch with the error it produced.
type FailureRecord[T any] struct {
	// Number is the 1-based batch sequence index.
	Number int
	Items  []T
	Err    *BatchError
	At     time.Time
}

// LogOutcome reports what happened to the error log at the end of a run.
type LogOutcome = report.Outcome

// Error log outcomes.
const (
	LogNone        = report.OutcomeNone
	LogWritten     = report.OutcomeWritten
	LogWriteFailed = report.OutcomeWriteFailed
	LogNoPath      = report.OutcomeNoPath
)

// Report is the result of a completed run.
type Report[T any] struct {
	RunID    string
	Counters Counters
	// Failures are listed in batch order.
	Failures   []FailureRecord[T]
	LogOutcome LogOutcome
	// LogWriteErr is set when the error log could not be written.
	LogWriteErr error
	Elapsed     time.Duration
	// BatchesPerSecond is the settlement rate over the whole run.
	BatchesPerSecond float64
}

// Err aggregates every batch failure, or returns nil if there were none.
func (r *Report[T]) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, f.Err)
	}
	return merr.ErrorOrNil()
}

// OK reports whether every batch succeeded.
func (r *Report[T]) OK() bool {
	return r.Counters.Failure == 0
}

// Run partitions items, uploads each batch through upload under the configured
// rate limit, and reports the outcome. The returned error is non-nil only for
// invalid configuration, in which case upload is never called.
//
// The run ID is taken from ctx when set with logging.ContextWithRunID and
// generated otherwise.
func Run[T any](ctx context.Context, items []T, upload UploadFunc[T], opts ...Option) (*Report[T], error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, fmt.Errorf("%w: upload function is required", ErrInvalidConfiguration)
	}
	var onError func(error, []T)
	if s.onError != nil {
		fn, ok := s.onError.(func(error, []T))
		if !ok {
			return nil, fmt.Errorf("%w: error callback batch type %T does not match items", ErrInvalidConfiguration, s.onError)
		}
		onError = fn
	}

	batches, err := batch.Partition(items, s.batchSize)
	if err != nil {
		return nil, err
	}

	runID := logging.RunIDFromContext(ctx)
	if runID == "" {
		runID = ulid.Make().String()
	}
	logger := s.logger.With().Str("component", "uploader").Str("run_id", runID).Logger()

	sched, err := s.newAdmitter(s.rate, ratelimit.WithLogger(logger), ratelimit.WithClock(s.clock))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	r := &run[T]{
		settings:  s,
		errorHook: onError,
		tracker:   batch.NewTracker(len(batches)),
		logger:    logger,
	}

	logger.Info().
		Int("items", len(items)).
		Int("batches", len(batches)).
		Int("batch_size", s.batchSize).
		Int("max_concurrent", s.rate.MaxConcurrent).
		Dur("min_time", s.rate.MinTime).
		Bool("await_each", s.awaitEach).
		Msg("upload run started")

	for _, b := range batches {
		done, admitErr := sched.Admit(ctx, func(ctx context.Context) {
			r.execute(ctx, b, upload)
		})
		if admitErr != nil {
			r.settle(b, UploadResult{}, admitErr, 0)
			continue
		}
		if s.awaitEach {
			<-done
		}
	}
	sched.Wait()

	return r.finish(runID), nil
}

// run holds the state of one invocation of Run.
type run[T any] struct {
	settings
	errorHook func(error, []T)
	tracker   *batch.Tracker
	logger    zerolog.Logger

	// mu serialises settlement so counters, failures and callbacks are updated
	// one batch at a time.
	mu       sync.Mutex
	failures []FailureRecord[T]
}

// execute calls upload for b. The deferred hook records the batch on every
// path, including a panicking upload.
func (r *run[T]) execute(ctx context.Context, b batch.Batch[T], upload UploadFunc[T]) {
	start := time.Now()
	var (
		res UploadResult
		err error
	)
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Int("batch", b.Number()).Interface("panic", p).Msg("upload panicked")
			err = failureCause(p)
		}
		r.settle(b, res, err, time.Since(start))
	}()

	res, err = upload(ctx, b.Items)
}

// settle classifies the batch outcome, updates the counters and emits progress.
func (r *run[T]) settle(b batch.Batch[T], res UploadResult, cause error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var counters batch.RunCounters
	defer func() {
		r.emitProgress(counters.ProgressLine(r.clock()))
	}()

	var berr *BatchError
	outcome := OutcomeSuccess
	switch {
	case cause != nil:
		outcome = OutcomeTransportFailure
		berr = &BatchError{Kind: KindTransport, Number: b.Number(), Err: cause}
	case len(res.IDs) != b.Len():
		outcome = OutcomeContentFailure
		berr = &BatchError{Kind: KindContent, Number: b.Number(), Err: ErrIdentifierMismatch}
	}
	r.guard("metrics recorder", func() { r.recorder.BatchSettled(outcome, b.Len(), d) })

	if berr == nil {
		counters = r.tracker.RecordSuccess()
		r.logger.Debug().Int("batch", b.Number()).Int("items", b.Len()).Dur("duration", d).Msg("batch uploaded")
		return
	}

	counters = r.tracker.RecordFailure()
	r.failures = append(r.failures, FailureRecord[T]{
		Number: b.Number(),
		Items:  b.Items,
		Err:    berr,
		At:     r.clock(),
	})
	r.logger.Warn().
		Int("batch", b.Number()).
		Str("kind", string(berr.Kind)).
		Int("items", b.Len()).
		Int("ids", len(res.IDs)).
		Err(berr.Err).
		Msg("batch failed")

	if r.errorHook != nil {
		r.guard("error callback", func() { r.errorHook(berr.Err, b.Items) })
	}
}

// emitProgress sends line to the console and the progress callback.
// Must be called with r.mu held.
func (r *run[T]) emitProgress(line string) {
	if r.nativeLogging {
		_, _ = io.WriteString(r.console, line+"\n")
	}
	if r.onProgress != nil {
		r.guard("progress callback", func() { r.onProgress(line) })
	}
}

// guard runs a caller callback; a panic is logged and dropped.
func (r *run[T]) guard(name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("callback", name).Interface("panic", p).Msg("callback panicked")
		}
	}()
	fn()
}

// finish flushes the error report and builds the run Report.
func (r *run[T]) finish(runID string) *Report[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	slices.SortStableFunc(r.failures, func(a, b FailureRecord[T]) int { return a.Number - b.Number })
	entries := make([]report.Entry, len(r.failures))
	for i, f := range r.failures {
		entries[i] = report.Entry{Number: f.Number, Err: f.Err.Err, Items: f.Items, At: f.At}
	}

	rep := &report.Reporter{
		Path:       r.logFile,
		Console:    r.console,
		ErrConsole: r.errConsole,
		Enabled:    r.nativeLogging,
		Logger:     r.logger,
	}
	flushed := rep.Flush(entries)

	if !r.tracker.IsComplete() {
		r.logger.Error().Interface("counters", r.tracker.Counters()).Msg("run finished with unsettled batches")
	}
	snap := r.tracker.Snapshot()
	counters := Counters(snap.Counters)
	rate := r.tracker.BatchesPerSecond()
	r.guard("metrics recorder", func() { r.recorder.RunFinished(counters, snap.Elapsed) })

	r.logger.Info().
		Int("success", counters.Success).
		Int("failure", counters.Failure).
		Int("total", counters.Total).
		Int("success_pct", snap.SuccessPercent).
		Int("failure_pct", snap.FailurePercent).
		Str("log_outcome", string(flushed.Outcome)).
		Dur("elapsed", snap.Elapsed).
		Time("last_settled_at", snap.LastUpdateTime).
		Float64("batches_per_second", rate).
		Msg("upload run finished")

	out := &Report[T]{
		RunID:            runID,
		Counters:         counters,
		Failures:         r.failures,
		LogOutcome:       flushed.Outcome,
		Elapsed:          snap.Elapsed,
		BatchesPerSecond: rate,
	}
	if flushed.WriteErr != nil {
		out.LogWriteErr = flushed.WriteErr
	}
	return out
}
