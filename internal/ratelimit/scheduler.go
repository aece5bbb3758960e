// Package ratelimit admits tasks under a concurrency cap and a minimum spacing
// between admissions.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Defaults applied when the caller does not configure the scheduler.
const (
	DefaultMaxConcurrent = 5
	DefaultMinTime       = 200 * time.Millisecond
)

// ErrInvalidConfig indicates a non-positive concurrency cap or spacing.
var ErrInvalidConfig = errors.New("invalid rate limit configuration")

// Config holds the two admission gates.
type Config struct {
	// MaxConcurrent caps the number of tasks running at once.
	MaxConcurrent int
	// MinTime is the minimum delay between the start of successive admissions.
	MinTime time.Duration
}

// DefaultConfig returns MaxConcurrent=5, MinTime=200ms.
func DefaultConfig() Config {
	return Config{MaxConcurrent: DefaultMaxConcurrent, MinTime: DefaultMinTime}
}

// Validate rejects zero or negative values.
func (c Config) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max concurrent must be positive, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.MinTime <= 0 {
		return fmt.Errorf("%w: min time must be positive, got %s", ErrInvalidConfig, c.MinTime)
	}
	return nil
}

// Task is the unit of work the scheduler admits. It reports its own outcome;
// the scheduler never inspects it.
type Task func(ctx context.Context)

// Admitter is the small interface the batch driver depends on.
type Admitter interface {
	// Admit blocks until task is admitted, then runs it asynchronously.
	// The returned channel is closed when the task returns.
	Admit(ctx context.Context, task Task) (<-chan struct{}, error)
	// Wait blocks until every admitted task has returned.
	Wait()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock overrides the clock used for admission timestamps in logs.
func WithClock(clk func() time.Time) Option {
	return func(s *Scheduler) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// Scheduler is a semaphore + token-bucket admission gate. Admission order
// follows the order of Admit calls.
type Scheduler struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	group   errgroup.Group

	// admitMu serialises admissions so the pacing gate sees them in call order.
	admitMu  sync.Mutex
	inFlight atomic.Int64
	admitted atomic.Int64

	logger zerolog.Logger
	clock  func() time.Time
}

// New builds a Scheduler from cfg.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: rate.NewLimiter(rate.Every(cfg.MinTime), 1),
		logger:  zerolog.Nop(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Admit waits for a concurrency slot and then for the pacing gate, and starts
// task in its own goroutine. If ctx ends first, Admit returns ctx.Err() and the
// task never runs.
func (s *Scheduler) Admit(ctx context.Context, task Task) (<-chan struct{}, error) {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	// The slot is held before pacing starts, so a slow slot cannot shrink the
	// gap to the previous admission.
	if err := s.limiter.Wait(ctx); err != nil {
		s.sem.Release(1)
		return nil, err
	}

	seq := s.admitted.Add(1)
	running := s.inFlight.Add(1)
	s.logger.Debug().
		Int64("admission", seq).
		Int64("in_flight", running).
		Time("admitted_at", s.clock()).
		Msg("task admitted")

	done := make(chan struct{})
	s.group.Go(func() error {
		defer close(done)
		defer s.sem.Release(1)
		defer s.inFlight.Add(-1)

		task(ctx)
		return nil
	})
	return done, nil
}

// Wait blocks until all admitted tasks have returned.
func (s *Scheduler) Wait() {
	_ = s.group.Wait()
}

// InFlight reports how many admitted tasks are still running.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Admitted reports how many tasks have been admitted so far.
func (s *Scheduler) Admitted() int {
	return int(s.admitted.Load())
}

var _ Admitter = (*Scheduler)(nil)
