package batch

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// TimestampLayout is the layout of progress and error-log timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in UTC with second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// RunCounters holds the outcome counters of a single run.
type RunCounters struct {
	Success int
	Failure int
	Total   int
}

// Settled returns the number of batches recorded so far.
func (c RunCounters) Settled() int {
	return c.Success + c.Failure
}

// Percentages returns the rounded success and failure shares of Total and
// the remainder. The two shares are rounded independently, so the remainder can
// drift by a point from the item-level count.
func (c RunCounters) Percentages() (success, failure, remaining int) {
	if c.Total == 0 {
		return 0, 0, percentMultiplier
	}
	success = roundPercent(c.Success, c.Total)
	failure = roundPercent(c.Failure, c.Total)
	return success, failure, percentMultiplier - success - failure
}

// roundPercent rounds half up.
func roundPercent(n, total int) int {
	return int(math.Floor(float64(n)/float64(total)*percentMultiplier + 0.5))
}

// ProgressLine formats the counters as a timestamped progress notification.
func (c RunCounters) ProgressLine(now time.Time) string {
	s, f, r := c.Percentages()
	return fmt.Sprintf("[%s] Progress: %d%% successfully uploaded, %d%% failed, %d%% remaining.",
		FormatTimestamp(now), s, f, r)
}

// Tracker records batch outcomes for one run.
// It is safe for concurrent use.
type Tracker struct {
	counters  RunCounters
	startTime time.Time
	lastAt    time.Time

	// mu protects counters and lastAt.
	mu sync.RWMutex
}

// NewTracker creates a tracker for totalBatches batches.
func NewTracker(totalBatches int) *Tracker {
	now := time.Now()
	return &Tracker{
		counters:  RunCounters{Total: totalBatches},
		startTime: now,
		lastAt:    now,
	}
}

// RecordSuccess counts one fully uploaded batch and returns the new counters.
func (t *Tracker) RecordSuccess() RunCounters {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters.Success++
	t.lastAt = time.Now()
	return t.counters
}

// RecordFailure counts one failed batch and returns the new counters.
func (t *Tracker) RecordFailure() RunCounters {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters.Failure++
	t.lastAt = time.Now()
	return t.counters
}

// Counters returns a copy of the current counters.
func (t *Tracker) Counters() RunCounters {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters
}

// IsComplete returns true once every batch has been recorded.
func (t *Tracker) IsComplete() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counters.Settled() >= t.counters.Total
}

// Elapsed returns the time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// BatchesPerSecond returns the settlement rate so far.
func (t *Tracker) BatchesPerSecond() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	elapsed := time.Since(t.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(t.counters.Settled()) / elapsed
}

// Snapshot returns an immutable view of the tracker state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, f, r := t.counters.Percentages()
	return Snapshot{
		Counters:       t.counters,
		StartTime:      t.startTime,
		LastUpdateTime: t.lastAt,
		SuccessPercent: s,
		FailurePercent: f,
		RemainPercent:  r,
		Elapsed:        time.Since(t.startTime),
	}
}

// Snapshot is an immutable copy of tracker state.
type Snapshot struct {
	Counters       RunCounters
	StartTime      time.Time
	LastUpdateTime time.Time
	SuccessPercent int
	FailurePercent int
	RemainPercent  int
	Elapsed        time.Duration
}
