package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	t.Run("Uneven", func(t *testing.T) {
		batches, err := Partition(items, 10)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, 10, batches[0].Len())
		assert.Equal(t, 10, batches[1].Len())
		assert.Equal(t, 5, batches[2].Len())
		assert.Equal(t, 3, batches[2].Number())
	})

	t.Run("Empty", func(t *testing.T) {
		batches, err := Partition([]int{}, 10)
		require.NoError(t, err)
		assert.Empty(t, batches)
	})

	t.Run("InvalidSize", func(t *testing.T) {
		_, err := Partition(items, 0)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		_, err = Partition(items, -3)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("AppendDoesNotClobberNeighbour", func(t *testing.T) {
		batches, err := Partition(items, 10)
		require.NoError(t, err)
		_ = append(batches[0].Items, -1)
		assert.Equal(t, 10, batches[1].Items[0])
	})
}

func TestBounds(t *testing.T) {
	bounds := Bounds(25, 10)
	require.Len(t, bounds, 3)
	assert.Equal(t, [2]int{0, 10}, bounds[0])
	assert.Equal(t, [2]int{10, 20}, bounds[1])
	assert.Equal(t, [2]int{20, 25}, bounds[2])
	assert.Empty(t, Bounds(0, 10))
	assert.Equal(t, 0, Count(5, 0))
}

func TestPercentages(t *testing.T) {
	tests := []struct {
		name                         string
		counters                     RunCounters
		wantSuccess, wantFail, wantR int
	}{
		{"mixed", RunCounters{Success: 3, Failure: 2, Total: 5}, 60, 40, 0},
		{"thirds", RunCounters{Success: 1, Failure: 1, Total: 3}, 33, 33, 34},
		{"half rounds up", RunCounters{Success: 1, Total: 8}, 13, 0, 87},
		{"nothing settled", RunCounters{Total: 4}, 0, 0, 100},
		{"no batches", RunCounters{}, 0, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f, r := tt.counters.Percentages()
			assert.Equal(t, tt.wantSuccess, s)
			assert.Equal(t, tt.wantFail, f)
			assert.Equal(t, tt.wantR, r)
		})
	}
}

func TestProgressLine(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 3, 4, 7, 8, 9, 987654321, loc)

	line := RunCounters{Success: 3, Failure: 2, Total: 5}.ProgressLine(now)
	assert.Equal(t,
		"[2026-03-04 05:08:09] Progress: 60% successfully uploaded, 40% failed, 0% remaining.",
		line)
}

func TestTracker(t *testing.T) {
	tr := NewTracker(4)
	assert.False(t, tr.IsComplete())

	c := tr.RecordSuccess()
	assert.Equal(t, 1, c.Success)
	c = tr.RecordFailure()
	assert.Equal(t, 1, c.Failure)
	tr.RecordSuccess()
	tr.RecordSuccess()

	assert.True(t, tr.IsComplete())
	assert.Equal(t, RunCounters{Success: 3, Failure: 1, Total: 4}, tr.Counters())
	assert.Greater(t, tr.BatchesPerSecond(), 0.0)

	snap := tr.Snapshot()
	assert.Equal(t, 75, snap.SuccessPercent)
	assert.Equal(t, 25, snap.FailurePercent)
	assert.Equal(t, 0, snap.RemainPercent)
	assert.False(t, snap.LastUpdateTime.Before(snap.StartTime))
}
