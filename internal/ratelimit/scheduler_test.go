package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultConfig()},
		{name: "zero concurrency", cfg: Config{MaxConcurrent: 0, MinTime: time.Millisecond}, wantErr: true},
		{name: "negative concurrency", cfg: Config{MaxConcurrent: -2, MinTime: time.Millisecond}, wantErr: true},
		{name: "zero min time", cfg: Config{MaxConcurrent: 1}, wantErr: true},
		{name: "negative min time", cfg: Config{MaxConcurrent: 1, MinTime: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				_, newErr := New(tt.cfg)
				require.ErrorIs(t, newErr, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 200*time.Millisecond, cfg.MinTime)
}

func TestSchedulerConcurrencyCap(t *testing.T) {
	s, err := New(Config{MaxConcurrent: 3, MinTime: time.Millisecond})
	require.NoError(t, err)

	var running, peak atomic.Int64
	for range 12 {
		_, admitErr := s.Admit(context.Background(), func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			running.Add(-1)
		})
		require.NoError(t, admitErr)
		assert.LessOrEqual(t, s.InFlight(), 3)
	}
	s.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(1), "admitted tasks should overlap")
	assert.Equal(t, 12, s.Admitted())
	assert.Equal(t, 0, s.InFlight())
}

func TestSchedulerMinTime(t *testing.T) {
	const minTime = 20 * time.Millisecond
	const tolerance = 3 * time.Millisecond

	s, err := New(Config{MaxConcurrent: 10, MinTime: minTime})
	require.NoError(t, err)

	var mu sync.Mutex
	var starts []time.Time
	for range 5 {
		_, admitErr := s.Admit(context.Background(), func(context.Context) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
		require.NoError(t, admitErr)
	}
	s.Wait()

	require.Len(t, starts, 5)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		assert.GreaterOrEqual(t, gap, minTime-tolerance, "gap %d too short", i)
	}
}

func TestSchedulerAdmissionOrder(t *testing.T) {
	s, err := New(Config{MaxConcurrent: 1, MinTime: time.Millisecond})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	for i := range 6 {
		_, admitErr := s.Admit(context.Background(), func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		require.NoError(t, admitErr)
	}
	s.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
}

func TestSchedulerDoneChannel(t *testing.T) {
	s, err := New(Config{MaxConcurrent: 2, MinTime: time.Millisecond})
	require.NoError(t, err)

	var finished atomic.Bool
	done, err := s.Admit(context.Background(), func(context.Context) {
		time.Sleep(5 * time.Millisecond)
		finished.Store(true)
	})
	require.NoError(t, err)

	select {
	case <-done:
		assert.True(t, finished.Load())
	case <-time.After(time.Second):
		t.Fatal("done channel was not closed")
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	s, err := New(Config{MaxConcurrent: 1, MinTime: time.Millisecond})
	require.NoError(t, err)

	release := make(chan struct{})
	_, err = s.Admit(context.Background(), func(context.Context) { <-release })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	_, err = s.Admit(ctx, func(context.Context) { ran = true })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	s.Wait()
	assert.False(t, ran)
	assert.Equal(t, 1, s.Admitted())
}
