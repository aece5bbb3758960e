//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/bulkload/internal/ingest"
	"github.com/rshade/bulkload/internal/metrics"
	"github.com/rshade/bulkload/pkg/uploader"
	"github.com/rshade/bulkload/plugins/mockapi"
)

func writeNDJSON(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	for i := range n {
		fmt.Fprintf(&b, "{\"id\":%d,\"name\":\"item-%d\"}\n", i, i)
	}
	path := filepath.Join(t.TempDir(), "items.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// TestUpload_EndToEnd loads a file, uploads it against the flaky mock API and
// checks counters, the error log and the metrics agree.
func TestUpload_EndToEnd(t *testing.T) {
	items, err := ingest.LoadItems(writeNDJSON(t, 250))
	require.NoError(t, err)
	require.Len(t, items, 250)

	api := &mockapi.Client{FailEvery: 5, DropEvery: 7, Latency: 2 * time.Millisecond}
	recorder := metrics.NewPrometheusRecorder()
	logFile := filepath.Join(t.TempDir(), "errors.log")
	var console bytes.Buffer

	rep, err := uploader.Run[json.RawMessage](context.Background(), items, api.Upload,
		uploader.WithBatchSize(10),
		uploader.WithRateLimit(4, time.Millisecond),
		uploader.WithLogFile(logFile),
		uploader.WithConsole(&console, &console),
		uploader.WithMetrics(recorder),
	)
	require.NoError(t, err)

	assert.Equal(t, 25, rep.Counters.Total)
	assert.Equal(t, 25, api.Calls())
	assert.Equal(t, 25, rep.Counters.Settled())

	// calls 5,10,15,20,25 fail; calls 7,14,21 drop an identifier.
	assert.Equal(t, 8, rep.Counters.Failure)
	assert.Equal(t, 17, rep.Counters.Success)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 8, strings.Count(string(data), "] Error in batch "))
	assert.Equal(t, 5, strings.Count(string(data), mockapi.ErrSimulatedFailure.Error()))
	assert.Equal(t, 3, strings.Count(string(data), uploader.ErrIdentifierMismatch.Error()))

	assert.Equal(t, 25, strings.Count(console.String(), "Progress: "))
	assert.Contains(t, console.String(), "Progress: 68% successfully uploaded, 32% failed, 0% remaining.")

	assert.Equal(t, 3, testutil.CollectAndCount(recorder.GetRegistry(), "bulkload_batches_total"))
}

func TestUpload_CancelledMidRun(t *testing.T) {
	items, err := ingest.LoadItems(writeNDJSON(t, 40))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	api := &mockapi.Client{Latency: 5 * time.Millisecond}
	var console bytes.Buffer
	rep, err := uploader.Run[json.RawMessage](ctx, items, api.Upload,
		uploader.WithBatchSize(1),
		uploader.WithRateLimit(2, 5*time.Millisecond),
		uploader.WithConsole(&console, &console),
	)
	require.NoError(t, err)

	assert.Equal(t, 40, rep.Counters.Settled())
	assert.Positive(t, rep.Counters.Failure)
	assert.ErrorIs(t, rep.Err(), context.DeadlineExceeded)
}
