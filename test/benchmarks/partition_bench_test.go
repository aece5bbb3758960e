package benchmarks

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rshade/bulkload/internal/engine/batch"
	"github.com/rshade/bulkload/pkg/uploader"
)

func BenchmarkPartition(b *testing.B) {
	items := make([]int, 100_000)
	for i := range items {
		items[i] = i
	}

	for _, size := range []int{1, 10, 100, 1000} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := batch.Partition(items, size); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRun(b *testing.B) {
	items := make([]int, 1000)
	upload := func(_ context.Context, chunk []int) (uploader.UploadResult, error) {
		return uploader.UploadResult{IDs: make([]string, len(chunk))}, nil
	}

	b.ReportAllocs()
	for b.Loop() {
		_, err := uploader.Run(context.Background(), items, upload,
			uploader.WithBatchSize(50),
			uploader.WithRateLimit(8, time.Microsecond),
			uploader.WithConsole(io.Discard, io.Discard),
		)
		if err != nil {
			b.Fatal(err)
		}
	}
}
