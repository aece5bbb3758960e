// Package batch splits item sequences into fixed-size batches and tracks
// per-run outcome counters.
//
// Key pieces:
//   - Partition: contiguous, order-preserving chunks (default 100 items per batch)
//   - Tracker: success/failure counters owned by a single run, with the
//     percentage math and the timestamped progress line
//   - FormatTimestamp: the UTC, second-precision stamp shared by progress lines
//     and the error log
//
// Batches are sub-slices of the caller's input, so partitioning costs
// O(number of batches) regardless of item size.
package batch
