package batch

import (
	"errors"
	"fmt"
)

// DefaultBatchSize is the default number of items per batch.
const DefaultBatchSize = 100

// ErrInvalidConfiguration marks configuration that fails a run before any batch
// is processed.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Batch is one contiguous chunk of the input.
type Batch[T any] struct {
	// Index is the 0-based position of the batch in partition order.
	Index int

	// Items is a sub-slice of the caller's input.
	Items []T
}

// Number returns the 1-based sequence index used in user-facing output.
func (b Batch[T]) Number() int {
	return b.Index + 1
}

// Len returns the number of items in the batch.
func (b Batch[T]) Len() int {
	return len(b.Items)
}

// ValidateSize reports whether size is a usable batch size.
func ValidateSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfiguration, size)
	}
	return nil
}

// Partition splits items into ceil(len(items)/size) batches preserving order.
// An empty input yields no batches.
func Partition[T any](items []T, size int) ([]Batch[T], error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}

	bounds := Bounds(len(items), size)
	batches := make([]Batch[T], len(bounds))
	for i, b := range bounds {
		batches[i] = Batch[T]{
			Index: i,
			Items: items[b[0]:b[1]:b[1]],
		}
	}
	return batches, nil
}

// Bounds returns the [start, end) index pairs for totalItems split by size.
// size must be positive.
func Bounds(totalItems, size int) [][2]int {
	total := Count(totalItems, size)
	bounds := make([][2]int, total)

	for i := range total {
		start := i * size
		end := start + size
		if end > totalItems {
			end = totalItems
		}
		bounds[i] = [2]int{start, end}
	}

	return bounds
}

// Count returns the number of batches needed for totalItems.
func Count(totalItems, size int) int {
	if size <= 0 || totalItems <= 0 {
		return 0
	}
	batches := totalItems / size
	if totalItems%size > 0 {
		batches++
	}
	return batches
}
