package batch

import (
	"errors"
	"fmt"
)

var ErrInvalidSize = errors.New("batch size must be positive")

// Split cuts items into consecutive batches of size items, the last batch
// holding whatever remains. The batches share the backing array of items.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	batches := make([][]T, 0, Count(len(items), size))
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end:end])
	}
	return batches, nil
}

// Count returns ceil(n/size). size must be positive.
func Count(n, size int) int {
	return (n + size - 1) / size
}
