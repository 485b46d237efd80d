package batch

import (
	"errors"
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		size      int
		wantSizes []int
	}{
		{name: "empty", n: 0, size: 3, wantSizes: []int{}},
		{name: "exact multiple", n: 6, size: 3, wantSizes: []int{3, 3}},
		{name: "remainder", n: 250, size: 100, wantSizes: []int{100, 100, 50}},
		{name: "smaller than batch", n: 2, size: 2000, wantSizes: []int{2}},
		{name: "batch of one", n: 3, size: 1, wantSizes: []int{1, 1, 1}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			items := make([]int, test.n)
			for i := range items {
				items[i] = i
			}

			batches, err := Split(items, test.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(batches) != Count(test.n, test.size) {
				t.Errorf("expected %d batches, got %d", Count(test.n, test.size), len(batches))
			}

			sizes := make([]int, len(batches))
			joined := make([]int, 0, test.n)
			for i, b := range batches {
				sizes[i] = len(b)
				joined = append(joined, b...)
			}
			if !reflect.DeepEqual(sizes, test.wantSizes) {
				t.Errorf("expected batch sizes %v, got %v", test.wantSizes, sizes)
			}
			if !reflect.DeepEqual(joined, items) {
				t.Errorf("concatenated batches %v differ from input %v", joined, items)
			}
		})
	}
}

func TestSplit_AppendDoesNotClobber(t *testing.T) {
	items := []int{1, 2, 3, 4}
	batches, err := Split(items, 2)
	if err != nil {
		t.Fatal(err)
	}
	_ = append(batches[0], 99)
	if items[2] != 3 {
		t.Errorf("appending to a batch overwrote the next batch: %v", items)
	}
}

func TestSplit_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := Split([]string{"a"}, size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("size %d: expected ErrInvalidSize, got %v", size, err)
		}
	}
}
