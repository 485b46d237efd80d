package quote

import (
	"errors"
	"strconv"
)

var ErrNoRecords = errors.New("no quote records")

// Record is a single quote as it moves through the pipeline. Columns are only
// ever added by later stages, never removed from the record itself.
type Record struct {
	ID        string
	Quote     string
	Author    string
	BookTitle string

	Embedding   []float32
	Embedding2D []float64
	Embedding3D []float64
}

// AssignIDs gives every record without an ID its zero-based position as an ID.
// It runs once, after normalization, so IDs stay stable across later stages.
func AssignIDs(records []Record) {
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = strconv.Itoa(i)
		}
	}
}

// Dimension returns the embedding length shared by the records, or 0 when
// there are none.
func Dimension(records []Record) int {
	for _, r := range records {
		if len(r.Embedding) > 0 {
			return len(r.Embedding)
		}
	}
	return 0
}
