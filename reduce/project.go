package reduce

import (
	"fmt"

	"quote-codex/quote"
)

// Project fits a 2-D and a 3-D projection over the embeddings of all records
// and returns copies carrying the projected points. The high-dimensional
// vectors are dropped from the copies.
func Project(records []quote.Record, opts Options) ([]quote.Record, error) {
	dimension := quote.Dimension(records)
	data := make([][]float64, len(records))
	for i, r := range records {
		if len(r.Embedding) == 0 || len(r.Embedding) != dimension {
			return nil, fmt.Errorf("record %s has %d embedding values, expected %d", r.ID, len(r.Embedding), dimension)
		}
		row := make([]float64, dimension)
		for j, v := range r.Embedding {
			row[j] = float64(v)
		}
		data[i] = row
	}

	opts.Components = 2
	points2D, err := Fit(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit 2-D projection: %w", err)
	}
	opts.Components = 3
	points3D, err := Fit(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fit 3-D projection: %w", err)
	}

	out := make([]quote.Record, len(records))
	for i, r := range records {
		r.Embedding = nil
		r.Embedding2D = points2D[i]
		r.Embedding3D = points3D[i]
		out[i] = r
	}
	return out, nil
}
