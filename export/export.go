// Package export writes the static files a browser-side search loads: raw and
// quantized embedding matrices, the quote table and the 3-D projection.
package export

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"quote-codex/quote"
)

const (
	EmbeddingsFile = "embeddings.bin"
	QuantizedFile  = "embeddings-int8.bin"
	QuotesFile     = "quotes.json"
	PointsFile     = "points.json"
	BundleFile     = "bundle.json"
)

var ErrInconsistentDimension = errors.New("embeddings have inconsistent dimensions")

type Options struct {
	Dir      string
	Quantize bool
}

// Bundle describes the exported files.
type Bundle struct {
	Count     int      `json:"count"`
	Dimension int      `json:"dimension"`
	Quantized bool     `json:"quantized"`
	Files     []string `json:"files"`
}

type quoteEntry struct {
	ID        string `json:"id"`
	Quote     string `json:"quote"`
	Author    string `json:"author"`
	BookTitle string `json:"book_title"`
}

type Point struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Author string  `json:"author"`
	Book   string  `json:"book"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

// Write exports embedded records, and the projection of reduced when it is
// not empty. Rows of the matrices follow the order of embedded.
func Write(embedded, reduced []quote.Record, opts Options) (*Bundle, error) {
	if len(embedded) == 0 {
		return nil, quote.ErrNoRecords
	}
	dimension := len(embedded[0].Embedding)
	for _, r := range embedded {
		if len(r.Embedding) == 0 || len(r.Embedding) != dimension {
			return nil, fmt.Errorf("%w: record %s has %d values, expected %d", ErrInconsistentDimension, r.ID, len(r.Embedding), dimension)
		}
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", opts.Dir, err)
	}

	bundle := &Bundle{Count: len(embedded), Dimension: dimension, Quantized: opts.Quantize}

	if err := writeMatrix(filepath.Join(opts.Dir, EmbeddingsFile), embedded, float32Row); err != nil {
		return nil, err
	}
	bundle.Files = append(bundle.Files, EmbeddingsFile)

	if opts.Quantize {
		if err := writeMatrix(filepath.Join(opts.Dir, QuantizedFile), embedded, int8Row); err != nil {
			return nil, err
		}
		bundle.Files = append(bundle.Files, QuantizedFile)
	}

	quotes := make([]quoteEntry, len(embedded))
	for i, r := range embedded {
		quotes[i] = quoteEntry{ID: r.ID, Quote: r.Quote, Author: r.Author, BookTitle: r.BookTitle}
	}
	if err := writeJSON(filepath.Join(opts.Dir, QuotesFile), quotes); err != nil {
		return nil, err
	}
	bundle.Files = append(bundle.Files, QuotesFile)

	if len(reduced) > 0 {
		points, err := Points(reduced)
		if err != nil {
			return nil, err
		}
		if err := writeJSON(filepath.Join(opts.Dir, PointsFile), points); err != nil {
			return nil, err
		}
		bundle.Files = append(bundle.Files, PointsFile)
	}

	if err := writeJSON(filepath.Join(opts.Dir, BundleFile), bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Points lays out the 3-D projection of every record for plotting.
func Points(records []quote.Record) ([]Point, error) {
	points := make([]Point, len(records))
	for i, r := range records {
		if len(r.Embedding3D) != 3 {
			return nil, fmt.Errorf("record %s has no 3-D projection", r.ID)
		}
		points[i] = Point{
			ID:     r.ID,
			Text:   r.Quote,
			Author: r.Author,
			Book:   r.BookTitle,
			X:      r.Embedding3D[0],
			Y:      r.Embedding3D[1],
			Z:      r.Embedding3D[2],
		}
	}
	return points, nil
}

// Quantize maps a value in [-1, 1] to a signed byte. Values outside the
// range are clamped first.
func Quantize(v float32) int8 {
	clamped := math.Max(-1, math.Min(1, float64(v)))
	return int8(math.Round(clamped * 127))
}

func float32Row(v []float32) any {
	return v
}

func int8Row(v []float32) any {
	row := make([]int8, len(v))
	for i, x := range v {
		row[i] = Quantize(x)
	}
	return row
}

// writeMatrix writes one row per record, little-endian, without a header.
func writeMatrix(path string, records []quote.Record, row func([]float32) any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		if err := binary.Write(w, binary.LittleEndian, row(r.Embedding)); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
