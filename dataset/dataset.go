// Package dataset reads and writes the CSV files that sit between pipeline
// stages. Columns are looked up by header name, so files from older runs that
// lack the ID column still load.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"quote-codex/quote"
)

const (
	CalendarFile = "calendar_quotes.csv"
	ListingFile  = "goodreads_quotes.csv"
	QuotesFile   = "quotes.csv"
	ReducedFile  = "quotes_with_embeddings.csv"
)

const (
	ColumnID          = "ID"
	ColumnQuote       = "Quote"
	ColumnAuthor      = "Author"
	ColumnBookTitle   = "Book Title"
	ColumnEmbeddings  = "Embeddings"
	ColumnEmbedding2D = "Embeddings_2D"
	ColumnEmbedding3D = "Embeddings_3D"
)

var (
	CalendarColumns  = []string{ColumnQuote, ColumnAuthor}
	ListingColumns   = []string{ColumnQuote, ColumnAuthor, ColumnBookTitle}
	CollectedColumns = []string{ColumnID, ColumnQuote, ColumnAuthor, ColumnBookTitle}
	EmbeddedColumns  = []string{ColumnID, ColumnQuote, ColumnAuthor, ColumnBookTitle, ColumnEmbeddings}
	ReducedColumns   = []string{ColumnID, ColumnQuote, ColumnAuthor, ColumnBookTitle, ColumnEmbedding2D, ColumnEmbedding3D}
)

var ErrMissingColumn = errors.New("missing required column")

// Write stores records at path with the given columns, in that order.
func Write(path string, records []quote.Record, columns []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := Encode(file, records, columns); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

// Encode writes a header row and one row per record to w.
func Encode(w io.Writer, records []quote.Record, columns []string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for i, r := range records {
		for j, column := range columns {
			value, err := cell(r, column)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			row[j] = value
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func cell(r quote.Record, column string) (string, error) {
	switch column {
	case ColumnID:
		return r.ID, nil
	case ColumnQuote:
		return r.Quote, nil
	case ColumnAuthor:
		return r.Author, nil
	case ColumnBookTitle:
		return r.BookTitle, nil
	case ColumnEmbeddings:
		return FormatVector(r.Embedding, 32), nil
	case ColumnEmbedding2D:
		return FormatVector(r.Embedding2D, 64), nil
	case ColumnEmbedding3D:
		return FormatVector(r.Embedding3D, 64), nil
	}
	return "", fmt.Errorf("unknown column %q", column)
}

// Read loads every record stored at path.
func Read(path string) ([]quote.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	records, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// Decode parses CSV with a header row. Unknown columns are ignored, a Quote
// column is required and rows without an ID take their position as ID.
func Decode(r io.Reader) ([]quote.Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index[ColumnQuote]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnQuote)
	}

	get := func(row []string, column string) string {
		if i, ok := index[column]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var records []quote.Record
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		record := quote.Record{
			ID:        get(row, ColumnID),
			Quote:     get(row, ColumnQuote),
			Author:    get(row, ColumnAuthor),
			BookTitle: get(row, ColumnBookTitle),
		}
		if record.ID == "" {
			record.ID = strconv.Itoa(len(records))
		}
		if record.Embedding, err = ParseVector[float32](get(row, ColumnEmbeddings), 32); err != nil {
			return nil, fmt.Errorf("row %d %s: %w", line, ColumnEmbeddings, err)
		}
		if record.Embedding2D, err = ParseVector[float64](get(row, ColumnEmbedding2D), 64); err != nil {
			return nil, fmt.Errorf("row %d %s: %w", line, ColumnEmbedding2D, err)
		}
		if record.Embedding3D, err = ParseVector[float64](get(row, ColumnEmbedding3D), 64); err != nil {
			return nil, fmt.Errorf("row %d %s: %w", line, ColumnEmbedding3D, err)
		}
		records = append(records, record)
	}

	return records, nil
}
