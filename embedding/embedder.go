package embedding

import (
	"context"
	"errors"
	"fmt"

	"quote-codex/batch"
	"quote-codex/quote"
)

var (
	ErrCountMismatch     = errors.New("embedding count does not match input count")
	ErrDimensionMismatch = errors.New("embedding dimension differs between records")
)

// Embedder turns a batch of texts into one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Progress is told how many records are done after every batch.
type Progress func(done, total int)

// EmbedRecords embeds the quote of every record in batches of batchSize, one
// Embed call per batch, and returns copies of the records with Embedding set.
func EmbedRecords(ctx context.Context, embedder Embedder, records []quote.Record, batchSize int, progress Progress) ([]quote.Record, error) {
	batches, err := batch.Split(records, batchSize)
	if err != nil {
		return nil, err
	}

	out := make([]quote.Record, 0, len(records))
	dimension := 0
	for i, b := range batches {
		texts := make([]string, len(b))
		for j, r := range b {
			texts[j] = r.Quote
		}

		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d of %d: %w", i+1, len(batches), err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("batch %d of %d: %w: sent %d texts, got %d vectors", i+1, len(batches), ErrCountMismatch, len(texts), len(vectors))
		}

		for j, r := range b {
			if dimension == 0 {
				dimension = len(vectors[j])
			}
			if len(vectors[j]) == 0 || len(vectors[j]) != dimension {
				return nil, fmt.Errorf("record %s: %w: expected %d, got %d", r.ID, ErrDimensionMismatch, dimension, len(vectors[j]))
			}
			r.Embedding = vectors[j]
			out = append(out, r)
		}

		if progress != nil {
			progress(len(out), len(records))
		}
	}

	return out, nil
}
