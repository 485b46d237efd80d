// Package search loads quote embeddings into a vector index and queries it.
package search

import (
	"context"
	"errors"
	"fmt"

	"quote-codex/batch"
	"quote-codex/quote"
)

var (
	ErrIndexNotReady    = errors.New("vector index is not ready")
	ErrMissingEmbedding = errors.New("record has no embedding")
)

// Metadata is stored next to every vector so matches can be shown without a
// second lookup. Missing values are empty strings, never null.
type Metadata struct {
	Quote     string `json:"quote"`
	Author    string `json:"author"`
	BookTitle string `json:"book_title"`
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Index is a vector store keyed by ID. Upserting an existing ID replaces it.
type Index interface {
	// Ensure creates the index when it is absent and waits until it accepts
	// writes.
	Ensure(ctx context.Context) error
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Progress is called after every upserted batch.
type Progress func(done, total int)

// VectorFor builds the index entry for a record.
func VectorFor(r quote.Record) (Vector, error) {
	if len(r.Embedding) == 0 {
		return Vector{}, fmt.Errorf("%w: %s", ErrMissingEmbedding, r.ID)
	}
	return Vector{
		ID:     r.ID,
		Values: r.Embedding,
		Metadata: Metadata{
			Quote:     r.Quote,
			Author:    r.Author,
			BookTitle: r.BookTitle,
		},
	}, nil
}

// UpsertRecords ensures the index exists, then writes the records in
// consecutive batches of batchSize. Every record needs an embedding; this is
// checked before anything is written.
func UpsertRecords(ctx context.Context, idx Index, records []quote.Record, batchSize int, progress Progress) error {
	if len(records) == 0 {
		return quote.ErrNoRecords
	}

	vectors := make([]Vector, len(records))
	for i, r := range records {
		v, err := VectorFor(r)
		if err != nil {
			return err
		}
		vectors[i] = v
	}

	batches, err := batch.Split(vectors, batchSize)
	if err != nil {
		return err
	}

	if err := idx.Ensure(ctx); err != nil {
		return fmt.Errorf("failed to prepare index: %w", err)
	}

	for i, b := range batches {
		if err := idx.Upsert(ctx, b); err != nil {
			return fmt.Errorf("failed to upsert batch %d of %d: %w", i+1, len(batches), err)
		}
		if progress != nil {
			progress(i+1, len(batches))
		}
	}

	return nil
}
