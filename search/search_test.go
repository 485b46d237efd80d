package search

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"quote-codex/quote"
)

type fakeIndex struct {
	ensured int
	batches [][]Vector
	err     error
}

func (f *fakeIndex) Ensure(ctx context.Context) error {
	f.ensured++
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, vectors)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	return nil, nil
}

func embeddedRecords(n int) []quote.Record {
	records := make([]quote.Record, n)
	for i := range records {
		records[i] = quote.Record{
			Quote:     "quote " + strconv.Itoa(i),
			Author:    "Author",
			Embedding: []float32{float32(i), 1},
		}
	}
	quote.AssignIDs(records)
	return records
}

func TestUpsertRecords_Batches(t *testing.T) {
	idx := &fakeIndex{}
	var calls []int

	err := UpsertRecords(context.Background(), idx, embeddedRecords(250), 100, func(done, total int) {
		if total != 3 {
			t.Errorf("expected 3 batches, got %d", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.ensured != 1 {
		t.Errorf("expected the index to be ensured once, got %d", idx.ensured)
	}
	sizes := []int{100, 100, 50}
	if len(idx.batches) != len(sizes) {
		t.Fatalf("expected %d upserts, got %d", len(sizes), len(idx.batches))
	}

	next := 0
	for i, b := range idx.batches {
		if len(b) != sizes[i] {
			t.Errorf("batch %d: expected %d vectors, got %d", i, sizes[i], len(b))
		}
		for _, v := range b {
			if v.ID != strconv.Itoa(next) {
				t.Fatalf("expected ID %d, got %s", next, v.ID)
			}
			next++
		}
	}
	if len(calls) != 3 || calls[2] != 3 {
		t.Errorf("unexpected progress calls %v", calls)
	}
}

func TestUpsertRecords_EmptyBookTitle(t *testing.T) {
	idx := &fakeIndex{}
	records := embeddedRecords(1)

	if err := UpsertRecords(context.Background(), idx, records, 100, nil); err != nil {
		t.Fatal(err)
	}
	md := idx.batches[0][0].Metadata
	if md.BookTitle != "" || md.Quote != "quote 0" || md.Author != "Author" {
		t.Errorf("unexpected metadata %+v", md)
	}
}

func TestUpsertRecords_Errors(t *testing.T) {
	missing := embeddedRecords(3)
	missing[1].Embedding = nil

	upsertErr := errors.New("boom")

	tests := []struct {
		name    string
		idx     *fakeIndex
		records []quote.Record
		size    int
		want    error
	}{
		{name: "missing embedding", idx: &fakeIndex{}, records: missing, size: 2, want: ErrMissingEmbedding},
		{name: "no records", idx: &fakeIndex{}, records: nil, size: 2, want: quote.ErrNoRecords},
		{name: "upsert failure", idx: &fakeIndex{err: upsertErr}, records: embeddedRecords(3), size: 2, want: upsertErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UpsertRecords(context.Background(), tt.idx, tt.records, tt.size, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	idx := &fakeIndex{}
	_ = UpsertRecords(context.Background(), idx, missing, 2, nil)
	if idx.ensured != 0 || len(idx.batches) != 0 {
		t.Error("nothing should be written when a record has no embedding")
	}
}
