package embeddings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"quote-codex/cmd/stage"
	"quote-codex/config"
	"quote-codex/dataset"
	"quote-codex/embedding"
	"quote-codex/manifest"
	"quote-codex/quote"
)

type lengthEmbedder struct {
	calls int
}

func (l *lengthEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	l.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0}
	}
	return vectors, nil
}

func testEnv(t *testing.T) *stage.Env {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Embedding.BatchSize = 2
	return &stage.Env{Config: cfg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRun(t *testing.T) {
	env := testEnv(t)
	records := []quote.Record{
		{ID: "0", Quote: "a", Author: "A"},
		{ID: "1", Quote: "bb", Author: "B"},
		{ID: "2", Quote: "ccc", Author: "C"},
	}
	embedder := &lengthEmbedder{}

	embedded, err := Run(context.Background(), env, embedder, "test-model", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("expected 2 embedding calls, got %d", embedder.calls)
	}

	stored, err := dataset.Read(filepath.Join(env.Config.DataDir, dataset.QuotesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 || stored[2].Embedding[0] != 3 || stored[2].ID != "2" {
		t.Errorf("unexpected stored records %+v", stored)
	}
	if embedded[1].Embedding[0] != 2 {
		t.Errorf("unexpected embedding %v", embedded[1].Embedding)
	}

	runs, err := manifest.Load(env.Config.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	got := runs.Stages[manifest.StageEmbed]
	if got.Model != "test-model" || got.Dimension != 3 || got.Records != 3 {
		t.Errorf("unexpected manifest entry %+v", got)
	}
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestRun_ShortResponse(t *testing.T) {
	env := testEnv(t)
	records := []quote.Record{{ID: "0", Quote: "a"}, {ID: "1", Quote: "b"}}

	_, err := Run(context.Background(), env, shortEmbedder{}, "test-model", records)
	if !errors.Is(err, embedding.ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", err)
	}
}
