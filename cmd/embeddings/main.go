package embeddings

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"quote-codex/batch"
	"quote-codex/cmd/stage"
	"quote-codex/dataset"
	"quote-codex/embedding"
	"quote-codex/manifest"
	"quote-codex/quote"
)

func Embed(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	if c.IsSet("batch-size") {
		env.Config.Embedding.BatchSize = c.Int("batch-size")
	}

	records, err := dataset.Read(env.Path(dataset.QuotesFile))
	if err != nil {
		return fmt.Errorf("failed to load collected quotes: %w", err)
	}

	embedder, err := env.NewEmbedder(c.Context)
	if err != nil {
		return err
	}

	_, err = Run(c.Context, env, embedder, embedder.Model(), records)
	return err
}

// Run embeds every quote, rewrites quotes.csv with the vectors added and
// returns the embedded records.
func Run(ctx context.Context, env *stage.Env, embedder embedding.Embedder, model string, records []quote.Record) ([]quote.Record, error) {
	if len(records) == 0 {
		return nil, quote.ErrNoRecords
	}
	batchSize := env.Config.Embedding.BatchSize
	env.Logger.Info("generating embeddings", "records", len(records), "batches", batch.Count(len(records), batchSize), "model", model)

	bar := stage.Bar(len(records), "embedding")
	embedded, err := embedding.EmbedRecords(ctx, embedder, records, batchSize, func(done, total int) {
		_ = bar.Set(done)
		env.Logger.Debug("embedded batch", "done", done, "total", total)
	})
	_ = bar.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if err := dataset.Write(env.Path(dataset.QuotesFile), embedded, dataset.EmbeddedColumns); err != nil {
		return nil, err
	}

	dimension := quote.Dimension(embedded)
	env.Logger.Info("wrote embeddings", "records", len(embedded), "dimension", dimension, "output", dataset.QuotesFile)

	err = manifest.Stamp(env.Config.DataDir, manifest.StageEmbed, manifest.StageData{
		Output:    dataset.QuotesFile,
		Records:   len(embedded),
		Model:     model,
		Dimension: dimension,
	})
	if err != nil {
		return nil, err
	}
	return embedded, nil
}
