package index

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"quote-codex/batch"
	"quote-codex/cmd/stage"
	"quote-codex/dataset"
	"quote-codex/manifest"
	"quote-codex/quote"
	"quote-codex/search"
)

func Index(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	if c.IsSet("batch-size") {
		env.Config.Index.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("backend") {
		env.Config.Index.Backend = c.String("backend")
	}

	records, err := dataset.Read(env.Path(dataset.QuotesFile))
	if err != nil {
		return fmt.Errorf("failed to load embedded quotes: %w", err)
	}

	idx, closeIndex, err := env.NewIndex(c.Context)
	if err != nil {
		return err
	}
	defer closeIndex()

	return Run(c.Context, env, idx, records)
}

// Run upserts every embedded record into idx in batches.
func Run(ctx context.Context, env *stage.Env, idx search.Index, records []quote.Record) error {
	cfg := env.Config.Index
	if d := quote.Dimension(records); d != cfg.Dimension {
		return fmt.Errorf("embeddings have dimension %d but index %s expects %d", d, cfg.Name, cfg.Dimension)
	}

	env.Logger.Info("upserting embeddings", "backend", cfg.Backend, "index", cfg.Name, "records", len(records))

	bar := stage.Bar(batch.Count(len(records), cfg.BatchSize), "upserting")
	err := search.UpsertRecords(ctx, idx, records, cfg.BatchSize, func(done, total int) {
		_ = bar.Set(done)
		env.Logger.Debug("upserted batch", "batch", done, "total", total)
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to index embeddings: %w", err)
	}
	env.Logger.Info("indexed embeddings", "index", cfg.Name, "records", len(records))

	return manifest.Stamp(env.Config.DataDir, manifest.StageIndex, manifest.StageData{
		Output:    cfg.Backend + "/" + cfg.Name,
		Records:   len(records),
		Dimension: cfg.Dimension,
	})
}
