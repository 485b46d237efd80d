package reducer

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"quote-codex/cmd/stage"
	"quote-codex/dataset"
	"quote-codex/manifest"
	"quote-codex/quote"
	"quote-codex/reduce"
)

func Reduce(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}

	records, err := dataset.Read(env.Path(dataset.QuotesFile))
	if err != nil {
		return fmt.Errorf("failed to load embedded quotes: %w", err)
	}

	_, err = Run(env, records)
	return err
}

// Options converts the reduce settings into UMAP options.
func Options(env *stage.Env) reduce.Options {
	cfg := env.Config.Reduce
	opts := reduce.DefaultOptions(2)
	opts.Neighbors = cfg.Neighbors
	opts.MinDist = cfg.MinDist
	opts.Spread = cfg.Spread
	opts.Epochs = cfg.Epochs
	opts.Seed = cfg.Seed
	return opts
}

// Run projects the embedded records to 2-D and 3-D, writes
// quotes_with_embeddings.csv and returns the projected records.
func Run(env *stage.Env, records []quote.Record) ([]quote.Record, error) {
	env.Logger.Info("fitting projections", "records", len(records), "dimension", quote.Dimension(records))

	projected, err := reduce.Project(records, Options(env))
	if err != nil {
		return nil, fmt.Errorf("failed to reduce embeddings: %w", err)
	}

	if err := dataset.Write(env.Path(dataset.ReducedFile), projected, dataset.ReducedColumns); err != nil {
		return nil, err
	}
	env.Logger.Info("wrote projections", "records", len(projected), "output", dataset.ReducedFile)

	err = manifest.Stamp(env.Config.DataDir, manifest.StageReduce, manifest.StageData{
		Output:  dataset.ReducedFile,
		Records: len(projected),
	})
	if err != nil {
		return nil, err
	}
	return projected, nil
}
