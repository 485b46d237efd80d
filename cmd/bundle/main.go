package bundle

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"quote-codex/cmd/stage"
	"quote-codex/dataset"
	"quote-codex/export"
	"quote-codex/manifest"
)

func Export(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	if c.IsSet("out") {
		env.Config.Export.Dir = c.String("out")
	}

	embedded, err := dataset.Read(env.Path(dataset.QuotesFile))
	if err != nil {
		return fmt.Errorf("failed to load embedded quotes: %w", err)
	}

	reduced, err := dataset.Read(env.Path(dataset.ReducedFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load reduced quotes: %w", err)
		}
		env.Logger.Warn("no projection found, skipping points", "path", env.Path(dataset.ReducedFile))
		reduced = nil
	}

	cfg := env.Config.Export
	bundle, err := export.Write(embedded, reduced, export.Options{Dir: cfg.Dir, Quantize: cfg.Quantize})
	if err != nil {
		return fmt.Errorf("failed to export search bundle: %w", err)
	}
	env.Logger.Info("exported search bundle", "dir", cfg.Dir, "records", bundle.Count, "dimension", bundle.Dimension, "files", bundle.Files)

	return manifest.Stamp(env.Config.DataDir, manifest.StageExport, manifest.StageData{
		Output:    cfg.Dir,
		Records:   bundle.Count,
		Dimension: bundle.Dimension,
	})
}
