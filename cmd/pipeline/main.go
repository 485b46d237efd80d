package pipeline

import (
	"github.com/urfave/cli/v2"

	"quote-codex/cmd/collect"
	"quote-codex/cmd/embeddings"
	"quote-codex/cmd/index"
	"quote-codex/cmd/reducer"
	"quote-codex/cmd/stage"
)

// Run chains collect, embed, reduce and index in one process. Records are
// handed from stage to stage in memory; each stage still writes its file.
func Run(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	// Credentials are checked before any scraping starts.
	embedder, err := env.NewEmbedder(ctx)
	if err != nil {
		return err
	}
	idx, closeIndex, err := env.NewIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex()

	collected, err := collect.Run(ctx, env)
	if err != nil {
		return err
	}

	embedded, err := embeddings.Run(ctx, env, embedder, embedder.Model(), collected)
	if err != nil {
		return err
	}

	if _, err := reducer.Run(env, embedded); err != nil {
		return err
	}

	return index.Run(ctx, env, idx, embedded)
}
