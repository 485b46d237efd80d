package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"quote-codex/cmd/stage"
)

func Query(c *cli.Context) error {
	userQuery := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if userQuery == "" {
		return errors.New("a query text is required")
	}
	topK := c.Int("top-k")
	if topK <= 0 {
		return fmt.Errorf("invalid --top-k %d", topK)
	}

	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	if c.IsSet("backend") {
		env.Config.Index.Backend = c.String("backend")
	}

	embedder, err := env.NewEmbedder(c.Context)
	if err != nil {
		return err
	}
	idx, closeIndex, err := env.NewIndex(c.Context)
	if err != nil {
		return err
	}
	defer closeIndex()

	vectors, err := embedder.Embed(c.Context, []string{userQuery})
	if err != nil {
		return fmt.Errorf("failed to generate vectors for query: %w", err)
	}

	if err := idx.Ensure(c.Context); err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	matches, err := idx.Query(c.Context, vectors[0], topK)
	if err != nil {
		return err
	}

	env.Logger.Debug("query finished", "matches", len(matches))
	for _, m := range matches {
		fmt.Printf("%.4f  %s\n        %s\n", m.Score, m.Metadata.Author, m.Metadata.Quote)
	}

	return nil
}
