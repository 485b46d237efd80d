package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"quote-codex/cmd/bundle"
	"quote-codex/cmd/collect"
	"quote-codex/cmd/embeddings"
	"quote-codex/cmd/index"
	"quote-codex/cmd/pipeline"
	"quote-codex/cmd/query"
	"quote-codex/cmd/reducer"
	"quote-codex/config"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	batchSize := &cli.IntFlag{Name: "batch-size", Usage: "records per request"}
	backend := &cli.StringFlag{Name: "backend", Usage: "vector index backend, pinecone or opensearch"}

	app := &cli.App{
		Name:  "quote-codex",
		Usage: "Build a semantic search index of quotations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: config.DefaultPath, Usage: "YAML config file"},
			&cli.StringFlag{Name: "data-dir", Usage: "directory for the stage files"},
		},
		Commands: []*cli.Command{
			{
				Name:    "collect",
				Aliases: []string{"c"},
				Usage:   "Scrape and normalize quotes into quotes.csv",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pages", Usage: "listing pages to scrape"},
					&cli.StringFlag{Name: "ebook", Usage: "e-book path or glob pattern"},
				},
				Action: collect.Collect,
			},
			{
				Name:    "embed",
				Aliases: []string{"e"},
				Usage:   "Generate embeddings for collected quotes",
				Flags:   []cli.Flag{batchSize},
				Action:  embeddings.Embed,
			},
			{
				Name:    "reduce",
				Aliases: []string{"r"},
				Usage:   "Project embeddings to 2-D and 3-D for plotting",
				Action:  reducer.Reduce,
			},
			{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Load embeddings into a vector index",
				Flags:   []cli.Flag{batchSize, backend},
				Action:  index.Index,
			},
			{
				Name:    "export",
				Aliases: []string{"x"},
				Usage:   "Write the static search bundle",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output directory"},
				},
				Action: bundle.Export,
			},
			{
				Name:      "query",
				Aliases:   []string{"q"},
				Usage:     "Find the quotes closest to a text",
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top-k", Value: 5, Usage: "matches to print"},
					backend,
				},
				Action: query.Query,
			},
			{
				Name:   "run",
				Usage:  "Collect, embed, reduce and index in one go",
				Action: pipeline.Run,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
