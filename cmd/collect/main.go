package collect

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"quote-codex/cmd/stage"
	"quote-codex/dataset"
	"quote-codex/manifest"
	"quote-codex/quote"
	"quote-codex/scrape"
)

const userAgent = "quote-codex/1.0"

func Collect(c *cli.Context) error {
	env, err := stage.Load(c)
	if err != nil {
		return err
	}
	if c.IsSet("pages") {
		env.Config.Collect.Pages = c.Int("pages")
	}
	if c.IsSet("ebook") {
		env.Config.Collect.EbookPath = c.String("ebook")
	}

	_, err = Run(c.Context, env)
	return err
}

// Run scrapes every configured source, writes the per-source files and the
// combined, normalized quotes.csv, and returns the combined records.
func Run(ctx context.Context, env *stage.Env) ([]quote.Record, error) {
	cfg := env.Config.Collect
	logger := env.Logger
	client := &http.Client{Timeout: cfg.HTTPTimeout}

	var combined []quote.Record

	if cfg.Pages > 0 {
		logger.Info("scraping quote listing", "pages", cfg.Pages)
		bar := stage.Bar(cfg.Pages, "listing pages")
		listing := &scrape.Listing{
			Client:      client,
			URLTemplate: cfg.ListingURL,
			Pages:       cfg.Pages,
			Delay:       cfg.PageDelay,
			UserAgent:   userAgent,
		}
		records, err := listing.Fetch(ctx, func(page int) {
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		if err != nil {
			return nil, fmt.Errorf("failed to scrape quote listing: %w", err)
		}
		if err := dataset.Write(env.Path(dataset.ListingFile), records, dataset.ListingColumns); err != nil {
			return nil, err
		}
		logger.Info("scraped quote listing", "records", len(records), "output", dataset.ListingFile)
		combined = append(combined, records...)
	}

	if cfg.EbookPath != "" {
		records, err := scrape.ReadEbooks(cfg.EbookPath, cfg.FallbackAuthor)
		if err != nil {
			return nil, fmt.Errorf("failed to read e-book: %w", err)
		}
		if err := dataset.Write(env.Path(dataset.CalendarFile), records, dataset.CalendarColumns); err != nil {
			return nil, err
		}
		logger.Info("read e-book", "path", cfg.EbookPath, "records", len(records), "output", dataset.CalendarFile)
		combined = append(combined, records...)
	}

	if len(cfg.Feeds) > 0 {
		records, err := scrape.ReadFeeds(ctx, client, cfg.Feeds, cfg.FallbackAuthor)
		if err != nil {
			return nil, fmt.Errorf("failed to read feeds: %w", err)
		}
		logger.Info("read feeds", "feeds", len(cfg.Feeds), "records", len(records))
		combined = append(combined, records...)
	}

	normalized := quote.Normalize(combined)
	if len(normalized) == 0 {
		return nil, fmt.Errorf("nothing to write after normalizing %d scraped quotes: %w", len(combined), quote.ErrNoRecords)
	}
	quote.AssignIDs(normalized)

	if err := dataset.Write(env.Path(dataset.QuotesFile), normalized, dataset.CollectedColumns); err != nil {
		return nil, err
	}
	logger.Info("collected quotes", "scraped", len(combined), "kept", len(normalized), "output", dataset.QuotesFile)

	err := manifest.Stamp(env.Config.DataDir, manifest.StageCollect, manifest.StageData{
		Output:  dataset.QuotesFile,
		Records: len(normalized),
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}
