package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"quote-codex/quote"
)

// ReadFeeds collects one quote per item from each RSS or Atom feed, in order.
func ReadFeeds(ctx context.Context, client *http.Client, feedURLs []string, fallbackAuthor string) ([]quote.Record, error) {
	fp := gofeed.NewParser()
	if client != nil {
		fp.Client = client
	}

	var records []quote.Record
	for _, feedURL := range feedURLs {
		feed, err := fp.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to process feed from %s: %w", feedURL, err)
		}

		for _, item := range feed.Items {
			body := item.Description
			if body == "" {
				body = item.Content
			}
			text, err := htmlText(body)
			if err != nil {
				return nil, fmt.Errorf("failed to parse feed item %s: %w", item.GUID, err)
			}
			text, _, _ = strings.Cut(text, attributionMark)

			records = append(records, quote.Record{
				Quote:  strings.TrimSpace(text),
				Author: itemAuthor(item, fallbackAuthor),
			})
		}
	}

	return records, nil
}

func itemAuthor(item *gofeed.Item, fallbackAuthor string) string {
	if item.Author != nil && strings.TrimSpace(item.Author.Name) != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return strings.TrimSpace(person.Name)
		}
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	return fallbackAuthor
}

func htmlText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	return textWithBreaks(doc.Selection), nil
}
