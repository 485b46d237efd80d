package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"quote-codex/quote"
)

// attributionMark separates a listed quote from its attribution.
const attributionMark = "―"

var ErrMalformedPage = errors.New("malformed listing page")

// Listing scrapes a paginated HTML quote listing one page at a time.
type Listing struct {
	Client      *http.Client
	URLTemplate string // printf template taking the page number
	Pages       int
	Delay       time.Duration // pause between pages
	UserAgent   string
}

// Fetch scrapes pages 1..Pages in order. The first failing page aborts.
func (l *Listing) Fetch(ctx context.Context, progress func(page int)) ([]quote.Record, error) {
	var records []quote.Record
	for page := 1; page <= l.Pages; page++ {
		if page > 1 && l.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.Delay):
			}
		}

		pageRecords, err := l.FetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		records = append(records, pageRecords...)
		if progress != nil {
			progress(page)
		}
	}
	return records, nil
}

func (l *Listing) FetchPage(ctx context.Context, page int) ([]quote.Record, error) {
	pageURL := fmt.Sprintf(l.URLTemplate, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected http status %d while fetching %s: %s", resp.StatusCode, pageURL, string(bodyBytes))
	}

	records, err := ParseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return records, nil
}

// ParseListing reads every div.quoteDetails entry of a listing page.
func ParseListing(r io.Reader) ([]quote.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing html: %w", err)
	}

	details := doc.Find("div.quoteDetails")
	records := make([]quote.Record, 0, details.Length())
	for i := range details.Nodes {
		entry := details.Eq(i)

		textDiv := entry.Find("div.quoteText").First()
		if textDiv.Length() == 0 {
			return nil, fmt.Errorf("%w: entry %d has no quoteText", ErrMalformedPage, i)
		}
		text, _, _ := strings.Cut(textWithBreaks(textDiv), attributionMark)

		author := strings.ReplaceAll(strings.TrimSpace(entry.Find("span.authorOrTitle").First().Text()), ",", "")
		bookTitle := strings.TrimSpace(entry.Find("a.authorOrTitle").First().Text())

		records = append(records, quote.Record{
			Quote:     strings.TrimSpace(text),
			Author:    author,
			BookTitle: bookTitle,
		})
	}

	return records, nil
}
