package scrape

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"

	"quote-codex/quote"
)

const (
	containerPath = "META-INF/container.xml"
	xhtmlType     = "application/xhtml+xml"
)

var ErrMalformedEbook = errors.New("malformed e-book")

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDocument struct {
	Items []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
}

// ReadEbooks reads every EPUB matching pattern, in lexical order. A pattern
// without wildcards names a single file, which must exist.
func ReadEbooks(pattern, fallbackAuthor string) ([]quote.Record, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid e-book pattern %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no e-book matches %s: %w", pattern, os.ErrNotExist)
	}
	sort.Strings(matches)

	var records []quote.Record
	for _, filename := range matches {
		bookRecords, err := ReadEbook(filename, fallbackAuthor)
		if err != nil {
			return nil, err
		}
		records = append(records, bookRecords...)
	}
	return records, nil
}

// ReadEbook extracts quotes from the XHTML documents of an EPUB file.
func ReadEbook(filename, fallbackAuthor string) ([]quote.Record, error) {
	reader, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open e-book %s: %w", filename, err)
	}
	defer reader.Close()

	documents, err := ebookDocuments(&reader.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read e-book %s: %w", filename, err)
	}

	return ExtractEbookQuotes(documents, fallbackAuthor), nil
}

// ebookDocuments parses the XHTML items of the package manifest, in manifest
// order.
func ebookDocuments(archive *zip.Reader) ([]*goquery.Document, error) {
	files := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		files[f.Name] = f
	}

	var c container
	if err := decodeXML(files, containerPath, &c); err != nil {
		return nil, err
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, fmt.Errorf("%w: no rootfile in %s", ErrMalformedEbook, containerPath)
	}
	packagePath := c.Rootfiles[0].FullPath

	var pkg packageDocument
	if err := decodeXML(files, packagePath, &pkg); err != nil {
		return nil, err
	}

	base := path.Dir(packagePath)
	var documents []*goquery.Document
	for _, item := range pkg.Items {
		if item.MediaType != xhtmlType {
			continue
		}
		href, err := url.PathUnescape(item.Href)
		if err != nil {
			return nil, fmt.Errorf("%w: bad href %q: %v", ErrMalformedEbook, item.Href, err)
		}
		f, ok := files[path.Join(base, href)]
		if !ok {
			return nil, fmt.Errorf("%w: manifest item %s missing from archive", ErrMalformedEbook, item.Href)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		doc, err := goquery.NewDocumentFromReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	f, ok := files[name]
	if !ok {
		return fmt.Errorf("%w: %s not found", ErrMalformedEbook, name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()

	if err := xml.NewDecoder(rc).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEbook, name, err)
	}
	return nil
}

// ExtractEbookQuotes makes two passes over the documents. The first collects
// calibre-styled quote paragraphs with their attribution paragraph, the
// second collects blockquotes attributed by a following em-dash paragraph.
func ExtractEbookQuotes(documents []*goquery.Document, fallbackAuthor string) []quote.Record {
	var records []quote.Record

	for _, doc := range documents {
		doc.Find("p.calibre15").Each(func(_ int, s *goquery.Selection) {
			author := strings.TrimSpace(s.NextAllFiltered("p.calibre16").First().Text())
			if author == "" {
				author = fallbackAuthor
			}
			records = append(records, quote.Record{Quote: textWithBreaks(s), Author: author})
		})
	}

	for _, doc := range documents {
		doc.Find("blockquote").Each(func(_ int, s *goquery.Selection) {
			author := fallbackAuthor
			if next := strings.TrimSpace(s.NextAllFiltered("p").First().Text()); strings.HasPrefix(next, "—") {
				author = next
			}
			records = append(records, quote.Record{Quote: strings.TrimSpace(s.Text()), Author: author})
		})
	}

	return records
}

// textWithBreaks returns the text of s with <br> elements read as newlines.
func textWithBreaks(s *goquery.Selection) string {
	s.Find("br").ReplaceWithHtml("\n")
	return s.Text()
}
