package quote

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Quotation mark pairs stripped from the start and end of a quote. Smart
// quotes are tried first.
var quotePairs = [][2]string{
	{"“", "”"},
	{`"`, `"`},
}

const (
	emDash     = "—"
	fromPrefix = "From "
	// Some e-book attributions read "After <name>"; the prefix is always six
	// characters including the trailing space.
	afterPrefix = "After "
)

// Normalize cleans a combined table of records and returns the
// surviving rows. Rows whose quote is empty or carries no ASCII letter are
// dropped.
func Normalize(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		r.Quote = CleanQuote(r.Quote)
		if !HasASCIILetter(r.Quote) {
			continue
		}
		r.Author = CleanAuthor(r.Author)
		r.BookTitle = strings.TrimSpace(r.BookTitle)
		out = append(out, r)
	}
	return out
}

// CleanQuote trims surrounding whitespace and removes exactly one matching
// pair of enclosing quotation marks.
func CleanQuote(s string) string {
	s = strings.TrimSpace(s)
	for _, pair := range quotePairs {
		if utf8.RuneCountInString(s) < 2 {
			break
		}
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return s[len(pair[0]) : len(s)-len(pair[1])]
		}
	}
	return s
}

// HasASCIILetter reports whether s contains at least one of a-z or A-Z.
// Letters outside ASCII do not count.
func HasASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			return true
		}
	}
	return false
}

// CleanAuthor strips attribution prefixes and title-cases the result.
func CleanAuthor(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, emDash))
	s = strings.TrimPrefix(s, fromPrefix)
	s = strings.TrimPrefix(s, afterPrefix)
	return TitleCase(strings.TrimSpace(s))
}

// TitleCase upper-cases every letter that follows a non-letter and lower-cases
// every other letter, so "o'neil-smith" becomes "O'Neil-Smith".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
