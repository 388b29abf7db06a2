// Package extract finds delimited spans in a document.
package extract

import (
	"regexp"

	"github.com/bft-labs/scrubber/internal/domain"
)

// Default delimiters written by the conversation formatter around text
// that must be generalized.
const (
	DefaultStartTag = "<TO_GENERALIZE>"
	DefaultEndTag   = "</TO_GENERALIZE>"
)

// Extractor scans documents for text between a start and end delimiter.
type Extractor struct {
	pattern *regexp.Regexp
}

// New creates an Extractor for the given delimiter pair.
func New(start, end string) *Extractor {
	return &Extractor{pattern: Pattern(start, end)}
}

// Pattern compiles the non-greedy span pattern for a delimiter pair.
func Pattern(start, end string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + regexp.QuoteMeta(start) + `(.*?)` + regexp.QuoteMeta(end))
}

// Extract returns the spans of doc in line order. Only the first delimiter
// pair of a line is taken; lines without a complete pair are skipped.
func (e *Extractor) Extract(doc domain.Document) []domain.Span {
	var spans []domain.Span
	for i, line := range doc.Lines {
		m := e.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		spans = append(spans, domain.Span{Line: i, Text: m[1]})
	}
	return spans
}
