// Package reassemble writes rewritten span texts back into a document.
package reassemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/extract"
)

// Reassembler substitutes span texts on the lines they were extracted from.
type Reassembler struct {
	pattern *regexp.Regexp
}

// New creates a Reassembler for the delimiter pair used at extraction.
func New(start, end string) *Reassembler {
	return &Reassembler{pattern: extract.Pattern(start, end)}
}

// Apply returns a copy of doc where the first delimited span on each
// spans[i].Line is replaced by texts[i], delimiters included. Everything else
// is kept byte for byte. doc is not modified.
func (r *Reassembler) Apply(doc domain.Document, spans []domain.Span, texts []string) (domain.Document, error) {
	if len(texts) != len(spans) {
		return domain.Document{}, fmt.Errorf("reassemble %d texts into %d spans: %w", len(texts), len(spans), domain.ErrLengthMismatch)
	}
	out := doc.Clone()
	for i, s := range spans {
		if s.Line < 0 || s.Line >= out.Len() {
			return domain.Document{}, fmt.Errorf("span %d points at line %d of %d: %w", i, s.Line, out.Len(), domain.ErrLengthMismatch)
		}
		line := out.Lines[s.Line]
		loc := r.pattern.FindStringIndex(line)
		if loc == nil {
			return domain.Document{}, fmt.Errorf("line %d has no delimited span: %w", s.Line, domain.ErrLengthMismatch)
		}
		var b strings.Builder
		b.Grow(len(line) - (loc[1] - loc[0]) + len(texts[i]))
		b.WriteString(line[:loc[0]])
		b.WriteString(texts[i])
		b.WriteString(line[loc[1]:])
		out.Lines[s.Line] = b.String()
	}
	return out, nil
}

// Strip removes the delimiters around every extracted span and keeps the
// original text, which is what Apply does with the extracted texts.
func (r *Reassembler) Strip(doc domain.Document, spans []domain.Span) (domain.Document, error) {
	return r.Apply(doc, spans, domain.SpanTexts(spans))
}
