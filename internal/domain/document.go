package domain

import "strings"

// Document is an ordered sequence of lines. Each line keeps its terminator,
// so String reproduces the source bytes exactly.
type Document struct {
	Lines []string
}

// ParseDocument splits raw text into lines, keeping "\n" on every line but
// possibly the last.
func ParseDocument(raw string) Document {
	if raw == "" {
		return Document{}
	}
	lines := strings.SplitAfter(raw, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return Document{Lines: lines}
}

// Len returns the number of lines.
func (d Document) Len() int {
	return len(d.Lines)
}

// Clone returns a copy that does not share the line slice.
func (d Document) Clone() Document {
	lines := make([]string, len(d.Lines))
	copy(lines, d.Lines)
	return Document{Lines: lines}
}

// String joins the lines back into the original text.
func (d Document) String() string {
	return strings.Join(d.Lines, "")
}

// Span is a piece of delimited text found on a single line.
type Span struct {
	// Line is the zero-based line index in the Document.
	Line int

	// Text is the content between the delimiters.
	Text string
}

// SpanTexts returns the texts of the spans in order.
func SpanTexts(spans []Span) []string {
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	return texts
}
