package fs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/bft-labs/scrubber/internal/domain"
)

// DocumentFileStore implements ports.DocumentStore on local files.
type DocumentFileStore struct {
	input  string
	output string
}

// NewDocumentFileStore creates a store reading input and writing output.
func NewDocumentFileStore(input, output string) *DocumentFileStore {
	return &DocumentFileStore{input: input, output: output}
}

// Read loads the input file as a document.
func (s *DocumentFileStore) Read(ctx context.Context) (domain.Document, error) {
	b, err := os.ReadFile(s.input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%s: %w", s.input, domain.ErrInputNotFound)
		}
		return domain.Document{}, fmt.Errorf("read %s: %w", s.input, err)
	}
	return domain.ParseDocument(string(b)), nil
}

// Write stores the document at the output path atomically.
func (s *DocumentFileStore) Write(ctx context.Context, doc domain.Document) error {
	if err := writeFileAtomic(s.output, []byte(doc.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.output, err)
	}
	return nil
}

// OutputPath returns the output file path.
func (s *DocumentFileStore) OutputPath() string {
	return s.output
}
