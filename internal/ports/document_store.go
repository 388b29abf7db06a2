package ports

import (
	"context"

	"github.com/bft-labs/scrubber/internal/domain"
)

// DocumentStore reads the input document and writes the sanitized output.
type DocumentStore interface {
	// Read loads the input document.
	// Returns domain.ErrInputNotFound if the input does not exist.
	Read(ctx context.Context) (domain.Document, error)

	// Write persists the output document.
	// Implementations should write atomically so a crash never leaves a
	// truncated output behind.
	Write(ctx context.Context, doc domain.Document) error

	// OutputPath describes where Write puts the document.
	OutputPath() string
}
