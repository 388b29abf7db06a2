package ports

import "context"

// Generator is the external text-generation service.
// It is treated as unreliable: calls may fail, be rate limited, or return
// text that does not follow the requested format.
type Generator interface {
	// Generate sends a single request and returns the raw response text.
	// Rate-limit conditions must wrap domain.ErrRateLimited or keep the
	// service's status code ("429") in the error message.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	// System is the fixed behavioral instruction sent out of band.
	System string

	// Prompt is the user content for this call.
	Prompt string

	// Temperature controls sampling; 0 requests deterministic decoding.
	Temperature float64

	// MaxOutputTokens caps the response length.
	MaxOutputTokens int

	// ResponseMIMEType asks the service for a specific output format
	// (e.g., "application/json"). Empty means plain text.
	ResponseMIMEType string
}
