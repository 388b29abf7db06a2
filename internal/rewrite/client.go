// Package rewrite implements the numbered-item protocol used to sanitize a
// batch of texts with an external generator.
package rewrite

import (
	"context"
	"fmt"

	"github.com/bft-labs/scrubber/internal/ports"
)

// Default request settings.
const (
	DefaultMaxOutputTokens = 10000
	DefaultAcceptPercent   = 90
	jsonMIMEType           = "application/json"
)

// Options configures the rewrite client.
type Options struct {
	// System overrides SystemInstruction when non-empty.
	System string

	// MaxOutputTokens caps the generator response. Default: 10000
	MaxOutputTokens int

	// AcceptPercent is the minimum share of expected items a response must
	// contain to be repaired instead of rejected. Default: 90
	AcceptPercent int
}

func (o *Options) defaults() {
	if o.System == "" {
		o.System = SystemInstruction
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if o.AcceptPercent <= 0 || o.AcceptPercent > 100 {
		o.AcceptPercent = DefaultAcceptPercent
	}
}

// Client rewrites batches through a generator.
type Client struct {
	gen    ports.Generator
	logger ports.Logger
	opts   Options
}

// New creates a rewrite client.
func New(gen ports.Generator, logger ports.Logger, opts Options) *Client {
	opts.defaults()
	return &Client{gen: gen, logger: logger, opts: opts}
}

// Rewrite sends texts in one request and returns exactly len(texts)
// sanitized texts. Malformed or undersized responses return an error
// wrapping domain.ErrProtocol; generator errors are returned as is.
func (c *Client) Rewrite(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	prompt, err := BuildPrompt(texts)
	if err != nil {
		return nil, err
	}
	resp, err := c.gen.Generate(ctx, ports.GenerateRequest{
		System:           c.opts.System,
		Prompt:           prompt,
		Temperature:      0,
		MaxOutputTokens:  c.opts.MaxOutputTokens,
		ResponseMIMEType: jsonMIMEType,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	items, err := ParseItems(StripFences(resp))
	if err != nil {
		return nil, err
	}
	out, err := Repair(items, texts, c.opts.AcceptPercent)
	if err != nil {
		return nil, err
	}
	if len(items) != len(texts) {
		c.logger.Warn("auto-corrected response length",
			ports.Int("expected", len(texts)),
			ports.Int("got", len(items)),
		)
	}
	return out, nil
}
