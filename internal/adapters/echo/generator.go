// Package echo provides an offline generator that returns its input items
// unchanged. It is used for dry runs and tests of the full pipeline.
package echo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bft-labs/scrubber/internal/ports"
)

const inputMarker = "Input:\n"

var numberTag = regexp.MustCompile(`^\[\d+\] `)

// Generator implements ports.Generator without a network.
type Generator struct{}

// NewGenerator creates an echo generator.
func NewGenerator() *Generator { return &Generator{} }

// Generate decodes the numbered items after the "Input:" marker and returns
// them as a JSON array with the number tags removed.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := strings.LastIndex(req.Prompt, inputMarker)
	if i < 0 {
		return "", fmt.Errorf("prompt has no input section")
	}
	var items []string
	if err := json.Unmarshal([]byte(req.Prompt[i+len(inputMarker):]), &items); err != nil {
		return "", fmt.Errorf("decode input items: %w", err)
	}
	for j, item := range items {
		items[j] = numberTag.ReplaceAllString(item, "")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
