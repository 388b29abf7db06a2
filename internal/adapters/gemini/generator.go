// Package gemini implements ports.Generator over the Gemini REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bft-labs/scrubber/internal/domain"
	"github.com/bft-labs/scrubber/internal/ports"
)

const (
	// DefaultBaseURL is the public Generative Language API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-flash-lite"

	statusResourceExhausted = "RESOURCE_EXHAUSTED"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generator implements ports.Generator using HTTP.
type Generator struct {
	client  ports.HTTPClient
	baseURL string
	model   string
	apiKey  string
}

// NewGenerator creates a new Gemini generator.
func NewGenerator(client ports.HTTPClient, baseURL, model, apiKey string) *Generator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
	}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate sends one generateContent call and returns the concatenated text
// of the first candidate.
func (g *Generator) Generate(ctx context.Context, in ports.GenerateRequest) (string, error) {
	temp := in.Temperature
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: in.Prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: in.ResponseMIMEType,
			Temperature:      &temp,
			MaxOutputTokens:  in.MaxOutputTokens,
		},
	}
	if in.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: in.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(g.model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return "", statusError(resp.StatusCode, respBody)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("response has no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

func statusError(code int, body []byte) error {
	var er errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	if code == http.StatusTooManyRequests || er.Error.Status == statusResourceExhausted {
		return fmt.Errorf("server returned %d: %s: %w", code, msg, domain.ErrRateLimited)
	}
	return fmt.Errorf("server returned %d: %s: %w", code, msg, domain.ErrGeneratorStatus)
}
