package rewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SystemInstruction is sent out of band with every request.
const SystemInstruction = `You are a dataset sanitization expert. Rewrite messages to be safe while keeping the original tone and style.

CRITICAL RULES:
1. Output MUST be a JSON array with EXACTLY the same number of items as input
2. Each input message gets exactly ONE output message
3. Never skip, merge, or duplicate items
4. Remove explicit sexual content, severe profanity, and PII
5. Keep slang, emotion, and conversational style

Example:
Input: ["yo what's good", "lmaooo that's wild"]
Output: ["hey what's up", "haha that's crazy"]`

// Number tags every item with its zero-based position.
func Number(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = fmt.Sprintf("[%d] %s", i, t)
	}
	return out
}

// BuildPrompt renders the user prompt for a batch.
func BuildPrompt(texts []string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Number(texts)); err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}
	return fmt.Sprintf("Rewrite exactly %d messages. Output EXACTLY %d strings.\n\nInput:\n%s",
		len(texts), len(texts), strings.TrimRight(buf.String(), "\n")), nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
