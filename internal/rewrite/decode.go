package rewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bft-labs/scrubber/internal/domain"
)

// ParseItems decodes a JSON array response into strings. Elements that are
// not strings are converted with Stringify.
func ParseItems(text string) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, domain.ErrProtocol)
	}
	if raw == nil {
		// "null" decodes without error but is not a list.
		return nil, fmt.Errorf("response is not a list: %w", domain.ErrProtocol)
	}
	items := make([]string, len(raw))
	for i, r := range raw {
		s, err := stringifyRaw(r)
		if err != nil {
			return nil, fmt.Errorf("decode item %d: %v: %w", i, err, domain.ErrProtocol)
		}
		items[i] = s
	}
	return items, nil
}

func stringifyRaw(r json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s, nil
	}
	dec := json.NewDecoder(bytes.NewReader(r))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	return Stringify(v), nil
}

// Stringify converts a decoded JSON value into text deterministically:
// lists are joined with a single space, null becomes empty, and other values
// use their compact JSON form.
func Stringify(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Stringify(e)
		}
		return strings.Join(parts, " ")
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// MinAccepted returns the smallest item count accepted for a batch of k
// items, ceil(k*percent/100).
func MinAccepted(k, percent int) int {
	return (k*percent + 99) / 100
}

// Repair aligns items with originals. Extra items are dropped from the end
// and missing trailing positions are filled with the original text at that
// position. It fails with domain.ErrProtocol when fewer than percent% of the
// expected items are present.
func Repair(items, originals []string, percent int) ([]string, error) {
	k := len(originals)
	if len(items) < MinAccepted(k, percent) {
		return nil, fmt.Errorf("too few items: %d/%d: %w", len(items), k, domain.ErrProtocol)
	}
	out := make([]string, k)
	n := copy(out, items)
	copy(out[n:], originals[n:])
	return out, nil
}
