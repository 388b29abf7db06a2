package echo

import (
	"context"
	"testing"

	"github.com/bft-labs/scrubber/internal/ports"
)

func TestGenerator_Echo(t *testing.T) {
	g := NewGenerator()
	prompt := "Rewrite exactly 2 messages. Output EXACTLY 2 strings.\n\nInput:\n[\"[0] hi <there>\",\"[1] [2] nested\"]"

	out, err := g.Generate(context.Background(), ports.GenerateRequest{Prompt: prompt})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := `["hi <there>","[2] nested"]`; out != want {
		t.Errorf("output = %s, want %s", out, want)
	}
}

func TestGenerator_Errors(t *testing.T) {
	g := NewGenerator()
	for _, prompt := range []string{"no marker", "Input:\nnot json"} {
		if _, err := g.Generate(context.Background(), ports.GenerateRequest{Prompt: prompt}); err == nil {
			t.Errorf("Generate(%q) returned no error", prompt)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, ports.GenerateRequest{Prompt: "Input:\n[]"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
