package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/bft-labs/scrubber"
)

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name    string
		summary scrubber.Summary
		want    []string
	}{
		{
			name:    "clean run",
			summary: scrubber.Summary{Items: 120, Batches: 3, SanitizedBatches: 3, Output: "out.jsonl"},
			want:    []string{"items: 120", "batches: 3 (0 resumed)", "fallback: 0", "loss: 0.00%", "output: out.jsonl"},
		},
		{
			name: "fallback and loss",
			summary: scrubber.Summary{
				Items: 40, Batches: 2, SanitizedBatches: 1, FallbackBatches: 1, FallbackItems: 20,
				Lost: 2, LossPercent: 5,
			},
			want: []string{"fallback: 1 (20 items kept original)", "loss: 5.00% (2 items)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSummary(&buf, tt.summary)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("summary missing %q:\n%s", w, out)
				}
			}
		})
	}
}
