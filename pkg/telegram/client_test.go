package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		limit     int
		wantParts int
	}{
		{"short message untouched", "hello", 100, 1},
		{"exact limit untouched", strings.Repeat("a", 100), 100, 1},
		{"split without separators", strings.Repeat("a", 250), 100, 3},
		{"split prefers newlines", strings.Repeat("line of text\n", 30), 100, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitMessage(tt.text, tt.limit)
			if len(parts) != tt.wantParts {
				t.Fatalf("got %d parts, want %d: %q", len(parts), tt.wantParts, parts)
			}
			for i, p := range parts {
				if n := len([]rune(p)); n > tt.limit {
					t.Errorf("part %d has %d runes, above limit %d", i, n, tt.limit)
				}
			}
		})
	}
}

func TestSplitMessageKeepsContent(t *testing.T) {
	text := "first paragraph here\nsecond paragraph follows\nthird one closes"
	parts := SplitMessage(text, 25)

	joined := strings.Join(parts, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost in splitting", word)
		}
	}
}
