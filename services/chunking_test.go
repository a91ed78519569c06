package services

import (
	"strings"
	"testing"
)

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(512, 50, TokenizerChars)
	if chunks := c.Split("   \n"); chunks != nil {
		t.Errorf("expected no chunks for blank input, got %v", chunks)
	}
}

func TestChunkerWordWindowsOverlap(t *testing.T) {
	c := NewChunker(10, 3, TokenizerWords)

	words := make([]string, 25)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	chunks := c.Split(strings.Join(words, " "))

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	if len(first) != 10 {
		t.Errorf("expected first chunk of 10 words, got %d", len(first))
	}
	// The second window starts 3 words before the first ended.
	if second[0] != first[7] {
		t.Errorf("expected overlap of 3 words, second chunk starts at %q, want %q", second[0], first[7])
	}
}

func TestChunkerCoversAllText(t *testing.T) {
	c := NewChunker(5, 1, TokenizerWords)

	input := "one two three four five six seven eight nine ten eleven"
	chunks := c.Split(input)

	joined := strings.Join(chunks, " ")
	for _, word := range strings.Fields(input) {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q missing from chunks %v", word, chunks)
		}
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(last, "eleven") {
		t.Errorf("expected final chunk to end with the final word, got %q", last)
	}
}

func TestChunkerRuneWindows(t *testing.T) {
	// 10 tokens * 4 chars = 40-rune windows, 2-token overlap = 8 runes.
	c := NewChunker(10, 2, TokenizerChars)

	text := strings.Repeat("字", 100)
	chunks := c.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if got := len([]rune(chunks[0])); got != 40 {
		t.Errorf("expected 40-rune first chunk, got %d", got)
	}
}

func TestChunkerClampsDegenerateOverlap(t *testing.T) {
	// Overlap >= window must not loop forever.
	c := NewChunker(4, 10, TokenizerWords)
	chunks := c.Split("a b c d e f g h")
	if len(chunks) == 0 {
		t.Fatal("expected chunks despite degenerate overlap")
	}
}
