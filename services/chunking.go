package services

import "strings"

// Tokenizer specs supported by the chunker. The char spec approximates the
// provider tokenizer at four characters per token, which is the same
// heuristic the AI client uses for its own accounting.
const (
	TokenizerChars = "chars"
	TokenizerWords = "words"
)

const charsPerToken = 4

// Chunker splits document text into overlapping windows sized by a token
// budget.
type Chunker struct {
	maxTokens int
	overlap   int
	spec      string
}

func NewChunker(maxTokens, overlap int, spec string) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 4
	}
	if spec != TokenizerWords {
		spec = TokenizerChars
	}
	return &Chunker{maxTokens: maxTokens, overlap: overlap, spec: spec}
}

// Split returns the chunk texts in document order. Empty input yields no
// chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.spec == TokenizerWords {
		return c.splitWords(text)
	}
	return c.splitRunes(text)
}

func (c *Chunker) splitWords(text string) []string {
	words := strings.Fields(text)

	var chunks []string
	for i := 0; i < len(words); {
		end := i + c.maxTokens
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, strings.Join(words[i:end], " "))

		if end >= len(words) {
			break
		}

		// Move forward with overlap
		nextStart := end - c.overlap
		if nextStart <= i {
			nextStart = i + 1
		}
		i = nextStart
	}
	return chunks
}

func (c *Chunker) splitRunes(text string) []string {
	runes := []rune(text)
	window := c.maxTokens * charsPerToken
	step := (c.maxTokens - c.overlap) * charsPerToken

	var chunks []string
	for i := 0; i < len(runes); {
		end := i + window
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := i + step
		if next <= i {
			next = i + 1
		}
		i = next
	}
	return chunks
}
