package chunker

import (
	"fmt"
	"strings"
)

// TokenChunker splits text into paragraph-aware, token-windowed chunks with
// overlap. Paragraphs at or under the window size are emitted whole; longer
// paragraphs are covered by a sliding window advancing by maxTokens-overlap
// tokens, so adjacent chunks from the same paragraph share overlap tokens.
type TokenChunker struct {
	maxTokens int
	overlap   int
}

// NewTokenChunker validates the window parameters and returns a chunker.
// overlap must be strictly less than maxTokens or the window never advances.
func NewTokenChunker(maxTokens, overlap int) (*TokenChunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= maxTokens {
		return nil, fmt.Errorf("overlap (%d) must be less than max tokens (%d)", overlap, maxTokens)
	}
	return &TokenChunker{maxTokens: maxTokens, overlap: overlap}, nil
}

// Chunk splits text on blank-line paragraph boundaries and windows each
// paragraph. Empty input yields no chunks.
func (c *TokenChunker) Chunk(text string) []string {
	var chunks []string
	for _, para := range splitParagraphs(text) {
		tokens := strings.Fields(para)
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) <= c.maxTokens {
			chunks = append(chunks, strings.Join(tokens, " "))
			continue
		}
		step := c.maxTokens - c.overlap
		for start := 0; ; start += step {
			end := start + c.maxTokens
			if end > len(tokens) {
				end = len(tokens)
			}
			chunks = append(chunks, strings.Join(tokens[start:end], " "))
			// Stop once the window reaches the paragraph end; advancing
			// further would only re-emit already covered tokens.
			if end == len(tokens) {
				break
			}
		}
	}
	return chunks
}

func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(normalized, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
