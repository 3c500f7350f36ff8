package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTokens(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok%d", i)
	}
	return tokens
}

func TestNewTokenChunker(t *testing.T) {
	t.Run("rejects overlap equal to max tokens", func(t *testing.T) {
		_, err := NewTokenChunker(100, 100)
		require.Error(t, err)
	})
	t.Run("rejects overlap above max tokens", func(t *testing.T) {
		_, err := NewTokenChunker(100, 150)
		require.Error(t, err)
	})
	t.Run("rejects non-positive window", func(t *testing.T) {
		_, err := NewTokenChunker(0, 0)
		require.Error(t, err)
	})
	t.Run("rejects negative overlap", func(t *testing.T) {
		_, err := NewTokenChunker(100, -1)
		require.Error(t, err)
	})
}

func TestChunkWindowing(t *testing.T) {
	c, err := NewTokenChunker(100, 20)
	require.NoError(t, err)

	t.Run("250 token paragraph", func(t *testing.T) {
		tokens := makeTokens(250)
		chunks := c.Chunk(strings.Join(tokens, " "))
		require.Len(t, chunks, 3)

		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		third := strings.Fields(chunks[2])
		assert.Len(t, first, 100)
		assert.Len(t, second, 100)
		assert.Len(t, third, 90)

		// Windows advance by max_tokens - overlap = 80.
		assert.Equal(t, tokens[0:100], first)
		assert.Equal(t, tokens[80:180], second)
		assert.Equal(t, tokens[160:250], third)
	})

	t.Run("consecutive chunks share the configured overlap", func(t *testing.T) {
		chunks := c.Chunk(strings.Join(makeTokens(250), " "))
		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		assert.Equal(t, first[80:], second[:20])
	})

	t.Run("every token is covered", func(t *testing.T) {
		tokens := makeTokens(437)
		chunks := c.Chunk(strings.Join(tokens, " "))
		covered := map[string]bool{}
		for _, chunk := range chunks {
			for _, tok := range strings.Fields(chunk) {
				covered[tok] = true
			}
		}
		for _, tok := range tokens {
			assert.True(t, covered[tok], "token %s dropped", tok)
		}
	})

	t.Run("no chunk exceeds the window", func(t *testing.T) {
		chunks := c.Chunk(strings.Join(makeTokens(437), " "))
		for i, chunk := range chunks {
			assert.LessOrEqual(t, len(strings.Fields(chunk)), 100, "chunk %d", i)
		}
	})
}

func TestChunkParagraphs(t *testing.T) {
	c, err := NewTokenChunker(300, 100)
	require.NoError(t, err)

	t.Run("short paragraph emitted whole", func(t *testing.T) {
		chunks := c.Chunk("one two three")
		require.Len(t, chunks, 1)
		assert.Equal(t, "one two three", chunks[0])
	})

	t.Run("paragraphs split on blank lines", func(t *testing.T) {
		chunks := c.Chunk("first paragraph here\n\nsecond paragraph here")
		require.Len(t, chunks, 2)
		assert.Equal(t, "first paragraph here", chunks[0])
		assert.Equal(t, "second paragraph here", chunks[1])
	})

	t.Run("windows paragraph-local", func(t *testing.T) {
		long := strings.Join(makeTokens(350), " ")
		chunks := c.Chunk(long + "\n\nshort tail")
		require.Len(t, chunks, 3)
		assert.Equal(t, "short tail", chunks[2])
	})

	t.Run("empty input yields no chunks", func(t *testing.T) {
		assert.Empty(t, c.Chunk(""))
		assert.Empty(t, c.Chunk("  \n\n \n \n\n "))
	})

	t.Run("windows crlf input", func(t *testing.T) {
		chunks := c.Chunk("first paragraph\r\n\r\nsecond paragraph")
		require.Len(t, chunks, 2)
	})
}
