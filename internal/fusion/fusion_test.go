package fusion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnly/internal/domain"
	"learnly/internal/retriever"
)

type stubSearcher struct {
	hit  *domain.SearchHit
	err  error
	seen []string
}

func (s *stubSearcher) Search(_ context.Context, query string) (*domain.SearchHit, error) {
	s.seen = append(s.seen, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.hit, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Name() string   { return "stub" }
func (stubEmbedder) Dimension() int { return 2 }
func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubIndex struct {
	hits []domain.ScoredChunk
	err  error
}

func (x *stubIndex) Add(context.Context, [][]float32, []domain.ChunkMeta) error { return nil }
func (x *stubIndex) Search(_ context.Context, _ []float32, k int) ([]domain.ScoredChunk, error) {
	if x.err != nil {
		return nil, x.err
	}
	if k > len(x.hits) {
		k = len(x.hits)
	}
	return x.hits[:k], nil
}
func (x *stubIndex) Count() int                                    { return len(x.hits) }
func (x *stubIndex) HasFile(context.Context, string) (bool, error) { return false, nil }
func (x *stubIndex) Persist() error                                { return nil }

func newFuser(idx domain.VectorIndex, web, wiki domain.Searcher, maxChars int) *Fuser {
	return New(Config{
		Retriever:         retriever.New(stubEmbedder{}, idx, 0),
		Web:               web,
		Wiki:              wiki,
		TopK:              5,
		MaxCharsPerSource: maxChars,
		Logger:            zerolog.Nop(),
	})
}

func ragHits(distance float32) []domain.ScoredChunk {
	return []domain.ScoredChunk{
		{Meta: domain.ChunkMeta{File: "notes.pdf", ChunkID: 0, Text: "local course chunk"}, Distance: distance},
	}
}

func webHit() *domain.SearchHit {
	return &domain.SearchHit{Title: "Web", URL: "https://example.com", Content: "web content"}
}

func wikiHit() *domain.SearchHit {
	return &domain.SearchHit{Title: "Wiki", URL: "https://en.wikipedia.org/wiki/X", Content: "wiki content"}
}

func TestFuseConfidenceGate(t *testing.T) {
	ctx := context.Background()

	t.Run("high similarity includes retrieval", func(t *testing.T) {
		// distance 0.1 -> similarity ~0.91
		f := newFuser(&stubIndex{hits: ragHits(0.1)}, &stubSearcher{hit: webHit()}, &stubSearcher{hit: wikiHit()}, 1500)
		res, err := f.Fuse(ctx, "what is photosynthesis", 0.8)
		require.NoError(t, err)
		assert.True(t, res.RAGUsed)
		require.Len(t, res.Chunks, 1)
		assert.Contains(t, res.Render(), "local course chunk")
	})

	t.Run("low similarity drops retrieval silently", func(t *testing.T) {
		// distance 9 -> similarity 0.1, below both caller policies
		f := newFuser(&stubIndex{hits: ragHits(9)}, &stubSearcher{hit: webHit()}, &stubSearcher{hit: wikiHit()}, 1500)
		res, err := f.Fuse(ctx, "what is photosynthesis", 0.8)
		require.NoError(t, err)
		assert.False(t, res.RAGUsed)
		assert.Empty(t, res.Chunks)
		rendered := res.Render()
		assert.NotContains(t, rendered, "local course chunk")
		assert.Contains(t, rendered, "web content")
		assert.Contains(t, rendered, "wiki content")
	})

	t.Run("threshold is per caller", func(t *testing.T) {
		// distance 1 -> similarity 0.5: passes a 0.3 caller, fails a 0.8 caller
		f := newFuser(&stubIndex{hits: ragHits(1)}, &stubSearcher{hit: webHit()}, &stubSearcher{hit: wikiHit()}, 1500)
		strict, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		lenient, err := f.Fuse(ctx, "q", 0.3)
		require.NoError(t, err)
		assert.False(t, strict.RAGUsed)
		assert.True(t, lenient.RAGUsed)
	})
}

func TestFuseDegradation(t *testing.T) {
	ctx := context.Background()

	t.Run("web search always runs even with a confident index", func(t *testing.T) {
		web := &stubSearcher{hit: webHit()}
		wiki := &stubSearcher{hit: wikiHit()}
		f := newFuser(&stubIndex{hits: ragHits(0)}, web, wiki, 1500)
		_, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		assert.Len(t, web.seen, 1)
		assert.Len(t, wiki.seen, 1)
	})

	t.Run("failed sub-searches degrade to no contribution", func(t *testing.T) {
		f := newFuser(
			&stubIndex{err: errors.New("index offline")},
			&stubSearcher{err: errors.New("web down")},
			&stubSearcher{hit: wikiHit()},
			1500,
		)
		res, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		assert.Nil(t, res.Web)
		assert.False(t, res.RAGUsed)
		require.NotNil(t, res.Wiki)
		assert.Contains(t, res.Render(), "wiki content")
	})

	t.Run("everything failing still succeeds with empty context", func(t *testing.T) {
		f := newFuser(
			&stubIndex{err: errors.New("index offline")},
			&stubSearcher{err: errors.New("web down")},
			&stubSearcher{err: errors.New("wiki down")},
			1500,
		)
		res, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		assert.Empty(t, res.Render())
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		f := newFuser(&stubIndex{}, &stubSearcher{hit: webHit()}, &stubSearcher{hit: wikiHit()}, 1500)
		_, err := f.Fuse(cctx, "q", 0.8)
		require.Error(t, err)
	})
}

func TestFuseBudgets(t *testing.T) {
	ctx := context.Background()

	t.Run("each source truncated independently", func(t *testing.T) {
		longWeb := &domain.SearchHit{Title: "W", Content: strings.Repeat("w", 300)}
		longWiki := &domain.SearchHit{Title: "K", Content: strings.Repeat("k", 300)}
		idx := &stubIndex{hits: []domain.ScoredChunk{
			{Meta: domain.ChunkMeta{File: "a.pdf", Text: strings.Repeat("r", 300)}, Distance: 0},
		}}
		f := newFuser(idx, &stubSearcher{hit: longWeb}, &stubSearcher{hit: longWiki}, 100)
		res, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		assert.Len(t, res.Web.Content, 100)
		assert.Len(t, res.Wiki.Content, 100)
		require.Len(t, res.Chunks, 1)
		assert.Len(t, res.Chunks[0].Text, 100)
	})

	t.Run("rag budget spans chunks", func(t *testing.T) {
		idx := &stubIndex{hits: []domain.ScoredChunk{
			{Meta: domain.ChunkMeta{File: "a.pdf", ChunkID: 0, Text: strings.Repeat("x", 80)}, Distance: 0},
			{Meta: domain.ChunkMeta{File: "a.pdf", ChunkID: 1, Text: strings.Repeat("y", 80)}, Distance: 0.1},
			{Meta: domain.ChunkMeta{File: "a.pdf", ChunkID: 2, Text: strings.Repeat("z", 80)}, Distance: 0.2},
		}}
		f := newFuser(idx, &stubSearcher{hit: webHit()}, &stubSearcher{hit: wikiHit()}, 100)
		res, err := f.Fuse(ctx, "q", 0.8)
		require.NoError(t, err)
		require.Len(t, res.Chunks, 2)
		assert.Len(t, res.Chunks[0].Text, 80)
		assert.Len(t, res.Chunks[1].Text, 20)
	})
}
