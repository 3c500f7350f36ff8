// Package fusion joins local retrieval with mandatory live search into a
// single bounded context for generation.
package fusion

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"learnly/internal/domain"
	"learnly/internal/retriever"
)

// Result is the fused context for one query. Each source is independently
// truncated to the configured character budget; RAG chunks are present only
// when the confidence gate passed.
type Result struct {
	Query          string
	Chunks         []domain.RetrievedChunk
	BestSimilarity float64
	RAGUsed        bool
	Web            *domain.SearchHit
	Wiki           *domain.SearchHit
}

// Fuser runs retrieval and live search for a query and merges the results.
// Live search always runs: the local index may be stale or empty, and the
// system must never depend on it alone.
type Fuser struct {
	retriever *retriever.Retriever
	web       domain.Searcher
	wiki      domain.Searcher
	planner   *Planner
	topK      int
	maxChars  int
	log       zerolog.Logger
}

// Config configures a Fuser. Planner is optional; without it the raw user
// query goes to both search engines verbatim.
type Config struct {
	Retriever *retriever.Retriever
	Web       domain.Searcher
	Wiki      domain.Searcher
	Planner   *Planner
	TopK      int
	// MaxCharsPerSource bounds each source's contribution so prompt size
	// stays deterministic regardless of what the sources return.
	MaxCharsPerSource int
	Logger            zerolog.Logger
}

// New creates a Fuser.
func New(cfg Config) *Fuser {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxChars := cfg.MaxCharsPerSource
	if maxChars <= 0 {
		maxChars = 1500
	}
	return &Fuser{
		retriever: cfg.Retriever,
		web:       cfg.Web,
		wiki:      cfg.Wiki,
		planner:   cfg.Planner,
		topK:      topK,
		maxChars:  maxChars,
		log:       cfg.Logger,
	}
}

// Fuse runs the query pipeline: vector search and both live searches run
// concurrently, then join here. threshold is per-caller policy: retrieval
// contributes only when its best similarity clears it. A failed sub-search
// degrades to no contribution from that source; Fuse itself fails only when
// the caller's context is cancelled.
func (f *Fuser) Fuse(ctx context.Context, query string, threshold float64) (*Result, error) {
	webQuery, wikiQuery := query, query
	if f.planner != nil {
		webQuery, wikiQuery = f.planner.Plan(ctx, query)
	}

	var (
		chunks  []domain.RetrievedChunk
		webHit  *domain.SearchHit
		wikiHit *domain.SearchHit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if f.retriever == nil {
			return nil
		}
		res, err := f.retriever.Retrieve(gctx, query, f.topK)
		if err != nil {
			f.log.Warn().Err(err).Msg("retrieval failed, continuing with live search only")
			return nil
		}
		chunks = res
		return nil
	})
	g.Go(func() error {
		hit, err := f.web.Search(gctx, webQuery)
		if err != nil {
			f.log.Warn().Err(err).Str("query", webQuery).Msg("web search failed")
			return nil
		}
		webHit = hit
		return nil
	})
	g.Go(func() error {
		hit, err := f.wiki.Search(gctx, wikiQuery)
		if err != nil {
			f.log.Warn().Err(err).Str("query", wikiQuery).Msg("wikipedia search failed")
			return nil
		}
		wikiHit = hit
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Query: query, Web: truncateHit(webHit, f.maxChars), Wiki: truncateHit(wikiHit, f.maxChars)}
	if len(chunks) > 0 {
		res.BestSimilarity = chunks[0].Similarity
	}
	if res.BestSimilarity >= threshold && len(chunks) > 0 {
		res.RAGUsed = true
		res.Chunks = truncateChunks(chunks, f.maxChars)
	} else if len(chunks) > 0 {
		f.log.Debug().
			Float64("best_similarity", res.BestSimilarity).
			Float64("threshold", threshold).
			Msg("retrieval below confidence threshold, dropped")
	}
	return res, nil
}

// Render formats the fused context as prompt text. Empty sources render
// nothing.
func (r *Result) Render() string {
	var parts []string
	if r.Web != nil {
		parts = append(parts, fmt.Sprintf("Web source (%s): %s", r.Web.Title, r.Web.Content))
	}
	if r.Wiki != nil {
		parts = append(parts, fmt.Sprintf("Wikipedia (%s): %s", r.Wiki.Title, r.Wiki.Content))
	}
	if r.RAGUsed {
		for _, c := range r.Chunks {
			parts = append(parts, fmt.Sprintf("Course material (%s, chunk %d): %s", c.File, c.ChunkID, c.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func truncateHit(hit *domain.SearchHit, maxChars int) *domain.SearchHit {
	if hit == nil {
		return nil
	}
	if len(hit.Content) <= maxChars {
		return hit
	}
	clipped := *hit
	clipped.Content = hit.Content[:maxChars]
	return &clipped
}

// truncateChunks bounds the combined RAG text: chunks are kept in rank
// order until the budget is spent, the first overflowing chunk is clipped.
func truncateChunks(chunks []domain.RetrievedChunk, maxChars int) []domain.RetrievedChunk {
	var out []domain.RetrievedChunk
	remaining := maxChars
	for _, c := range chunks {
		if remaining <= 0 {
			break
		}
		if len(c.Text) > remaining {
			c.Text = c.Text[:remaining]
		}
		remaining -= len(c.Text)
		out = append(out, c)
	}
	return out
}
