package fusion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"learnly/internal/domain"
	"learnly/internal/llmjson"
)

const plannerPrompt = `User query: %q

Generate TWO search queries for this user query.

WEB QUERY RULES:
- Can include qualifiers (price, history, facts, today)
- Optimized for search engines

WIKIPEDIA QUERY RULES:
- MUST be a single main entity or concept, like a Wikipedia article title
- No dates, numbers, question words or qualifiers

Return ONLY valid JSON:
{"web_query": "...", "wiki_query": "..."}`

// nonEncyclopedic strips qualifiers a model sometimes leaves in the
// Wikipedia query despite the prompt.
var nonEncyclopedic = regexp.MustCompile(`(?i)\b(net worth|price|today|latest|now|history|facts|info|information|how|why|when)\b`)

// Planner rewrites a user query into engine-specific queries using an LLM.
// Any failure falls back to the raw query: planning is an optimization,
// never a gate.
type Planner struct {
	completer domain.Completer
	log       zerolog.Logger
}

// NewPlanner creates a query planner.
func NewPlanner(completer domain.Completer, log zerolog.Logger) *Planner {
	return &Planner{completer: completer, log: log}
}

// Plan returns a web query and a Wikipedia title-style query for the user
// query.
func (p *Planner) Plan(ctx context.Context, query string) (webQuery, wikiQuery string) {
	raw, err := p.completer.Complete(ctx, fmt.Sprintf(plannerPrompt, query))
	if err != nil {
		p.log.Debug().Err(err).Msg("query planning failed, using raw query")
		return query, query
	}
	var out struct {
		WebQuery  string `json:"web_query"`
		WikiQuery string `json:"wiki_query"`
	}
	if err := llmjson.Unmarshal(raw, &out); err != nil {
		p.log.Debug().Err(err).Msg("query plan unparseable, using raw query")
		return query, query
	}
	if out.WebQuery == "" {
		out.WebQuery = query
	}
	wiki := nonEncyclopedic.ReplaceAllString(out.WikiQuery, "")
	wiki = strings.Join(strings.Fields(wiki), " ")
	// A long wiki query is not a title; fall back to the question stem.
	if wiki == "" || len(strings.Fields(wiki)) > 4 {
		wiki = strings.TrimSpace(strings.SplitN(query, "?", 2)[0])
	}
	return out.WebQuery, wiki
}
