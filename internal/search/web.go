package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learnly/internal/domain"
)

// DuckDuckGo queries the DuckDuckGo instant-answer API. It returns abstract
// text when the engine has one, falling back to the first related topic.
type DuckDuckGo struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// DuckDuckGoConfig configures the web searcher.
type DuckDuckGoConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NewDuckDuckGo creates a web searcher.
func NewDuckDuckGo(cfg DuckDuckGoConfig) *DuckDuckGo {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.duckduckgo.com/"
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "learnly/1.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &DuckDuckGo{
		baseURL:   base,
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
	}
}

// Search performs an instant-answer lookup.
func (d *DuckDuckGo) Search(ctx context.Context, query string) (*domain.SearchHit, error) {
	params := url.Values{
		"q":             {query},
		"format":        {"json"},
		"no_html":       {"1"},
		"skip_disambig": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("web search: %s", resp.Status)
	}

	var out struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	title := out.Heading
	content := strings.TrimSpace(out.AbstractText)
	link := out.AbstractURL
	if content == "" && len(out.RelatedTopics) > 0 {
		content = strings.TrimSpace(out.RelatedTopics[0].Text)
		if link == "" {
			link = out.RelatedTopics[0].FirstURL
		}
	}
	if content == "" {
		return nil, fmt.Errorf("web search: no results for %q", query)
	}
	if title == "" {
		title = query
	}
	return &domain.SearchHit{Query: query, Title: title, URL: link, Content: content}, nil
}
