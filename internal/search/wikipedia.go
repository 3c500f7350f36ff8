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

// Wikipedia looks up article summaries through the MediaWiki API: an
// opensearch call resolves the query to an article title, then an extracts
// call fetches the intro text.
type Wikipedia struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// WikipediaConfig configures the Wikipedia searcher.
type WikipediaConfig struct {
	BaseURL string
	// UserAgent is required: the API rejects anonymous default agents.
	UserAgent string
	Timeout   time.Duration
}

// NewWikipedia creates a Wikipedia searcher.
func NewWikipedia(cfg WikipediaConfig) *Wikipedia {
	base := cfg.BaseURL
	if base == "" {
		base = "https://en.wikipedia.org/w/api.php"
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "learnly/1.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Wikipedia{
		baseURL:   base,
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
	}
}

// Search resolves the query to an article and returns its intro summary.
func (w *Wikipedia) Search(ctx context.Context, query string) (*domain.SearchHit, error) {
	title, pageURL, err := w.resolveTitle(ctx, query)
	if err != nil {
		return nil, err
	}
	summary, err := w.fetchExtract(ctx, title)
	if err != nil {
		return nil, err
	}
	if summary == "" {
		return nil, fmt.Errorf("wikipedia: empty summary for %q", title)
	}
	if pageURL == "" {
		pageURL = "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	}
	return &domain.SearchHit{Query: query, Title: title, URL: pageURL, Content: summary}, nil
}

func (w *Wikipedia) resolveTitle(ctx context.Context, query string) (title, pageURL string, err error) {
	params := url.Values{
		"action": {"opensearch"},
		"search": {query},
		"limit":  {"1"},
		"format": {"json"},
	}
	var raw []json.RawMessage
	if err := w.getJSON(ctx, params, &raw); err != nil {
		return "", "", err
	}
	// Opensearch responds with [query, [titles], [descriptions], [urls]].
	if len(raw) < 2 {
		return "", "", fmt.Errorf("wikipedia: malformed opensearch response")
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil || len(titles) == 0 {
		return "", "", fmt.Errorf("wikipedia: no results for %q", query)
	}
	var urls []string
	if len(raw) > 3 {
		_ = json.Unmarshal(raw[3], &urls)
	}
	if len(urls) > 0 {
		pageURL = urls[0]
	}
	return titles[0], pageURL, nil
}

func (w *Wikipedia) fetchExtract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"true"},
		"explaintext": {"true"},
		"format":      {"json"},
		"titles":      {title},
	}
	var resp struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := w.getJSON(ctx, params, &resp); err != nil {
		return "", err
	}
	for _, page := range resp.Query.Pages {
		return strings.TrimSpace(page.Extract), nil
	}
	return "", nil
}

func (w *Wikipedia) getJSON(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", w.userAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("wikipedia: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
