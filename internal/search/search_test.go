package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWikipediaSearch(t *testing.T) {
	ctx := context.Background()

	newServer := func(t *testing.T, opensearch string, extract map[string]any) *httptest.Server {
		t.Helper()
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("action") {
			case "opensearch":
				_, _ = w.Write([]byte(opensearch))
			case "query":
				assert.Equal(t, "extracts", r.URL.Query().Get("prop"))
				assert.Equal(t, "true", r.URL.Query().Get("exintro"))
				require.NoError(t, json.NewEncoder(w).Encode(extract))
			default:
				t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
			}
		}))
	}

	t.Run("resolves title then fetches extract", func(t *testing.T) {
		srv := newServer(t,
			`["photosynthesis",["Photosynthesis"],[""],["https://en.wikipedia.org/wiki/Photosynthesis"]]`,
			map[string]any{"query": map[string]any{"pages": map[string]any{
				"1234": map[string]any{"extract": "Photosynthesis is a process used by plants."},
			}}},
		)
		defer srv.Close()

		wiki := NewWikipedia(WikipediaConfig{BaseURL: srv.URL, UserAgent: "test-agent"})
		hit, err := wiki.Search(ctx, "photosynthesis")
		require.NoError(t, err)
		assert.Equal(t, "Photosynthesis", hit.Title)
		assert.Equal(t, "https://en.wikipedia.org/wiki/Photosynthesis", hit.URL)
		assert.Equal(t, "Photosynthesis is a process used by plants.", hit.Content)
		assert.Equal(t, "photosynthesis", hit.Query)
	})

	t.Run("no matching article is an error", func(t *testing.T) {
		srv := newServer(t, `["zzzz",[],[],[]]`, nil)
		defer srv.Close()
		wiki := NewWikipedia(WikipediaConfig{BaseURL: srv.URL})
		_, err := wiki.Search(ctx, "zzzz")
		require.Error(t, err)
	})

	t.Run("empty extract is an error", func(t *testing.T) {
		srv := newServer(t,
			`["x",["X"],[""],["https://en.wikipedia.org/wiki/X"]]`,
			map[string]any{"query": map[string]any{"pages": map[string]any{
				"1": map[string]any{"extract": ""},
			}}},
		)
		defer srv.Close()
		wiki := NewWikipedia(WikipediaConfig{BaseURL: srv.URL})
		_, err := wiki.Search(ctx, "x")
		require.Error(t, err)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer srv.Close()
		wiki := NewWikipedia(WikipediaConfig{BaseURL: srv.URL})
		_, err := wiki.Search(ctx, "x")
		require.Error(t, err)
	})

	t.Run("missing page url built from title", func(t *testing.T) {
		srv := newServer(t,
			`["go",["Go (programming language)"]]`,
			map[string]any{"query": map[string]any{"pages": map[string]any{
				"1": map[string]any{"extract": "Go is a programming language."},
			}}},
		)
		defer srv.Close()
		wiki := NewWikipedia(WikipediaConfig{BaseURL: srv.URL})
		hit, err := wiki.Search(ctx, "go")
		require.NoError(t, err)
		assert.Contains(t, hit.URL, "en.wikipedia.org/wiki/Go_")
	})
}

func TestDuckDuckGoSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("abstract answer", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "gravity", r.URL.Query().Get("q"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.Equal(t, "1", r.URL.Query().Get("no_html"))
			assert.Equal(t, "1", r.URL.Query().Get("skip_disambig"))
			_, _ = w.Write([]byte(`{
				"Heading": "Gravity",
				"AbstractText": "Gravity is a fundamental interaction.",
				"AbstractURL": "https://en.wikipedia.org/wiki/Gravity"
			}`))
		}))
		defer srv.Close()

		ddg := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL})
		hit, err := ddg.Search(ctx, "gravity")
		require.NoError(t, err)
		assert.Equal(t, "Gravity", hit.Title)
		assert.Equal(t, "Gravity is a fundamental interaction.", hit.Content)
		assert.Equal(t, "https://en.wikipedia.org/wiki/Gravity", hit.URL)
	})

	t.Run("falls back to first related topic", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{
				"Heading": "",
				"AbstractText": "",
				"RelatedTopics": [
					{"Text": "Topic one text", "FirstURL": "https://duckduckgo.com/one"},
					{"Text": "Topic two text", "FirstURL": "https://duckduckgo.com/two"}
				]
			}`))
		}))
		defer srv.Close()

		ddg := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL})
		hit, err := ddg.Search(ctx, "some query")
		require.NoError(t, err)
		assert.Equal(t, "some query", hit.Title)
		assert.Equal(t, "Topic one text", hit.Content)
		assert.Equal(t, "https://duckduckgo.com/one", hit.URL)
	})

	t.Run("no results is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"Heading": "", "AbstractText": "", "RelatedTopics": []}`))
		}))
		defer srv.Close()
		ddg := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL})
		_, err := ddg.Search(ctx, "nothing")
		require.Error(t, err)
	})

	t.Run("server error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()
		ddg := NewDuckDuckGo(DuckDuckGoConfig{BaseURL: srv.URL})
		_, err := ddg.Search(ctx, "x")
		require.Error(t, err)
	})
}
