package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vero/internal/adapter/tool"
	"vero/internal/domain"
)

const defaultSearchURL = "https://api.duckduckgo.com"

// SearchResult is a single hit returned by a search backend.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// SearchBackend abstracts the web search provider so tests and alternative
// engines can swap in without touching the tool surface.
type SearchBackend interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// NewSearch returns the duckduckgo_search tool backed by the given backend.
// Backend failures and empty result sets are reported as observation text
// rather than tool errors, so reasoning loops keep going.
func NewSearch(backend SearchBackend) *tool.Func {
	return tool.New(
		"duckduckgo_search",
		"Search the web for current information and return the top results "+
			"with title, link, and snippet.",
		[]domain.Param{
			{Name: "query", Type: domain.TypeString, Required: true},
			{Name: "max_results", Type: domain.TypeInt, Default: 3},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "Error: query must not be empty.", nil
			}
			maxResults := intArg(args["max_results"], 3)

			results, err := backend.Search(ctx, query, maxResults)
			if err != nil {
				return fmt.Sprintf("Search error: %v", err), nil
			}
			if len(results) == 0 {
				return "No search results found.", nil
			}
			return FormatResults(results), nil
		},
	)
}

// FormatResults renders hits in the Title/Link/Snippet block layout the
// agents' prompts reference.
func FormatResults(results []SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s", r.Title, r.Link, r.Snippet))
	}
	return strings.Join(blocks, "\n\n")
}

func intArg(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return int(n)
		}
	case int:
		if n > 0 {
			return n
		}
	}
	return fallback
}

// DuckDuckGo queries the DuckDuckGo Instant Answer API. The API returns
// abstracts and related topics rather than full web results, which is enough
// for agent demos without an API key.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

// DuckDuckGoOption customizes the backend.
type DuckDuckGoOption func(*DuckDuckGo)

// WithBaseURL points the backend at a different endpoint. Used by tests.
func WithBaseURL(u string) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.client = c }
}

// NewDuckDuckGo builds an Instant Answer API backend.
func NewDuckDuckGo(opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		baseURL: defaultSearchURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type instantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

// Search implements SearchBackend.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: unexpected status %d", resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var results []SearchResult
	if answer.AbstractText != "" {
		results = append(results, SearchResult{
			Title:   answer.Heading,
			Link:    answer.AbstractURL,
			Snippet: answer.AbstractText,
		})
	}
	for _, topic := range flattenTopics(answer.RelatedTopics) {
		if len(results) >= maxResults {
			break
		}
		results = append(results, SearchResult{
			Title:   topicTitle(topic.Text),
			Link:    topic.FirstURL,
			Snippet: topic.Text,
		})
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// flattenTopics expands one level of grouped topics, which is how the API
// nests category results.
func flattenTopics(topics []relatedTopic) []relatedTopic {
	var flat []relatedTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			flat = append(flat, t.Topics...)
			continue
		}
		if t.Text != "" && t.FirstURL != "" {
			flat = append(flat, t)
		}
	}
	return flat
}

// topicTitle takes the leading clause of a topic text as a display title.
func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	if len(text) > 60 {
		return text[:60]
	}
	return text
}
