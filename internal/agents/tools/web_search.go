package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 20
	defaultCacheTTL    = 15 * time.Minute

	// DefaultDuckDuckGoURL is the instant answer endpoint.
	DefaultDuckDuckGoURL = "https://api.duckduckgo.com/"
)

// SearchBackend abstracts a web search engine.
type SearchBackend interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
	Name() string
}

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string
	URL     string
	Content string
}

// =============================================================================
// DuckDuckGo backend
// =============================================================================

// DuckDuckGo queries the DuckDuckGo instant answer API.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGo returns a backend; an empty baseURL uses DefaultDuckDuckGoURL.
func NewDuckDuckGo(client *http.Client, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &DuckDuckGo{client: client, baseURL: baseURL}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	Definition    string     `json:"Definition"`
	DefinitionURL string     `json:"DefinitionURL"`
	Results       []ddgTopic `json:"Results"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search implements SearchBackend.
func (d *DuckDuckGo) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("duckduckgo returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode duckduckgo response: %w", err)
	}

	var results []SearchResult
	if body.Answer != "" {
		results = append(results, SearchResult{Title: "Answer", Content: body.Answer})
	}
	if body.AbstractText != "" {
		results = append(results, SearchResult{Title: body.Heading, URL: body.AbstractURL, Content: body.AbstractText})
	}
	if body.Definition != "" {
		results = append(results, SearchResult{Title: "Definition", URL: body.DefinitionURL, Content: body.Definition})
	}
	results = appendTopics(results, body.Results)
	results = appendTopics(results, body.RelatedTopics)

	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// appendTopics flattens grouped topics into results.
func appendTopics(results []SearchResult, topics []ddgTopic) []SearchResult {
	for _, t := range topics {
		if len(t.Topics) > 0 {
			results = appendTopics(results, t.Topics)
			continue
		}
		if t.Text == "" {
			continue
		}
		title := t.Text
		if i := strings.Index(title, " - "); i > 0 {
			title = title[:i]
		}
		results = append(results, SearchResult{Title: title, URL: t.FirstURL, Content: t.Text})
	}
	return results
}

// =============================================================================
// WebSearchTool
// =============================================================================

type cacheEntry struct {
	result    string
	expiresAt time.Time
}

// WebSearchTool searches the web through a SearchBackend, caching answers.
type WebSearchTool struct {
	backend  SearchBackend
	cacheTTL time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewWebSearchTool creates a web search tool backed by backend.
func NewWebSearchTool(backend SearchBackend, cacheTTL time.Duration, logger *slog.Logger) *WebSearchTool {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearchTool{
		backend:  backend,
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameWebSearch,
		Desc: `Search the web for current information. Returns titles, URLs and snippets.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: "string", Desc: "The search query", Required: true},
			"count": {Type: "integer", Desc: "Number of results (default: 5, max: 20)", Required: false},
		}),
	}, nil
}

func (t *WebSearchTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count,omitempty"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	if args.Count <= 0 {
		args.Count = defaultSearchCount
	}
	if args.Count > maxSearchCount {
		args.Count = maxSearchCount
	}

	cacheKey := fmt.Sprintf("%s|%d", args.Query, args.Count)
	if cached, ok := t.getCached(cacheKey); ok {
		t.logger.Debug("web search cache hit", "query", args.Query)
		return cached, nil
	}

	results, err := t.backend.Search(ctx, args.Query, args.Count)
	if err != nil {
		return "", err
	}
	if len(results) > args.Count {
		results = results[:args.Count]
	}

	content := formatSearchResults(args.Query, results)
	t.putCache(cacheKey, content)
	t.logger.Debug("web search completed", "backend", t.backend.Name(), "query", args.Query, "results", len(results))
	return content, nil
}

func formatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for %q.", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		}
		fmt.Fprintf(&sb, "   %s\n\n", r.Content)
	}
	return sb.String()
}

func (t *WebSearchTool) getCached(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.cache[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(t.cache, key)
		return "", false
	}
	return entry.result, true
}

func (t *WebSearchTool) putCache(key, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache[key] = cacheEntry{result: result, expiresAt: time.Now().Add(t.cacheTTL)}

	if len(t.cache) > 100 {
		now := time.Now()
		for k, v := range t.cache {
			if now.After(v.expiresAt) {
				delete(t.cache, k)
			}
		}
	}
}

var _ tool.InvokableTool = (*WebSearchTool)(nil)
