package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/net/html"
)

const (
	// DefaultFirecrawlURL is the Firecrawl API base.
	DefaultFirecrawlURL = "https://api.firecrawl.dev"

	defaultMaxBodySize = 1 * 1024 * 1024 // 1MB
	maxFetchChars      = 20000
)

// WebFetchTool reads a web page as text. With a Firecrawl key the page is
// scraped to markdown by Firecrawl; otherwise it is fetched directly and its
// visible text extracted.
type WebFetchTool struct {
	client       *http.Client
	firecrawlKey string
	firecrawlURL string
	logger       *slog.Logger
}

// NewWebFetchTool creates a web fetch tool.
func NewWebFetchTool(client *http.Client, firecrawlKey, firecrawlURL string, logger *slog.Logger) *WebFetchTool {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if firecrawlURL == "" {
		firecrawlURL = DefaultFirecrawlURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebFetchTool{
		client:       client,
		firecrawlKey: firecrawlKey,
		firecrawlURL: strings.TrimRight(firecrawlURL, "/"),
		logger:       logger,
	}
}

func (t *WebFetchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameWebFetch,
		Desc: `Fetch a web page and return its readable content. Use after web_search to read a result in full.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {Type: "string", Desc: "Absolute http(s) URL to fetch", Required: true},
		}),
	}, nil
}

func (t *WebFetchTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("url must be an absolute http(s) URL, got %q", args.URL)
	}

	var content string
	if t.firecrawlKey != "" {
		content, err = t.scrape(ctx, u.String())
	} else {
		content, err = t.fetch(ctx, u.String())
	}
	if err != nil {
		return "", err
	}
	if len(content) > maxFetchChars {
		content = content[:maxFetchChars] + "\n\n... [truncated]"
	}
	t.logger.Debug("web fetch completed", "url", u.String(), "firecrawl", t.firecrawlKey != "", "size", len(content))
	return content, nil
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (t *WebFetchTool) scrape(ctx context.Context, target string) (string, error) {
	payload, err := json.Marshal(map[string]any{"url": target, "formats": []string{"markdown"}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.firecrawlURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.firecrawlKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("firecrawl request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body firecrawlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, defaultMaxBodySize)).Decode(&body); err != nil {
		return "", fmt.Errorf("firecrawl returned HTTP %d: decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return "", fmt.Errorf("firecrawl returned HTTP %d: %s", resp.StatusCode, body.Error)
	}

	if title := body.Data.Metadata.Title; title != "" {
		return "# " + title + "\n\n" + body.Data.Markdown, nil
	}
	return body.Data.Markdown, nil
}

func (t *WebFetchTool) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentdeck/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, target), nil
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return ExtractText(string(body)), nil
	}
	return string(body), nil
}

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true,
	"svg": true, "iframe": true, "template": true,
}

// blockElements end a line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// ExtractText returns the visible text of an HTML document, one block per line.
func ExtractText(doc string) string {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return doc
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}
	walk(root)
	return strings.TrimSpace(sb.String())
}

var _ tool.InvokableTool = (*WebFetchTool)(nil)
