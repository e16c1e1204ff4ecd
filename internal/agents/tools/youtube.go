package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/net/html"
)

// DefaultYouTubeURL is where video metadata and captions are read from.
const DefaultYouTubeURL = "https://www.youtube.com"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeTranscriptTool returns a video's title, channel and timestamped
// captions so an agent can summarize it and build chapter timestamps.
type YouTubeTranscriptTool struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewYouTubeTranscriptTool creates a transcript tool reading from baseURL.
func NewYouTubeTranscriptTool(client *http.Client, baseURL string, logger *slog.Logger) *YouTubeTranscriptTool {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultYouTubeURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTubeTranscriptTool{client: client, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (t *YouTubeTranscriptTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameYouTubeTranscript,
		Desc: `Get the title, channel and timestamped captions of a YouTube video.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url":      {Type: "string", Desc: "Video URL (watch, youtu.be, shorts or embed link) or 11 character video id", Required: true},
			"language": {Type: "string", Desc: "Caption language code, default en"},
		}),
	}, nil
}

func (t *YouTubeTranscriptTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	id, err := VideoID(args.URL)
	if err != nil {
		return "", err
	}
	lang := strings.TrimSpace(args.Language)
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	if meta, err := t.metadata(ctx, id); err != nil {
		t.logger.Debug("youtube metadata unavailable", "video", id, "error", err)
	} else {
		fmt.Fprintf(&sb, "Title: %s\nChannel: %s\n", meta.Title, meta.AuthorName)
	}
	fmt.Fprintf(&sb, "Video: https://www.youtube.com/watch?v=%s\n\n", id)

	lines, err := t.captions(ctx, id, lang)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		sb.WriteString("No captions are available for this video.")
		return sb.String(), nil
	}
	sb.WriteString("Transcript:\n")
	for _, l := range lines {
		fmt.Fprintf(&sb, "[%s - %s] %s\n", formatOffset(l.Start), formatOffset(l.Start+l.Duration), l.Text)
	}

	out := strings.TrimRight(sb.String(), "\n")
	if len(out) > maxFetchChars {
		out = out[:maxFetchChars] + "\n\n... [truncated]"
	}
	t.logger.Debug("youtube transcript fetched", "video", id, "lines", len(lines))
	return out, nil
}

// VideoID extracts the video id from a YouTube link or returns a bare id as is.
func VideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a YouTube video link: %q", raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "embed" || parts[0] == "shorts" || parts[0] == "live" || parts[0] == "v") {
			id = parts[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("not a YouTube video link: %q", raw)
	}
	return id, nil
}

type videoMetadata struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

func (t *YouTubeTranscriptTool) metadata(ctx context.Context, id string) (videoMetadata, error) {
	var meta videoMetadata
	q := url.Values{"format": {"json"}, "url": {"https://www.youtube.com/watch?v=" + id}}
	resp, err := t.get(ctx, t.baseURL+"/oembed?"+q.Encode())
	if err != nil {
		return meta, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return meta, fmt.Errorf("oembed returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, defaultMaxBodySize)).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode oembed: %w", err)
	}
	return meta, nil
}

type captionLine struct {
	Start    time.Duration
	Duration time.Duration
	Text     string
}

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

func (t *YouTubeTranscriptTool) captions(ctx context.Context, id, lang string) ([]captionLine, error) {
	q := url.Values{"v": {id}, "lang": {lang}}
	resp, err := t.get(ctx, t.baseURL+"/api/timedtext?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound || len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captions returned HTTP %d", resp.StatusCode)
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode captions: %w", err)
	}
	lines := make([]captionLine, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		text := strings.Join(strings.Fields(html.UnescapeString(l.Text)), " ")
		if text == "" {
			continue
		}
		lines = append(lines, captionLine{Start: seconds(l.Start), Duration: seconds(l.Dur), Text: text})
	}
	return lines, nil
}

func (t *YouTubeTranscriptTool) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentdeck/1.0")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube request: %w", err)
	}
	return resp, nil
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// formatOffset renders an offset as m:ss, or h:mm:ss past the hour.
func formatOffset(d time.Duration) string {
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
