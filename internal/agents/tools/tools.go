/*
Package tools provides the Eino tools agents can be given by name in their
definitions.
*/
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/agentdeck/agentdeck/internal/knowledge"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/tool"
)

// Tool names accepted in agent definitions.
const (
	NameWebSearch         = "web_search"
	NameWebFetch          = "web_fetch"
	NameCurrentTime       = "current_time"
	NameThink             = "think"
	NameUpdateUserMemory  = "update_user_memory"
	NameSearchKnowledge   = "search_knowledge"
	NameYouTubeTranscript = "youtube_transcript"
)

// ErrUnknownTool is returned by Resolve for a name with no implementation.
var ErrUnknownTool = errors.New("unknown tool")

const defaultHTTPTimeout = 30 * time.Second

// KnowledgeSearcher is the part of knowledge.Base the search tool needs.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Match, error)
}

// Deps carries what the tools need from the host.
type Deps struct {
	HTTPClient      *http.Client
	SearchBackend   SearchBackend // defaults to DuckDuckGo
	FirecrawlAPIKey string
	FirecrawlURL    string // defaults to DefaultFirecrawlURL
	YouTubeURL      string // defaults to DefaultYouTubeURL
	Memories        memory.UserMemories
	UserID          string // fallback when the query carries none
	Knowledge       KnowledgeSearcher
	KnowledgeTopK   int
	Now             func() time.Time
	Logger          *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if d.SearchBackend == nil {
		d.SearchBackend = NewDuckDuckGo(d.HTTPClient, "")
	}
	if d.FirecrawlURL == "" {
		d.FirecrawlURL = DefaultFirecrawlURL
	}
	if d.YouTubeURL == "" {
		d.YouTubeURL = DefaultYouTubeURL
	}
	if d.KnowledgeTopK <= 0 {
		d.KnowledgeTopK = knowledge.DefaultTopK
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// Names lists every tool name Resolve accepts.
func Names() []string {
	names := []string{
		NameWebSearch, NameWebFetch, NameCurrentTime,
		NameThink, NameUpdateUserMemory, NameSearchKnowledge, NameYouTubeTranscript,
	}
	sort.Strings(names)
	return names
}

// Resolve builds the named tools. Unknown names and tools whose dependencies
// are missing fail the whole call.
func Resolve(names []string, deps Deps) ([]tool.BaseTool, error) {
	deps = deps.withDefaults()
	seen := make(map[string]bool, len(names))
	out := make([]tool.BaseTool, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		var t tool.BaseTool
		switch name {
		case NameWebSearch:
			t = NewWebSearchTool(deps.SearchBackend, 0, deps.Logger)
		case NameWebFetch:
			t = NewWebFetchTool(deps.HTTPClient, deps.FirecrawlAPIKey, deps.FirecrawlURL, deps.Logger)
		case NameYouTubeTranscript:
			t = NewYouTubeTranscriptTool(deps.HTTPClient, deps.YouTubeURL, deps.Logger)
		case NameCurrentTime:
			t = NewCurrentTimeTool(deps.Now)
		case NameThink:
			t = NewThinkTool(deps.Logger)
		case NameUpdateUserMemory:
			if deps.Memories == nil {
				return nil, fmt.Errorf("tool %s requires memory to be enabled", name)
			}
			t = NewUpdateUserMemoryTool(deps.Memories, deps.UserID)
		case NameSearchKnowledge:
			if deps.Knowledge == nil {
				return nil, fmt.Errorf("tool %s requires knowledge paths", name)
			}
			t = NewSearchKnowledgeTool(deps.Knowledge, deps.KnowledgeTopK)
		default:
			return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTool, name, Names())
		}
		out = append(out, t)
	}
	return out, nil
}

type userIDKey struct{}

// WithUserID attaches the querying user's id to ctx for the memory tool.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the user id attached by WithUserID, or "".
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func parseArgs(argsJSON string, v any) error {
	if argsJSON == "" {
		argsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argsJSON), v); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return nil
}
