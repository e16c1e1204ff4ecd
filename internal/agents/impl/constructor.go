/*
Package impl provides the LLM-backed agents and teams, the Constructor that
builds them from declarative specs, and the compiled-in agent catalog.
*/
package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/tools"
	"github.com/agentdeck/agentdeck/internal/knowledge"
	"github.com/agentdeck/agentdeck/internal/llm"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/afero"
)

// ModelFactory creates the chat model for a config.
type ModelFactory func(ctx context.Context, cfg llm.Config) (model.ToolCallingChatModel, error)

// EmbedderFactory creates the embedder used for knowledge search.
type EmbedderFactory func(ctx context.Context, cfg llm.Config) (embedding.Embedder, error)

// Deps are the collaborators shared by every agent a Constructor builds.
type Deps struct {
	LLM             llm.Config
	Store           memory.Store // nil disables memory and knowledge
	Fs              afero.Fs     // knowledge files; defaults to the OS filesystem
	Tools           tools.Deps
	Logger          *slog.Logger
	ModelFactory    ModelFactory    // defaults to llm.NewChatModel
	EmbedderFactory EmbedderFactory // defaults to llm.NewEmbedder
}

// Constructor implements core.AgentBuilder.
type Constructor struct {
	deps Deps

	embedOnce sync.Once
	embedder  embedding.Embedder
}

// NewConstructor returns a Constructor over deps.
func NewConstructor(deps Deps) *Constructor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.ModelFactory == nil {
		deps.ModelFactory = llm.NewChatModel
	}
	if deps.EmbedderFactory == nil {
		deps.EmbedderFactory = llm.NewEmbedder
	}
	if deps.Tools.Logger == nil {
		deps.Tools.Logger = deps.Logger
	}
	return &Constructor{deps: deps}
}

// BuildAgent implements core.AgentBuilder.
func (c *Constructor) BuildAgent(ctx context.Context, spec core.AgentSpec) (core.Agent, error) {
	a, err := c.NewChatAgent(ctx, spec)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewChatAgent builds a ChatAgent from spec.
func (c *Constructor) NewChatAgent(ctx context.Context, spec core.AgentSpec) (*ChatAgent, error) {
	cm, err := c.chatModel(ctx, spec.Model)
	if err != nil {
		return nil, err
	}

	usesMemory := spec.Memory.Enabled || spec.Memory.Agentic
	if usesMemory && c.deps.Store == nil {
		return nil, fmt.Errorf("agent %q: memory requires a store", spec.Name)
	}

	var kb *knowledge.Base
	if len(spec.Knowledge.Paths) > 0 {
		if kb, err = c.knowledgeBase(ctx, spec); err != nil {
			return nil, err
		}
	}

	toolNames := append([]string(nil), spec.Tools...)
	if spec.Memory.Agentic && !slices.Contains(toolNames, tools.NameUpdateUserMemory) {
		toolNames = append(toolNames, tools.NameUpdateUserMemory)
	}

	td := c.deps.Tools
	td.UserID = spec.Memory.UserID
	td.KnowledgeTopK = spec.Knowledge.TopK
	if usesMemory {
		td.Memories = c.deps.Store
	}
	if kb != nil {
		td.Knowledge = kb
	}
	agentTools, err := tools.Resolve(toolNames, td)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", spec.Name, err)
	}

	a := &ChatAgent{
		BaseAgent: core.NewBaseAgent(spec.Name, agentDescription(spec)),
		spec:      spec,
		model:     cm,
		tools:     agentTools,
		kb:        kb,
		log:       c.deps.Logger.With("agent", spec.Name),
		now:       c.deps.Tools.Now,
	}
	if usesMemory {
		a.store = c.deps.Store
	}
	return a, nil
}

// BuildTeam implements core.AgentBuilder.
func (c *Constructor) BuildTeam(ctx context.Context, spec core.TeamSpec, members []core.Agent) (core.Agent, error) {
	t, err := c.NewTeamAgent(ctx, spec, members)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewTeamAgent builds a TeamAgent led by a model over members.
func (c *Constructor) NewTeamAgent(ctx context.Context, spec core.TeamSpec, members []core.Agent) (*TeamAgent, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("team %q has no members", spec.Name)
	}
	for i, m := range members {
		if m == nil {
			return nil, fmt.Errorf("team %q: %w: member %d", spec.Name, core.ErrNilAgent, i)
		}
	}
	leader, err := c.chatModel(ctx, spec.Model)
	if err != nil {
		return nil, err
	}
	mode := spec.Mode
	if mode == "" {
		mode = core.ModeCoordinate
	}
	return &TeamAgent{
		BaseAgent: core.NewBaseAgent(spec.Name, spec.Description),
		spec:      spec,
		mode:      mode,
		leader:    leader,
		members:   members,
		log:       c.deps.Logger.With("team", spec.Name),
	}, nil
}

func (c *Constructor) chatModel(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
	cfg, err := c.deps.LLM.WithModel(modelID)
	if err != nil {
		return nil, err
	}
	cm, err := c.deps.ModelFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return cm, nil
}

// knowledgeBase indexes the spec's knowledge paths into a collection named
// after the agent.
func (c *Constructor) knowledgeBase(ctx context.Context, spec core.AgentSpec) (*knowledge.Base, error) {
	if c.deps.Store == nil {
		return nil, fmt.Errorf("agent %q: knowledge requires a store", spec.Name)
	}
	opts := []knowledge.Option{knowledge.WithLogger(c.deps.Logger)}
	if e := c.embedderFor(ctx); e != nil {
		opts = append(opts, knowledge.WithEmbedder(e))
	}
	kb := knowledge.New(c.deps.Fs, c.deps.Store, collectionName(spec.Name), opts...)
	if _, err := kb.Index(ctx, spec.Knowledge.Paths...); err != nil {
		return nil, fmt.Errorf("agent %q: %w", spec.Name, err)
	}
	return kb, nil
}

// embedderFor returns the shared embedder, or nil when the provider has none.
func (c *Constructor) embedderFor(ctx context.Context) embedding.Embedder {
	c.embedOnce.Do(func() {
		e, err := c.deps.EmbedderFactory(ctx, c.deps.LLM)
		if err != nil {
			if !errors.Is(err, llm.ErrEmbeddingUnsupported) {
				c.deps.Logger.Warn("embedder unavailable, knowledge search uses full text only", "error", err)
			}
			return
		}
		c.embedder = e
	})
	return c.embedder
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func collectionName(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "agent"
	}
	return slug
}

func agentDescription(spec core.AgentSpec) string {
	if spec.Description != "" {
		return spec.Description
	}
	return spec.Role
}

var _ core.AgentBuilder = (*Constructor)(nil)
