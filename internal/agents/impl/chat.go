package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/tools"
	"github.com/agentdeck/agentdeck/internal/knowledge"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// defaultMaxSteps bounds tool-calling rounds when the spec sets none.
const defaultMaxSteps = 10

// ChatAgent is a single LLM-backed agent. With tools it runs Eino's ReAct
// loop; without tools it calls the model directly.
type ChatAgent struct {
	core.BaseAgent
	spec  core.AgentSpec
	model model.ToolCallingChatModel
	tools []tool.BaseTool
	store memory.Store    // nil unless memory is enabled
	kb    *knowledge.Base // nil without knowledge paths
	log   *slog.Logger
	now   func() time.Time
}

// Traits implements core.TraitsProvider.
func (a *ChatAgent) Traits() core.Traits {
	return core.Traits{Markdown: a.spec.Markdown, Stream: a.spec.Stream}
}

// Spec returns the spec the agent was built from.
func (a *ChatAgent) Spec() core.AgentSpec { return a.spec }

// Run implements core.Agent.
func (a *ChatAgent) Run(ctx context.Context, in core.Input) (core.Output, error) {
	start := time.Now()
	in = a.normalize(in)
	out := core.Output{AgentName: a.Name(), SessionID: in.SessionID, Markdown: a.spec.Markdown}

	msgs, err := a.buildMessages(ctx, in)
	if err != nil {
		return out, err
	}
	ctx = a.runContext(ctx, in)

	var resp *schema.Message
	if len(a.tools) == 0 {
		resp, err = a.model.Generate(ctx, msgs)
	} else {
		var ag *react.Agent
		if ag, err = a.reactAgent(ctx); err == nil {
			resp, err = ag.Generate(ctx, msgs)
		}
	}
	if err != nil {
		return out, fmt.Errorf("%s: %w", a.Name(), err)
	}

	out.Content = resp.Content
	out.Duration = time.Since(start)
	a.remember(ctx, in, out.Content)
	return out, nil
}

// Stream implements core.Streamer. The run is recorded in memory once the
// stream has been read to the end.
func (a *ChatAgent) Stream(ctx context.Context, in core.Input) (*schema.StreamReader[string], error) {
	in = a.normalize(in)
	msgs, err := a.buildMessages(ctx, in)
	if err != nil {
		return nil, err
	}
	ctx = a.runContext(ctx, in)

	var src *schema.StreamReader[*schema.Message]
	if len(a.tools) == 0 {
		src, err = a.model.Stream(ctx, msgs)
	} else {
		var ag *react.Agent
		if ag, err = a.reactAgent(ctx); err == nil {
			src, err = ag.Stream(ctx, msgs)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}

	sr, sw := schema.Pipe[string](8)
	go func() {
		defer sw.Close()
		defer src.Close()
		var sb strings.Builder
		for {
			chunk, err := src.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				sw.Send("", fmt.Errorf("%s: %w", a.Name(), err))
				return
			}
			if chunk.Content == "" {
				continue
			}
			sb.WriteString(chunk.Content)
			if closed := sw.Send(chunk.Content, nil); closed {
				return
			}
		}
		a.remember(ctx, in, sb.String())
	}()
	return sr, nil
}

func (a *ChatAgent) normalize(in core.Input) core.Input {
	if in.SessionID == "" {
		in.SessionID = uuid.New().String()
	}
	if in.UserID == "" {
		in.UserID = a.spec.Memory.UserID
	}
	return in
}

// runContext attaches the user id for the memory tool and the tracing callbacks.
func (a *ChatAgent) runContext(ctx context.Context, in core.Input) context.Context {
	if in.UserID != "" {
		ctx = tools.WithUserID(ctx, in.UserID)
	}
	h := core.NewCallbackHandler(a.log, a.Name())
	if obs := core.ToolObserverFrom(ctx); obs != nil {
		h.OnToolCall(obs)
	}
	return core.WithCallbacks(ctx, a.Name(), h)
}

func (a *ChatAgent) reactAgent(ctx context.Context) (*react.Agent, error) {
	steps := a.spec.MaxSteps
	if steps <= 0 {
		steps = defaultMaxSteps
	}
	ag, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: a.model,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: a.tools},
		// Each round is a model step and a tools step, plus the final answer.
		MaxStep: steps*2 + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create ReAct agent: %w", err)
	}
	return ag, nil
}

// remember stores the exchange when memory is enabled. Failures are logged;
// the answer has already been produced.
func (a *ChatAgent) remember(ctx context.Context, in core.Input, answer string) {
	if a.store == nil || !a.spec.Memory.Enabled {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := a.store.EnsureSession(ctx, memory.Session{ID: in.SessionID, AgentKey: a.Name(), UserID: in.UserID}); err != nil {
		a.log.Warn("save session failed", "session", in.SessionID, "error", err)
		return
	}
	msgs := []memory.Message{
		{Role: memory.RoleUser, Content: in.Query},
		{Role: memory.RoleAssistant, Content: answer},
	}
	if err := a.store.AppendRun(ctx, in.SessionID, uuid.New().String(), msgs); err != nil {
		a.log.Warn("save run failed", "session", in.SessionID, "error", err)
	}
}

var (
	_ core.Agent          = (*ChatAgent)(nil)
	_ core.Streamer       = (*ChatAgent)(nil)
	_ core.TraitsProvider = (*ChatAgent)(nil)
)
