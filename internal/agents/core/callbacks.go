package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
)

// CallbackHandler traces model and tool activity inside an agent run.
type CallbackHandler struct {
	log          *slog.Logger
	agent        string
	startTimes   map[string]time.Time
	mu           sync.Mutex
	onToolCall   func(tool, args string)
	onToolResult func(tool, result string)
}

// NewCallbackHandler creates a handler that logs at debug level under agent.
func NewCallbackHandler(log *slog.Logger, agent string) *CallbackHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CallbackHandler{
		log:        log,
		agent:      agent,
		startTimes: make(map[string]time.Time),
	}
}

// OnToolCall sets a callback for when a tool is invoked.
func (h *CallbackHandler) OnToolCall(fn func(tool, args string)) *CallbackHandler {
	h.onToolCall = fn
	return h
}

// OnToolResult sets a callback for when a tool returns.
func (h *CallbackHandler) OnToolResult(fn func(tool, result string)) *CallbackHandler {
	h.onToolResult = fn
	return h
}

// Build creates an Eino-compatible callback handler.
func (h *CallbackHandler) Build() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			h.mu.Lock()
			h.startTimes[info.Name] = time.Now()
			h.mu.Unlock()

			switch info.Component {
			case components.ComponentOfChatModel:
				if in := model.ConvCallbackInput(input); in != nil {
					h.log.Debug("model call", "agent", h.agent, "messages", len(in.Messages), "tools", len(in.Tools))
				}
			case components.ComponentOfTool:
				if in := tool.ConvCallbackInput(input); in != nil {
					h.log.Debug("tool call", "agent", h.agent, "tool", info.Name, "args", truncate(in.ArgumentsInJSON, 200))
					if h.onToolCall != nil {
						h.onToolCall(info.Name, in.ArgumentsInJSON)
					}
				}
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			h.mu.Lock()
			start, ok := h.startTimes[info.Name]
			delete(h.startTimes, info.Name)
			h.mu.Unlock()

			var duration time.Duration
			if ok {
				duration = time.Since(start)
			}

			switch info.Component {
			case components.ComponentOfChatModel:
				attrs := []any{"agent", h.agent, "duration_ms", duration.Milliseconds()}
				if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
					attrs = append(attrs, "total_tokens", out.TokenUsage.TotalTokens)
				}
				h.log.Debug("model done", attrs...)
			case components.ComponentOfTool:
				if out := tool.ConvCallbackOutput(output); out != nil {
					h.log.Debug("tool done", "agent", h.agent, "tool", info.Name, "duration_ms", duration.Milliseconds())
					if h.onToolResult != nil {
						h.onToolResult(info.Name, out.Response)
					}
				}
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			h.log.Warn("agent step failed", "agent", h.agent, "step", info.Name, "error", err)
			return ctx
		}).
		Build()
}

// WithCallbacks attaches h to ctx for the run named name.
func WithCallbacks(ctx context.Context, name string, h *CallbackHandler) context.Context {
	if h == nil {
		return ctx
	}
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{Name: name, Type: "Agent"}, h.Build())
}

type toolObserverKey struct{}

// ToolObserver is notified of tool calls made during a run.
type ToolObserver func(tool, args string)

// WithToolObserver returns a ctx carrying fn; agents report tool calls to it.
func WithToolObserver(ctx context.Context, fn ToolObserver) context.Context {
	return context.WithValue(ctx, toolObserverKey{}, fn)
}

// ToolObserverFrom returns the observer attached to ctx, if any.
func ToolObserverFrom(ctx context.Context) ToolObserver {
	fn, _ := ctx.Value(toolObserverKey{}).(ToolObserver)
	return fn
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
