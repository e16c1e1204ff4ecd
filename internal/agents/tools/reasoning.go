package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// CurrentTimeTool reports the current date and time.
type CurrentTimeTool struct {
	now func() time.Time
}

func NewCurrentTimeTool(now func() time.Time) *CurrentTimeTool {
	if now == nil {
		now = time.Now
	}
	return &CurrentTimeTool{now: now}
}

func (t *CurrentTimeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameCurrentTime,
		Desc: `Get the current date and time, optionally in an IANA time zone such as "Europe/Paris".`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"timezone": {Type: "string", Desc: "IANA time zone name (default: local)", Required: false},
		}),
	}, nil
}

func (t *CurrentTimeTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Timezone string `json:"timezone,omitempty"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	now := t.now()
	if args.Timezone != "" {
		loc, err := time.LoadLocation(args.Timezone)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", args.Timezone)
		}
		now = now.In(loc)
	}
	return now.Format("Monday, 02 January 2006 15:04:05 MST"), nil
}

// ThinkTool gives the model a scratchpad. Thoughts are kept for the life of
// the tool and echoed back so the model can build on them.
type ThinkTool struct {
	logger *slog.Logger

	mu       sync.Mutex
	thoughts []string
}

func NewThinkTool(logger *slog.Logger) *ThinkTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThinkTool{logger: logger}
}

func (t *ThinkTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameThink,
		Desc: `Use this tool as a scratchpad to reason about the problem step by step before answering.
It does not fetch new information; it records your thought and returns all thoughts so far.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"thought": {Type: "string", Desc: "A step of reasoning", Required: true},
		}),
	}, nil
}

func (t *ThinkTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Thought string `json:"thought"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	thought := strings.TrimSpace(args.Thought)
	if thought == "" {
		return "", fmt.Errorf("thought must not be empty")
	}

	t.mu.Lock()
	t.thoughts = append(t.thoughts, thought)
	all := append([]string(nil), t.thoughts...)
	t.mu.Unlock()

	t.logger.Debug("think", "thought", thought)

	var sb strings.Builder
	sb.WriteString("Thoughts so far:\n")
	for i, th := range all {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, th)
	}
	return sb.String(), nil
}

var (
	_ tool.InvokableTool = (*CurrentTimeTool)(nil)
	_ tool.InvokableTool = (*ThinkTool)(nil)
)
