package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentdeck/agentdeck/internal/knowledge"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// UpdateUserMemoryTool lets the model remember facts about the user.
type UpdateUserMemoryTool struct {
	store         memory.UserMemories
	defaultUserID string
}

func NewUpdateUserMemoryTool(store memory.UserMemories, defaultUserID string) *UpdateUserMemoryTool {
	return &UpdateUserMemoryTool{store: store, defaultUserID: defaultUserID}
}

func (t *UpdateUserMemoryTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameUpdateUserMemory,
		Desc: `Remember a durable fact about the user (name, preferences, goals) for future conversations.
Write the memory as a short third-person statement, e.g. "Prefers vegetarian recipes".
Set clear=true to forget everything remembered about the user.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"memory": {Type: "string", Desc: "The fact to remember", Required: false},
			"topics": {Type: "array", Desc: "Optional topic tags", ElemInfo: &schema.ParameterInfo{Type: "string"}, Required: false},
			"clear":  {Type: "boolean", Desc: "Forget all memories about the user", Required: false},
		}),
	}, nil
}

func (t *UpdateUserMemoryTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Memory string   `json:"memory"`
		Topics []string `json:"topics,omitempty"`
		Clear  bool     `json:"clear,omitempty"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}

	userID := UserIDFrom(ctx)
	if userID == "" {
		userID = t.defaultUserID
	}
	if userID == "" {
		return "No user is identified in this conversation; nothing was remembered.", nil
	}

	if args.Clear {
		n, err := t.store.ClearUserMemories(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Forgot %d memories.", n), nil
	}

	text := strings.TrimSpace(args.Memory)
	if text == "" {
		return "", fmt.Errorf("memory must not be empty")
	}
	if _, err := t.store.AddUserMemory(ctx, memory.UserMemory{UserID: userID, Memory: text, Topics: args.Topics}); err != nil {
		return "", err
	}
	return "Memory saved: " + text, nil
}

// SearchKnowledgeTool searches the agent's knowledge base.
type SearchKnowledgeTool struct {
	kb   KnowledgeSearcher
	topK int
}

func NewSearchKnowledgeTool(kb KnowledgeSearcher, topK int) *SearchKnowledgeTool {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &SearchKnowledgeTool{kb: kb, topK: topK}
}

func (t *SearchKnowledgeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: NameSearchKnowledge,
		Desc: `Search your knowledge base of reference documents. Prefer this over web_search for questions the documents cover.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: "string", Desc: "What to look for", Required: true},
		}),
	}, nil
}

func (t *SearchKnowledgeTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := parseArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	matches, err := t.kb.Search(ctx, args.Query, t.topK)
	if err != nil {
		return "", err
	}
	return knowledge.FormatMatches(matches), nil
}

var (
	_ tool.InvokableTool = (*UpdateUserMemoryTool)(nil)
	_ tool.InvokableTool = (*SearchKnowledgeTool)(nil)
)
