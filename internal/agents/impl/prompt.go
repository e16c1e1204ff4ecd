package impl

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/agentdeck/agentdeck/internal/agents/tools"
	"github.com/agentdeck/agentdeck/internal/knowledge"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultHistoryRuns = 3
	userMemoryLimit    = 20
)

// buildMessages assembles the system prompt, replayed history and the query.
func (a *ChatAgent) buildMessages(ctx context.Context, in core.Input) ([]*schema.Message, error) {
	system, err := a.systemPrompt(ctx, in)
	if err != nil {
		return nil, err
	}
	msgs := []*schema.Message{schema.SystemMessage(system)}

	if a.store != nil && a.spec.Memory.Enabled {
		n := a.spec.Memory.HistoryRuns
		if n <= 0 {
			n = defaultHistoryRuns
		}
		history, err := a.store.RecentRuns(ctx, in.SessionID, n)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, m := range history {
			switch m.Role {
			case memory.RoleUser:
				msgs = append(msgs, schema.UserMessage(m.Content))
			case memory.RoleAssistant:
				msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
			}
		}
	}

	return append(msgs, schema.UserMessage(in.Query)), nil
}

func (a *ChatAgent) systemPrompt(ctx context.Context, in core.Input) (string, error) {
	var sb strings.Builder
	if a.Name() != "" {
		fmt.Fprintf(&sb, "You are %s.", a.Name())
	} else {
		sb.WriteString("You are a helpful assistant.")
	}
	if a.spec.Role != "" {
		fmt.Fprintf(&sb, " Your role: %s.", strings.TrimSuffix(a.spec.Role, "."))
	}
	if a.spec.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(a.spec.Description)
	}

	if len(a.spec.Instructions) > 0 {
		sb.WriteString("\n\n<instructions>\n")
		for _, ins := range a.spec.Instructions {
			fmt.Fprintf(&sb, "- %s\n", ins)
		}
		sb.WriteString("</instructions>")
	}

	if a.spec.Markdown {
		sb.WriteString("\n\nUse markdown to format your answers.")
	}
	if a.spec.AddDatetime {
		now := time.Now
		if a.now != nil {
			now = a.now
		}
		fmt.Fprintf(&sb, "\n\nThe current time is %s.", now().Format(time.RFC1123))
	}

	if a.store != nil && in.UserID != "" {
		mems, err := a.store.ListUserMemories(ctx, in.UserID, userMemoryLimit)
		if err != nil {
			return "", fmt.Errorf("load user memories: %w", err)
		}
		if len(mems) > 0 {
			sb.WriteString("\n\n<memories_from_previous_interactions>\n")
			for _, m := range mems {
				fmt.Fprintf(&sb, "- %s\n", m.Memory)
			}
			sb.WriteString("</memories_from_previous_interactions>")
		}
		if a.spec.Memory.Agentic {
			sb.WriteString("\n\nWhen the user shares something worth remembering about themselves, call update_user_memory.")
		}
	}

	if a.kb != nil {
		if a.hasTool(tools.NameSearchKnowledge) {
			sb.WriteString("\n\nYou have a knowledge base. Call search_knowledge before answering questions it may cover.")
		} else {
			matches, err := a.kb.Search(ctx, in.Query, a.spec.Knowledge.TopK)
			if err != nil {
				return "", fmt.Errorf("search knowledge: %w", err)
			}
			if len(matches) > 0 {
				sb.WriteString("\n\nUse the following references from your knowledge base when relevant:\n<references>\n")
				sb.WriteString(knowledge.FormatMatches(matches))
				sb.WriteString("\n</references>")
			}
		}
	}

	return sb.String(), nil
}

func (a *ChatAgent) hasTool(name string) bool {
	return slices.ContainsFunc(a.tools, func(t tool.BaseTool) bool {
		info, err := t.Info(context.Background())
		return err == nil && info.Name == name
	})
}
