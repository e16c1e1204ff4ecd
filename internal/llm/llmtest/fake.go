// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeModel is a model.ToolCallingChatModel that answers from a script.
// Script, when set, is replayed message by message, which lets a test drive
// tool calls. Otherwise Reply computes the answer from the prompt, or Replies
// are returned in order. In every mode the last entry repeats.
type FakeModel struct {
	mu      sync.Mutex
	Script  []*schema.Message
	Replies []string
	Reply   func(msgs []*schema.Message) string
	Err     error
	Calls   [][]*schema.Message
	Tools   []*schema.ToolInfo
	calls   int
}

// NewFakeModel returns a model that answers with replies in order.
func NewFakeModel(replies ...string) *FakeModel {
	return &FakeModel{Replies: replies}
}

func (f *FakeModel) next(msgs []*schema.Message) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, msgs)
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Script) > 0 {
		i := min(f.calls, len(f.Script)-1)
		f.calls++
		return f.Script[i], nil
	}
	if f.Reply != nil {
		return schema.AssistantMessage(f.Reply(msgs), nil), nil
	}
	if len(f.Replies) == 0 {
		return nil, errors.New("llmtest: no scripted reply")
	}
	i := min(f.calls, len(f.Replies)-1)
	f.calls++
	return schema.AssistantMessage(f.Replies[i], nil), nil
}

// Generate implements model.BaseChatModel.
func (f *FakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.next(input)
}

// Stream implements model.BaseChatModel, splitting a text reply on spaces.
// Tool-call messages are delivered as a single chunk.
func (f *FakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg, err := f.next(input)
	if err != nil {
		return nil, err
	}
	if len(msg.ToolCalls) > 0 {
		return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
	}
	words := strings.SplitAfter(msg.Content, " ")
	chunks := make([]*schema.Message, 0, len(words))
	for _, w := range words {
		chunks = append(chunks, schema.AssistantMessage(w, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// WithTools implements model.ToolCallingChatModel.
func (f *FakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.mu.Lock()
	f.Tools = tools
	f.mu.Unlock()
	return f, nil
}

// CallCount reports how many prompts the model received.
func (f *FakeModel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastPrompt returns the concatenated contents of the most recent prompt.
func (f *FakeModel) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range f.Calls[len(f.Calls)-1] {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

var _ model.ToolCallingChatModel = (*FakeModel)(nil)
