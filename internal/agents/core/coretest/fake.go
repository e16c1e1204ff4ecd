// Package coretest provides agent fakes for tests.
package coretest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agentdeck/agentdeck/internal/agents/core"
	"github.com/cloudwego/eino/schema"
)

// Agent is a scripted core.Agent. Respond defaults to echoing the query.
type Agent struct {
	AgentName string
	Desc      string
	Respond   func(in core.Input) (string, error)
	Markdown  bool

	mu     sync.Mutex
	inputs []core.Input
}

// NewAgent returns an echoing agent.
func NewAgent(name, description string) *Agent {
	return &Agent{AgentName: name, Desc: description}
}

func (a *Agent) Name() string        { return a.AgentName }
func (a *Agent) Description() string { return a.Desc }

// Run implements core.Agent.
func (a *Agent) Run(ctx context.Context, in core.Input) (core.Output, error) {
	start := time.Now()
	content, err := a.respond(ctx, in)
	if err != nil {
		return core.Output{AgentName: a.AgentName}, err
	}
	return core.Output{
		AgentName: a.AgentName,
		Content:   content,
		SessionID: in.SessionID,
		Duration:  time.Since(start),
		Markdown:  a.Markdown,
	}, nil
}

func (a *Agent) respond(ctx context.Context, in core.Input) (string, error) {
	a.mu.Lock()
	a.inputs = append(a.inputs, in)
	a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.Respond != nil {
		return a.Respond(in)
	}
	return "echo: " + in.Query, nil
}

// Inputs returns every input the agent received.
func (a *Agent) Inputs() []core.Input {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Input(nil), a.inputs...)
}

// StreamingAgent is an Agent that also streams its response word by word.
type StreamingAgent struct {
	*Agent
}

// NewStreamingAgent returns an echoing streaming agent.
func NewStreamingAgent(name, description string) *StreamingAgent {
	return &StreamingAgent{Agent: NewAgent(name, description)}
}

// Stream implements core.Streamer.
func (s *StreamingAgent) Stream(ctx context.Context, in core.Input) (*schema.StreamReader[string], error) {
	content, err := s.respond(ctx, in)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(strings.SplitAfter(content, " ")), nil
}

// Traits implements core.TraitsProvider.
func (s *StreamingAgent) Traits() core.Traits {
	return core.Traits{Markdown: s.Markdown, Stream: true}
}
