/*
Package core provides the agent capability contract, descriptors and the
registry the console and CLI resolve agents from.
*/
package core

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Agent is the capability every registry entry exposes.
type Agent interface {
	Name() string
	Description() string
	Run(ctx context.Context, input Input) (Output, error)
}

// Streamer is implemented by agents that can deliver a response
// incrementally. The stream is finite and not restartable; the concatenation
// of its fragments equals the Content Run would have produced.
type Streamer interface {
	Stream(ctx context.Context, input Input) (*schema.StreamReader[string], error)
}

// Traits are presentation hints an agent may declare.
type Traits struct {
	Markdown bool // render the response as markdown on a terminal
	Stream   bool // prefer streaming in the console
}

// TraitsProvider is implemented by agents that declare Traits.
type TraitsProvider interface {
	Traits() Traits
}

// TraitsOf returns a's declared traits, or the zero value.
func TraitsOf(a Agent) Traits {
	if tp, ok := a.(TraitsProvider); ok {
		return tp.Traits()
	}
	return Traits{}
}

// Input is one query to an agent.
type Input struct {
	Query     string
	SessionID string // conversation to continue; empty starts a new one
	UserID    string // owner of long-term memories
}

// Output captures an agent's response.
type Output struct {
	AgentName string
	Content   string
	SessionID string
	Duration  time.Duration
	Markdown  bool
	Members   []MemberResponse // populated by teams that show member responses
}

// MemberResponse is one team member's contribution.
type MemberResponse struct {
	Member  string
	Content string
}

// BaseAgent provides the identity half of Agent.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent creates a new BaseAgent.
func NewBaseAgent(name, description string) BaseAgent {
	return BaseAgent{name: name, description: description}
}

// Name returns the agent's display name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent description.
func (b *BaseAgent) Description() string { return b.description }
