package core

import "context"

// Team modes.
const (
	ModeCoordinate  = "coordinate"  // leader delegates to members, then synthesizes
	ModeRoute       = "route"       // leader picks one member to answer
	ModeCollaborate = "collaborate" // every member answers, leader merges
)

// Definition is the content of an agent package's definition file.
type Definition struct {
	Export string      `yaml:"export"`
	Agents []AgentSpec `yaml:"agents" validate:"dive"`
	Teams  []TeamSpec  `yaml:"teams" validate:"dive"`
}

// AgentSpec declares a single LLM-backed agent. An agent without a name
// cannot be a team member.
type AgentSpec struct {
	Name         string        `yaml:"name"`
	Role         string        `yaml:"role"`
	Description  string        `yaml:"description"`
	Model        string        `yaml:"model"`
	Instructions []string      `yaml:"instructions"`
	Tools        []string      `yaml:"tools" validate:"dive,required"`
	Markdown     bool          `yaml:"markdown"`
	Stream       bool          `yaml:"stream"`
	AddDatetime  bool          `yaml:"add_datetime"`
	Memory       MemorySpec    `yaml:"memory"`
	Knowledge    KnowledgeSpec `yaml:"knowledge"`
	MaxSteps     int           `yaml:"max_steps" validate:"gte=0,lte=50"`
}

// MemorySpec enables conversation history and user memories.
type MemorySpec struct {
	Enabled     bool   `yaml:"enabled"`
	Agentic     bool   `yaml:"agentic"` // expose update_user_memory to the model
	HistoryRuns int    `yaml:"history_runs" validate:"gte=0"`
	UserID      string `yaml:"user_id"`
}

// KnowledgeSpec attaches local documents for retrieval.
type KnowledgeSpec struct {
	Paths []string `yaml:"paths" validate:"dive,required"`
	TopK  int      `yaml:"top_k" validate:"gte=0"`
}

// TeamSpec declares a team over agents of the same definition file.
type TeamSpec struct {
	Name                string   `yaml:"name" validate:"required"`
	Description         string   `yaml:"description"`
	Mode                string   `yaml:"mode" validate:"omitempty,oneof=coordinate route collaborate"`
	Model               string   `yaml:"model"`
	Members             []string `yaml:"members" validate:"min=1,dive,required"`
	Instructions        []string `yaml:"instructions"`
	SuccessCriteria     string   `yaml:"success_criteria"`
	ShowMemberResponses bool     `yaml:"show_member_responses"`
	Markdown            bool     `yaml:"markdown"`
	Stream              bool     `yaml:"stream"`
}

// PackageMeta is the content of a package marker file. An empty marker is valid.
type PackageMeta struct {
	Title    string   `yaml:"title"`
	Examples []string `yaml:"examples"`
}

// AgentBuilder turns declarative specs into runnable agents.
type AgentBuilder interface {
	BuildAgent(ctx context.Context, spec AgentSpec) (Agent, error)
	BuildTeam(ctx context.Context, spec TeamSpec, members []Agent) (Agent, error)
}
