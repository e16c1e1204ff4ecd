package memory

import "time"

// Message roles, matching eino's schema.RoleType values.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one conversation with an agent.
type Session struct {
	ID        string
	AgentKey  string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one stored turn.
type Message struct {
	ID        int64
	SessionID string
	RunID     string
	Role      string
	Content   string
	CreatedAt time.Time
}

// UserMemory is a fact the agent chose to remember about a user.
type UserMemory struct {
	ID        string
	UserID    string
	Memory    string
	Topics    []string
	CreatedAt time.Time
}

// Chunk is a slice of a knowledge document.
type Chunk struct {
	ID         string
	Collection string
	Source     string
	Seq        int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// ChunkResult is a full-text hit; lower Rank is more relevant (BM25).
type ChunkResult struct {
	Chunk
	Rank float64
}
