package server

// AgentInfo describes a served agent.
type AgentInfo struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RunRequest is the payload for POST /api/agents/{id}/runs
type RunRequest struct {
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// RunResponse is the non-streaming run result.
type RunResponse struct {
	Agent      string           `json:"agent"`
	Content    string           `json:"content"`
	SessionID  string           `json:"session_id"`
	DurationMS int64            `json:"duration_ms"`
	Members    []MemberResponse `json:"members,omitempty"`
}

// MemberResponse is one team member's contribution.
type MemberResponse struct {
	Member  string `json:"member"`
	Content string `json:"content"`
}

// StreamChunk is the payload of each SSE data frame.
type StreamChunk struct {
	Content string `json:"content"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
