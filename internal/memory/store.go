package memory

import "context"

// History persists conversation turns per session.
type History interface {
	// EnsureSession creates the session if it does not exist and touches it otherwise.
	EnsureSession(ctx context.Context, s Session) error

	// AppendRun stores the messages of one query/response exchange.
	AppendRun(ctx context.Context, sessionID, runID string, msgs []Message) error

	// RecentRuns returns the messages of the last n runs of a session, oldest first.
	RecentRuns(ctx context.Context, sessionID string, n int) ([]Message, error)
}

// UserMemories persists facts about a user across sessions.
type UserMemories interface {
	// AddUserMemory stores a memory; identical text for the same user is not duplicated.
	AddUserMemory(ctx context.Context, m UserMemory) (UserMemory, error)

	// ListUserMemories returns up to limit memories for a user, newest first.
	ListUserMemories(ctx context.Context, userID string, limit int) ([]UserMemory, error)

	// ClearUserMemories deletes every memory for a user.
	ClearUserMemories(ctx context.Context, userID string) (int64, error)
}

// KnowledgeStore persists document chunks for retrieval.
type KnowledgeStore interface {
	// ReplaceSource swaps every chunk of (collection, source) for chunks and
	// records hash so unchanged files can be skipped next time.
	ReplaceSource(ctx context.Context, collection, source, hash string, chunks []Chunk) error

	// SourceHash returns the hash recorded for a source, or "".
	SourceHash(ctx context.Context, collection, source string) (string, error)

	// SearchChunks runs a BM25 full-text search within a collection.
	SearchChunks(ctx context.Context, collection, query string, limit int) ([]ChunkResult, error)

	// EmbeddedChunks returns every chunk in a collection that carries an embedding.
	EmbeddedChunks(ctx context.Context, collection string) ([]Chunk, error)
}

// Store is everything the agents persist.
type Store interface {
	History
	UserMemories
	KnowledgeStore
	Close() error
}
