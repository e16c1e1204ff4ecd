// Package memory persists agent conversations, user memories and knowledge
// chunks in SQLite.
package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// InMemory opens a private, non-persistent database.
const InMemory = ":memory:"

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path.
// Pass InMemory for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != InMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create memory directory: %w", err)
		}
	}

	dsn := path
	if path != InMemory {
		// Pragmas in the DSN apply to every pooled connection.
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == InMemory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		agent_key TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		run_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(session_id, run_id);

	CREATE TABLE IF NOT EXISTS user_memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		memory TEXT NOT NULL,
		topics TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		UNIQUE(user_id, memory)
	);
	CREATE INDEX IF NOT EXISTS idx_user_memories_user ON user_memories(user_id, created_at);

	CREATE TABLE IF NOT EXISTS knowledge_sources (
		collection TEXT NOT NULL,
		source TEXT NOT NULL,
		hash TEXT NOT NULL,
		indexed_at TEXT NOT NULL,
		PRIMARY KEY (collection, source)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		source TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);

	-- FTS5 for keyword search (hybrid with vector similarity)
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		id UNINDEXED,
		content,
		content='chunks',
		content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS chunks_fts_ai AFTER INSERT ON chunks BEGIN
		INSERT INTO chunks_fts(rowid, id, content) VALUES (NEW.rowid, NEW.id, NEW.content);
	END;

	CREATE TRIGGER IF NOT EXISTS chunks_fts_ad AFTER DELETE ON chunks BEGIN
		INSERT INTO chunks_fts(chunks_fts, rowid, id, content) VALUES('delete', OLD.rowid, OLD.id, OLD.content);
	END;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// === History ===

// EnsureSession implements History.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_key, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, sess.ID, sess.AgentKey, sess.UserID, now, now)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// AppendRun implements History.
func (s *SQLiteStore) AppendRun(ctx context.Context, sessionID, runID string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, run_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, sessionID, runID, m.Role, m.Content, now); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// RecentRuns implements History.
func (s *SQLiteStore) RecentRuns(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, run_id, role, content, created_at
		FROM messages
		WHERE session_id = ? AND run_id IN (
			SELECT run_id FROM messages WHERE session_id = ?
			GROUP BY run_id ORDER BY MAX(id) DESC LIMIT ?
		)
		ORDER BY id
	`, sessionID, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.RunID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return msgs, nil
}

// === User memories ===

// AddUserMemory implements UserMemories.
func (s *SQLiteStore) AddUserMemory(ctx context.Context, m UserMemory) (UserMemory, error) {
	m.Memory = strings.TrimSpace(m.Memory)
	if m.UserID == "" || m.Memory == "" {
		return UserMemory{}, fmt.Errorf("user id and memory are required")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	topics, err := json.Marshal(m.Topics)
	if err != nil {
		return UserMemory{}, fmt.Errorf("marshal topics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_memories (id, user_id, memory, topics, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, memory) DO NOTHING
	`, m.ID, m.UserID, m.Memory, string(topics), m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return UserMemory{}, fmt.Errorf("insert user memory: %w", err)
	}
	return m, nil
}

// ListUserMemories implements UserMemories.
func (s *SQLiteStore) ListUserMemories(ctx context.Context, userID string, limit int) ([]UserMemory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, memory, topics, created_at
		FROM user_memories WHERE user_id = ?
		ORDER BY rowid DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query user memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UserMemory
	for rows.Next() {
		var m UserMemory
		var topics, createdAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &topics, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user memory: %w", err)
		}
		_ = json.Unmarshal([]byte(topics), &m.Topics)
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearUserMemories implements UserMemories.
func (s *SQLiteStore) ClearUserMemories(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_memories WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user memories: %w", err)
	}
	return res.RowsAffected()
}

// === Knowledge ===

// ReplaceSource implements KnowledgeStore.
func (s *SQLiteStore) ReplaceSource(ctx context.Context, collection, source, hash string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		var embedding []byte
		if len(c.Embedding) > 0 {
			embedding = float32SliceToBytes(c.Embedding)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, collection, source, seq, content, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, collection, source, i, c.Content, embedding, now); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO knowledge_sources (collection, source, hash, indexed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, source) DO UPDATE SET hash = excluded.hash, indexed_at = excluded.indexed_at
	`, collection, source, hash, now); err != nil {
		return fmt.Errorf("record source: %w", err)
	}
	return tx.Commit()
}

// SourceHash implements KnowledgeStore.
func (s *SQLiteStore) SourceHash(ctx context.Context, collection, source string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM knowledge_sources WHERE collection = ? AND source = ?`, collection, source).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query source hash: %w", err)
	}
	return hash, nil
}

// SearchChunks implements KnowledgeStore using FTS5 with BM25 ranking.
func (s *SQLiteStore) SearchChunks(ctx context.Context, collection, query string, limit int) ([]ChunkResult, error) {
	if limit <= 0 {
		limit = 5
	}
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.collection, c.source, c.seq, c.content, c.embedding, c.created_at,
		       bm25(chunks_fts) AS rank
		FROM chunks_fts f
		JOIN chunks c ON f.id = c.id
		WHERE chunks_fts MATCH ? AND c.collection = ?
		ORDER BY rank
		LIMIT ?
	`, match, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("FTS search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ChunkResult
	for rows.Next() {
		var r ChunkResult
		var embedding []byte
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Collection, &r.Source, &r.Seq, &r.Content, &embedding, &createdAt, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		r.Embedding = bytesToFloat32Slice(embedding)
		r.CreatedAt = parseTime(createdAt)
		results = append(results, r)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return results, nil
}

// EmbeddedChunks implements KnowledgeStore.
func (s *SQLiteStore) EmbeddedChunks(ctx context.Context, collection string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, source, seq, content, embedding, created_at
		FROM chunks WHERE collection = ? AND embedding IS NOT NULL
		ORDER BY source, seq
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var embedding []byte
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Collection, &c.Source, &c.Seq, &c.Content, &embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(embedding)
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// ftsStopWords are dropped from full-text queries; they match nearly every chunk.
var ftsStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "what": true, "which": true, "who": true, "this": true,
	"that": true, "these": true, "those": true, "it": true, "its": true,
	"of": true, "for": true, "with": true, "about": true, "to": true,
	"from": true, "in": true, "on": true, "how": true, "why": true,
	"when": true, "where": true, "me": true, "my": true, "can": true,
	"you": true, "your": true, "and": true, "or": true, "please": true,
}

// sanitizeFTSQuery turns free text into an FTS5 OR-query of quoted terms.
func sanitizeFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, " ", `^`, " ", `:`, " ", `(`, " ", `)`, " ",
		`{`, " ", `}`, " ", `[`, " ", `]`, " ", `-`, " ", `+`, " ",
		`?`, " ", `!`, " ", `.`, " ", `,`, " ", `;`, " ", `*`, " ",
		`'`, " ",
	)
	words := strings.Fields(replacer.Replace(strings.ToLower(query)))

	seen := make(map[string]bool, len(words))
	var quoted []string
	for _, w := range words {
		if len(w) < 2 || ftsStopWords[w] || seen[w] {
			continue
		}
		switch w {
		case "not", "near":
			continue
		}
		seen[w] = true
		quoted = append(quoted, `"`+w+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// === Helpers ===

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	floats := make([]float32, len(buf)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return floats
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
