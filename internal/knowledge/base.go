package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentdeck/agentdeck/internal/llm"
	"github.com/agentdeck/agentdeck/internal/memory"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/spf13/afero"
)

// Search tuning.
const (
	DefaultTopK = 3

	// VectorScoreThreshold drops vector hits below this cosine similarity.
	VectorScoreThreshold = 0.25
)

// indexedExts are the file types read when a knowledge path is a directory.
var indexedExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
	".csv":      true,
}

// Base is one agent's knowledge collection.
type Base struct {
	fs         afero.Fs
	store      memory.KnowledgeStore
	embedder   embedding.Embedder
	collection string
	log        *slog.Logger
}

// Option configures a Base.
type Option func(*Base)

// WithEmbedder enables vector search. Chunks are embedded when indexed and
// queries are embedded when searched.
func WithEmbedder(e embedding.Embedder) Option {
	return func(b *Base) { b.embedder = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Base) { b.log = l }
}

// New returns a Base over collection. fsys defaults to the OS filesystem.
func New(fsys afero.Fs, store memory.KnowledgeStore, collection string, opts ...Option) *Base {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	b := &Base{
		fs:         fsys,
		store:      store,
		collection: collection,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Collection returns the collection name.
func (b *Base) Collection() string { return b.collection }

// IndexStats summarises an Index call.
type IndexStats struct {
	Indexed int // files (re)chunked
	Skipped int // files whose content hash was unchanged
	Chunks  int // chunks written
}

// Index reads every file under paths and stores its chunks. Files whose
// content hash matches the stored one are left alone.
func (b *Base) Index(ctx context.Context, paths ...string) (IndexStats, error) {
	var stats IndexStats
	files, err := b.collect(paths)
	if err != nil {
		return stats, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, err := afero.ReadFile(b.fs, path)
		if err != nil {
			return stats, fmt.Errorf("read %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])

		prev, err := b.store.SourceHash(ctx, b.collection, path)
		if err != nil {
			return stats, err
		}
		if prev == hash {
			stats.Skipped++
			continue
		}

		texts := SplitParagraphs(string(data), MaxChunkChars)
		chunks := make([]memory.Chunk, len(texts))
		for i, t := range texts {
			chunks[i] = memory.Chunk{Collection: b.collection, Source: path, Seq: i, Content: t}
		}
		b.embedChunks(ctx, path, chunks)

		if err := b.store.ReplaceSource(ctx, b.collection, path, hash, chunks); err != nil {
			return stats, fmt.Errorf("index %s: %w", path, err)
		}
		stats.Indexed++
		stats.Chunks += len(chunks)
	}

	b.log.Debug("knowledge indexed", "collection", b.collection,
		"indexed", stats.Indexed, "skipped", stats.Skipped, "chunks", stats.Chunks)
	return stats, nil
}

// embedChunks attaches embeddings in place. A failing embedder leaves the
// chunks searchable by full text only.
func (b *Base) embedChunks(ctx context.Context, path string, chunks []memory.Chunk) {
	if b.embedder == nil || len(chunks) == 0 {
		return
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := llm.EmbedText(ctx, b.embedder, texts)
	if err != nil || len(vecs) != len(chunks) {
		b.log.Warn("embedding failed, falling back to full-text search", "path", path, "error", err)
		return
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
}

func (b *Base) collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := b.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("knowledge path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = afero.Walk(b.fs, p, func(path string, fi fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				if path != p && strings.HasPrefix(fi.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if indexedExts[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
