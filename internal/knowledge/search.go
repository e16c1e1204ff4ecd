package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agentdeck/agentdeck/internal/llm"
)

// Match is one search hit.
type Match struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	Method  string  `json:"method"` // "vector" or "fts"
}

// Search returns up to limit chunks relevant to query. Vector similarity is
// used when the collection has embeddings and the query can be embedded;
// otherwise BM25 full-text ranking.
func (b *Base) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultTopK
	}

	if b.embedder != nil {
		matches, err := b.vectorSearch(ctx, query, limit)
		if err != nil {
			b.log.Warn("vector search failed, using full-text search", "collection", b.collection, "error", err)
		} else if len(matches) > 0 {
			return matches, nil
		}
	}

	results, err := b.store.SearchChunks(ctx, b.collection, query, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		// bm25() is negative; lower is better.
		matches = append(matches, Match{
			Source:  r.Source,
			Content: r.Content,
			Score:   float32(-r.Rank),
			Method:  "fts",
		})
	}
	return matches, nil
}

func (b *Base) vectorSearch(ctx context.Context, query string, limit int) ([]Match, error) {
	chunks, err := b.store.EmbeddedChunks(ctx, b.collection)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	vecs, err := llm.EmbedText(ctx, b.embedder, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: empty response")
	}

	var matches []Match
	for _, c := range chunks {
		score := CosineSimilarity(vecs[0], c.Embedding)
		if score < VectorScoreThreshold {
			continue
		}
		matches = append(matches, Match{Source: c.Source, Content: c.Content, Score: score, Method: "vector"})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// FormatMatches renders matches as a prompt section.
func FormatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "No relevant documents found."
	}
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", m.Source, m.Content)
	}
	return sb.String()
}
