package memory

import (
	"context"
	"math"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local SDK), API-based (production).
//
// Embed is assumed deterministic for identical input within a session;
// determinism across model versions is not guaranteed.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Archive is a durable, similarity-searchable mirror of consolidated
// events. The long-term store remains the source of truth; an archive
// receives copies for persistence or external search.
// Implementations: chromem (embedded vector DB), pgvector (production).
type Archive interface {
	// Store saves an event copy. The event must have its embedding set.
	Store(ctx context.Context, ev *core.Event) error

	// Query retrieves archived events by vector similarity,
	// highest similarity first.
	Query(ctx context.Context, embedding []float32, limit int) ([]*core.Event, error)

	// Close releases resources.
	Close() error
}

// SearchResult pairs a retrieved event with its similarity score.
type SearchResult struct {
	Event *core.Event
	Score float64
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or empty vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
