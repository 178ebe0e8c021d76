package memory

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// LongTermConfig holds long-term store tuning parameters.
type LongTermConfig struct {
	// CognitiveLoadCap bounds the store size. When exceeded, the
	// lowest-significance events (least-recently-accessed on ties) are
	// evicted on the next Consolidate. Zero means unbounded.
	CognitiveLoadCap int

	// ReinforcementBonus is added to significance on every retrieval,
	// capped at 1.0. Retrieval strengthens memory.
	// Default: 0.05
	ReinforcementBonus float64
}

// DefaultLongTermConfig returns sensible defaults for the local SDK.
var DefaultLongTermConfig = &LongTermConfig{
	CognitiveLoadCap:   1000,
	ReinforcementBonus: 0.05,
}

// LongTermStore holds consolidated events with embeddings and supports
// cosine similarity search and pattern completion. Embedding happens
// through the injected Embedder; the store never calls a network itself.
type LongTermStore struct {
	mu       sync.RWMutex
	config   *LongTermConfig
	embedder Embedder
	events   map[string]*core.Event
	nowFn    func() time.Time
}

// NewLongTerm creates a long-term store around an embedder. A nil
// config uses DefaultLongTermConfig.
func NewLongTerm(embedder Embedder, config *LongTermConfig) *LongTermStore {
	if config == nil {
		config = DefaultLongTermConfig
	}
	return &LongTermStore{
		config:   config,
		embedder: embedder,
		events:   make(map[string]*core.Event),
		nowFn:    time.Now,
	}
}

// SetClock overrides the store's notion of "now" for retrieval
// bookkeeping. Intended for tests.
func (s *LongTermStore) SetClock(now func() time.Time) {
	s.nowFn = now
}

// Len returns the current store size.
func (s *LongTermStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Get returns a copy of the stored event with the given id, or nil.
func (s *LongTermStore) Get(id string) *core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ev, ok := s.events[id]; ok {
		return ev.Clone()
	}
	return nil
}

// Consolidate inserts an event, computing its embedding first when
// absent. Consolidating an existing id replaces content and embedding
// rather than duplicating, so the operation is idempotent. An embedding
// failure leaves the store unchanged and surfaces as core.EmbeddingError.
// Cognitive-load eviction runs opportunistically after every insert.
func (s *LongTermStore) Consolidate(ctx context.Context, ev *core.Event) error {
	if ev == nil || ev.ID == "" {
		return core.ErrInvalidInput
	}

	stored := ev.Clone()
	if stored.Embedding == nil {
		emb, err := s.embedder.Embed(ctx, stored.Content)
		if err != nil {
			return &core.EmbeddingError{Err: err}
		}
		stored.Embedding = emb
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[stored.ID]; exists {
		log.Printf("[MEMORY] Updating consolidated event %s", stored.ID)
	}
	s.events[stored.ID] = stored

	s.enforceLoadCapLocked()
	return nil
}

// enforceLoadCapLocked evicts lowest-significance events
// (least-recently-accessed on ties) until the store is back under cap.
func (s *LongTermStore) enforceLoadCapLocked() {
	limit := s.config.CognitiveLoadCap
	if limit <= 0 {
		return
	}
	for len(s.events) > limit {
		var victim *core.Event
		for _, ev := range s.events {
			if victim == nil ||
				ev.Significance < victim.Significance ||
				(ev.Significance == victim.Significance && ev.LastAccessed.Before(victim.LastAccessed)) {
				victim = ev
			}
		}
		delete(s.events, victim.ID)
		log.Printf("[MEMORY] Cognitive load cap: evicted event %s (significance=%.2f)",
			victim.ID, victim.Significance)
	}
}

// Search embeds the query text and delegates to SearchVector.
func (s *LongTermStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	return s.SearchVector(ctx, emb, k)
}

// SearchVector returns the top-k events by cosine similarity to the
// query vector, descending, most recent CreatedAt first on ties. An
// empty store returns an empty result. Every returned event is
// reinforced: access count incremented and significance bumped (capped
// at 1.0). The context is checked between per-event comparisons;
// cancellation aborts with no reinforcement applied.
func (s *LongTermStore) SearchVector(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	scored, err := s.score(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Event.CreatedAt.After(scored[j].Event.CreatedAt)
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	// Selection is complete: commit reinforcement in one mutation.
	s.mu.Lock()
	now := s.nowFn()
	for i := range scored {
		if stored, ok := s.events[scored[i].Event.ID]; ok {
			stored.Reinforce(s.config.ReinforcementBonus, now)
			scored[i].Event = stored.Clone()
		}
	}
	s.mu.Unlock()

	log.Printf("[MEMORY] Search returned %d of requested %d", len(scored), k)
	return scored, nil
}

// PatternComplete returns the single best match for a partial cue when
// its similarity exceeds threshold, else nil. Read-only: reconstructive
// recall does not reinforce.
func (s *LongTermStore) PatternComplete(ctx context.Context, partial []float32, threshold float64) (*core.Event, error) {
	scored, err := s.score(ctx, partial)
	if err != nil {
		return nil, err
	}

	var best *SearchResult
	for i := range scored {
		if best == nil || scored[i].Score > best.Score {
			best = &scored[i]
		}
	}
	if best == nil || best.Score <= threshold {
		return nil, nil
	}
	return best.Event, nil
}

// score computes similarity against every stored embedding under a read
// snapshot, checking the context between comparisons.
func (s *LongTermStore) score(ctx context.Context, query []float32) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SearchResult, 0, len(s.events))
	for _, ev := range s.events {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ev.Embedding == nil {
			continue
		}
		out = append(out, SearchResult{
			Event: ev.Clone(),
			Score: CosineSimilarity(query, ev.Embedding),
		})
	}
	return out, nil
}
