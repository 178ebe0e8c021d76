package memory

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// DecayShape selects the decay function applied to significance.
type DecayShape int

const (
	// DecayExponential multiplies significance by exp(-rate*elapsed).
	DecayExponential DecayShape = iota
	// DecayLinear subtracts rate*elapsed from significance.
	DecayLinear
)

// ShortTermConfig holds short-term store tuning parameters.
type ShortTermConfig struct {
	// MaxCapacity bounds the store size. Must be > 0.
	MaxCapacity int

	// ConsolidationThreshold is the significance above which events
	// become consolidation candidates.
	// Default: 0.7
	ConsolidationThreshold float64

	// PruneFloor is the significance below which decayed events are
	// removed by Prune.
	// Default: 0.05
	PruneFloor float64

	// DecayRate is the decay constant per second of elapsed time.
	// Default: 0.01
	DecayRate float64

	// DecayShape selects exponential or linear decay.
	DecayShape DecayShape
}

// DefaultShortTermConfig returns sensible defaults for the local SDK.
var DefaultShortTermConfig = &ShortTermConfig{
	MaxCapacity:            50,
	ConsolidationThreshold: 0.7,
	PruneFloor:             0.05,
	DecayRate:              0.01,
	DecayShape:             DecayExponential,
}

// ShortTermStore holds recent events in arrival order with bounded
// capacity. It owns its events exclusively until consolidation or
// pruning removes them.
type ShortTermStore struct {
	mu     sync.RWMutex
	config *ShortTermConfig
	events []*core.Event
}

// NewShortTerm creates a short-term store. A nil config uses
// DefaultShortTermConfig. A non-positive capacity is a configuration
// error and fails with core.CapacityError.
func NewShortTerm(config *ShortTermConfig) (*ShortTermStore, error) {
	if config == nil {
		config = DefaultShortTermConfig
	}
	if config.MaxCapacity <= 0 {
		return nil, &core.CapacityError{Capacity: config.MaxCapacity}
	}
	return &ShortTermStore{config: config}, nil
}

// Add inserts an event in arrival order. At capacity it prunes decayed
// events first, and if the store is still full it evicts the single
// lowest-significance event (oldest first on ties) to make room. Every
// valid add succeeds.
func (s *ShortTermStore) Add(ev *core.Event) error {
	if ev == nil || ev.ID == "" {
		return core.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.config.MaxCapacity {
		removed, _ := s.pruneLocked(nil)
		if len(removed) > 0 {
			log.Printf("[MEMORY] Pruned %d decayed events to make room", len(removed))
		}
	}
	if len(s.events) >= s.config.MaxCapacity {
		s.evictOneLocked()
	}

	s.events = append(s.events, ev)
	return nil
}

// Len returns the current store size.
func (s *ShortTermStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Events returns a snapshot of the stored events in arrival order.
func (s *ShortTermStore) Events() []*core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Clone())
	}
	return out
}

// Decay reduces every event's significance for the given elapsed time.
// The elapsed duration is an explicit logical clock; the store never
// samples the wall clock. Significance is floored at 0 and never
// increases here.
func (s *ShortTermStore) Decay(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	secs := elapsed.Seconds()
	for _, ev := range s.events {
		switch s.config.DecayShape {
		case DecayExponential:
			ev.Significance *= math.Exp(-s.config.DecayRate * secs)
		case DecayLinear:
			ev.Significance -= s.config.DecayRate * secs
		}
		if ev.Significance < 0 {
			ev.Significance = 0
		}
	}
}

// Prune removes events whose significance has decayed below the floor,
// in ascending significance order, and returns them for audit logging.
// The context is checked between per-event comparisons; on cancellation
// the store is left unchanged.
func (s *ShortTermStore) Prune(ctx context.Context) ([]*core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pruneLocked(ctx)
}

// pruneLocked selects victims first and commits the removal only once
// selection completes, so a cancelled prune leaves no partial mutation.
func (s *ShortTermStore) pruneLocked(ctx context.Context) ([]*core.Event, error) {
	var victims []*core.Event
	for _, ev := range s.events {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ev.Significance < s.config.PruneFloor {
			victims = append(victims, ev)
		}
	}
	if len(victims) == 0 {
		return nil, nil
	}

	sort.SliceStable(victims, func(i, j int) bool {
		return victims[i].Significance < victims[j].Significance
	})

	doomed := make(map[string]bool, len(victims))
	for _, v := range victims {
		doomed[v.ID] = true
	}
	kept := s.events[:0]
	for _, ev := range s.events {
		if !doomed[ev.ID] {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return victims, nil
}

// evictOneLocked removes the lowest-significance event, oldest first on
// ties.
func (s *ShortTermStore) evictOneLocked() {
	if len(s.events) == 0 {
		return
	}
	victim := 0
	for i := 1; i < len(s.events); i++ {
		ev, best := s.events[i], s.events[victim]
		if ev.Significance < best.Significance ||
			(ev.Significance == best.Significance && ev.CreatedAt.Before(best.CreatedAt)) {
			victim = i
		}
	}
	evicted := s.events[victim]
	s.events = append(s.events[:victim], s.events[victim+1:]...)
	log.Printf("[MEMORY] Evicted event %s (significance=%.2f) at capacity", evicted.ID, evicted.Significance)
}

// ConsolidateCandidates returns events eligible for promotion to
// long-term memory: significance above the consolidation threshold, or
// Glow category. Descending significance order. Selection does not
// remove events; the orchestrator removes them once long-term storage
// confirms the insert.
func (s *ShortTermStore) ConsolidateCandidates() []*core.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Event
	for _, ev := range s.events {
		if ev.Significance > s.config.ConsolidationThreshold || ev.Category == core.Glow {
			out = append(out, ev.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Significance > out[j].Significance
	})
	return out
}

// Remove deletes the event with the given id and returns it, or nil if
// absent. Called by the orchestrator after a confirmed consolidation.
func (s *ShortTermStore) Remove(id string) *core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ev := range s.events {
		if ev.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return ev
		}
	}
	return nil
}
