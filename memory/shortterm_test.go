package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
	"github.com/becomeliminal/cerebral-go-sdk/memory"
)

func newEvent(t *testing.T, significance float64, createdAt time.Time) *core.Event {
	t.Helper()
	ev := core.NewEvent("event content", createdAt)
	ev.Significance = significance
	ev.Category = core.Foundation
	return ev
}

func TestShortTermInvalidCapacity(t *testing.T) {
	_, err := memory.NewShortTerm(&memory.ShortTermConfig{MaxCapacity: 0})

	var capErr *core.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Expected CapacityError, got %v", err)
	}
}

func TestShortTermCapacityInvariant(t *testing.T) {
	store, err := memory.NewShortTerm(&memory.ShortTermConfig{
		MaxCapacity:            3,
		ConsolidationThreshold: 0.7,
		PruneFloor:             0.05,
		DecayRate:              0.01,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	for i := 0; i < 10; i++ {
		if err := store.Add(newEvent(t, float64(i)/10, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Add #%d failed: %v", i, err)
		}
		if store.Len() > 3 {
			t.Fatalf("Store size %d exceeds capacity after add #%d", store.Len(), i)
		}
	}
}

func TestShortTermEvictsLowestSignificance(t *testing.T) {
	store, err := memory.NewShortTerm(&memory.ShortTermConfig{
		MaxCapacity:            2,
		ConsolidationThreshold: 0.7,
		PruneFloor:             0.05,
		DecayRate:              0.01,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	high := newEvent(t, 0.9, now)
	low := newEvent(t, 0.1, now.Add(time.Second))
	mid := newEvent(t, 0.5, now.Add(2*time.Second))

	for _, ev := range []*core.Event{high, low, mid} {
		if err := store.Add(ev); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if store.Len() != 2 {
		t.Fatalf("Store size = %d, want 2", store.Len())
	}
	ids := map[string]bool{}
	for _, ev := range store.Events() {
		ids[ev.ID] = true
	}
	if !ids[high.ID] || !ids[mid.ID] {
		t.Error("Expected the 0.9 and 0.5 events to survive")
	}
	if ids[low.ID] {
		t.Error("The 0.1-significance event should have been evicted")
	}
}

func TestShortTermEvictionTieBreaksOldest(t *testing.T) {
	store, err := memory.NewShortTerm(&memory.ShortTermConfig{
		MaxCapacity:            2,
		ConsolidationThreshold: 0.7,
		PruneFloor:             0.05,
		DecayRate:              0.01,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	older := newEvent(t, 0.5, now)
	newer := newEvent(t, 0.5, now.Add(time.Minute))

	if err := store.Add(older); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(newer); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(newEvent(t, 0.9, now.Add(2*time.Minute))); err != nil {
		t.Fatal(err)
	}

	for _, ev := range store.Events() {
		if ev.ID == older.ID {
			t.Error("On a significance tie the oldest event should go first")
		}
	}
}

func TestDecayMonotonic(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	for _, sig := range []float64{0.0, 0.2, 0.9, 1.0} {
		if err := store.Add(newEvent(t, sig, now)); err != nil {
			t.Fatal(err)
		}
	}

	before := map[string]float64{}
	for _, ev := range store.Events() {
		before[ev.ID] = ev.Significance
	}

	store.Decay(10 * time.Second)

	for _, ev := range store.Events() {
		if ev.Significance > before[ev.ID] {
			t.Errorf("Decay increased significance: %v -> %v", before[ev.ID], ev.Significance)
		}
		if ev.Significance < 0 {
			t.Errorf("Significance %v fell below 0", ev.Significance)
		}
	}

	// Zero elapsed must be a no-op.
	before = map[string]float64{}
	for _, ev := range store.Events() {
		before[ev.ID] = ev.Significance
	}
	store.Decay(0)
	for _, ev := range store.Events() {
		if ev.Significance != before[ev.ID] {
			t.Error("Decay with zero elapsed should not change significance")
		}
	}
}

func TestLinearDecayFloorsAtZero(t *testing.T) {
	store, err := memory.NewShortTerm(&memory.ShortTermConfig{
		MaxCapacity:            10,
		ConsolidationThreshold: 0.7,
		PruneFloor:             0.05,
		DecayRate:              0.5,
		DecayShape:             memory.DecayLinear,
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Add(newEvent(t, 0.3, time.Now())); err != nil {
		t.Fatal(err)
	}
	store.Decay(10 * time.Second)

	if got := store.Events()[0].Significance; got != 0 {
		t.Errorf("Significance = %v, want floored at 0", got)
	}
}

func TestPruneRemovesDecayedAscending(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	keep := newEvent(t, 0.5, now)
	tiny := newEvent(t, 0.04, now)
	tinier := newEvent(t, 0.01, now)
	for _, ev := range []*core.Event{keep, tiny, tinier} {
		if err := store.Add(ev); err != nil {
			t.Fatal(err)
		}
	}

	pruned, err := store.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if len(pruned) != 2 {
		t.Fatalf("Pruned %d events, want 2", len(pruned))
	}
	if pruned[0].ID != tinier.ID || pruned[1].ID != tiny.ID {
		t.Error("Pruned events should come back in ascending significance order")
	}
	if store.Len() != 1 {
		t.Errorf("Store size = %d, want 1", store.Len())
	}
}

func TestPruneCancelledLeavesStoreUnchanged(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Add(newEvent(t, 0.01, time.Now())); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Prune(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if store.Len() != 1 {
		t.Error("A cancelled prune must leave the store unchanged")
	}
}

func TestConsolidateCandidates(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now()
	strong := newEvent(t, 0.9, now)
	middling := newEvent(t, 0.4, now)
	glow := newEvent(t, 0.5, now)
	glow.Category = core.Glow

	for _, ev := range []*core.Event{middling, strong, glow} {
		if err := store.Add(ev); err != nil {
			t.Fatal(err)
		}
	}

	candidates := store.ConsolidateCandidates()
	if len(candidates) != 2 {
		t.Fatalf("Got %d candidates, want 2", len(candidates))
	}
	if candidates[0].ID != strong.ID || candidates[1].ID != glow.ID {
		t.Error("Candidates should be ordered by descending significance")
	}

	// Selection must not remove anything.
	if store.Len() != 3 {
		t.Errorf("Store size = %d, want 3 after candidate selection", store.Len())
	}
}

func TestRemove(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	ev := newEvent(t, 0.5, time.Now())
	if err := store.Add(ev); err != nil {
		t.Fatal(err)
	}

	if got := store.Remove(ev.ID); got == nil || got.ID != ev.ID {
		t.Error("Remove should return the removed event")
	}
	if store.Remove(ev.ID) != nil {
		t.Error("Removing an absent id should return nil")
	}
	if store.Len() != 0 {
		t.Errorf("Store size = %d, want 0", store.Len())
	}
}

func TestShortTermSnapshotRoundTrip(t *testing.T) {
	store, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	ev := newEvent(t, 0.66, now)
	ev.Novelty = 0.9
	ev.Valence = -0.25
	ev.Category = core.Glow
	ev.Metadata = map[string]string{"source": "test"}
	if err := store.Add(ev); err != nil {
		t.Fatal(err)
	}

	data, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	restored, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(data); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	events := restored.Events()
	if len(events) != 1 {
		t.Fatalf("Restored %d events, want 1", len(events))
	}
	got := events[0]
	if got.ID != ev.ID || got.Novelty != ev.Novelty || got.Significance != ev.Significance ||
		got.Valence != ev.Valence || got.Category != ev.Category ||
		!got.CreatedAt.Equal(ev.CreatedAt) || got.Metadata["source"] != "test" {
		t.Errorf("Round trip lost fields: got %+v, want %+v", got, ev)
	}
}
