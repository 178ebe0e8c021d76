package memory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// Snapshot serializes the short-term store's events in arrival order.
// Restoring a snapshot preserves every event field and the capacity
// invariant.
func (s *ShortTermStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.events)
}

// Restore replaces the store contents with a previously taken snapshot.
// Snapshots larger than the configured capacity are rejected rather
// than silently truncated.
func (s *ShortTermStore) Restore(data []byte) error {
	var events []*core.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("restore short-term snapshot: %w", err)
	}
	if len(events) > s.config.MaxCapacity {
		return fmt.Errorf("snapshot holds %d events, capacity is %d", len(events), s.config.MaxCapacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	return nil
}

// Snapshot serializes the long-term store's events. Output order is
// stable (by id) so identical stores produce identical snapshots.
func (s *LongTermStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*core.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return json.Marshal(events)
}

// Restore replaces the store contents with a previously taken snapshot.
func (s *LongTermStore) Restore(data []byte) error {
	var events []*core.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("restore long-term snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]*core.Event, len(events))
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	s.enforceLoadCapLocked()
	return nil
}
