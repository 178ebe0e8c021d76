package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the atomic unit flowing through the cognitive pipeline.
// Scored on arrival, held in short-term memory, and optionally
// consolidated into long-term memory with an embedding.
type Event struct {
	// ID uniquely identifies the event across both memory stores.
	// Assigned at creation, never changed.
	ID string `json:"id"`

	// Content is the opaque text payload.
	Content string `json:"content"`

	// Embedding is populated only once the event is consolidated
	// into long-term memory.
	Embedding []float32 `json:"embedding,omitempty"`

	// Novelty is how unexpected the content is [0.0-1.0].
	// Set once by the scorer, immutable afterwards.
	Novelty float64 `json:"novelty"`

	// Significance is the event's importance [0.0-1.0]. It decays over
	// time and is reinforced (capped at 1.0) on retrieval.
	Significance float64 `json:"significance"`

	// Valence is the emotional charge [-1.0 (negative) to +1.0 (positive)].
	Valence float64 `json:"valence"`

	// Category is the novelty classification (Chaos/Foundation/Glow).
	Category Category `json:"category"`

	// CreatedAt is set at creation, immutable.
	CreatedAt time.Time `json:"created_at"`

	// AccessCount is incremented on every retrieval.
	AccessCount int `json:"access_count"`

	// LastAccessed tracks the most recent retrieval for decay and
	// eviction tie-breaking. Initialized to CreatedAt.
	LastAccessed time.Time `json:"last_accessed"`

	// Metadata carries caller-supplied context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewEvent creates an event with a fresh ID and timestamps.
func NewEvent(content string, now time.Time) *Event {
	return &Event{
		ID:           uuid.New().String(),
		Content:      content,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// Salience combines significance, novelty, and emotional charge into a
// single attention score.
func (e *Event) Salience() float64 {
	v := e.Valence
	if v < 0 {
		v = -v
	}
	return e.Significance*0.4 + e.Novelty*0.4 + v*0.2
}

// Reinforce records a retrieval: bumps the access count and strengthens
// significance by bonus, capped at 1.0.
func (e *Event) Reinforce(bonus float64, now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
	e.Significance += bonus
	if e.Significance > 1.0 {
		e.Significance = 1.0
	}
}

// Clone returns a deep copy. Stores hand out clones so readers never
// observe a store mid-mutation.
func (e *Event) Clone() *Event {
	cp := *e
	if e.Embedding != nil {
		cp.Embedding = make([]float32, len(e.Embedding))
		copy(cp.Embedding, e.Embedding)
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Clamp01 bounds v to [0.0, 1.0].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
