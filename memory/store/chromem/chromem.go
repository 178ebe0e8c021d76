// Package chromem provides a chromem-go backed Archive: an embedded,
// similarity-searchable mirror of consolidated events. chromem-go is a
// pure Go vector database, so the local SDK gets durable-style search
// without an external service.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/cerebral-go-sdk/core"
	"github.com/becomeliminal/cerebral-go-sdk/memory"
)

// Archive stores event copies in a chromem collection.
type Archive struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
}

var _ memory.Archive = (*Archive)(nil)

// New creates an in-memory chromem archive.
func New() (*Archive, error) {
	db := chromem.NewDB()

	// Embeddings are always provided by the caller, so no embedding
	// func and default cosine distance.
	col, err := db.CreateCollection("consolidated", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Archive{db: db, collection: col}, nil
}

// Store saves an event copy. The event must already carry its embedding.
func (a *Archive) Store(ctx context.Context, ev *core.Event) error {
	if ev == nil || ev.ID == "" {
		return core.ErrInvalidInput
	}
	if len(ev.Embedding) == 0 {
		return fmt.Errorf("event %s has no embedding", ev.ID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc := chromem.Document{
		ID:        ev.ID,
		Content:   ev.Content,
		Embedding: ev.Embedding,
		Metadata:  encodeMetadata(ev),
	}
	if err := a.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	log.Printf("[ARCHIVE] Stored event %s (category=%s)", ev.ID, ev.Category)
	return nil
}

// Query retrieves archived events by vector similarity, highest first.
func (a *Archive) Query(ctx context.Context, embedding []float32, limit int) ([]*core.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// chromem rejects nResults beyond the collection size.
	if count := a.collection.Count(); limit > count {
		limit = count
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := a.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	events := make([]*core.Event, 0, len(results))
	for _, res := range results {
		ev, err := decodeResult(res)
		if err != nil {
			log.Printf("[ARCHIVE] Skipping result %s: %v", res.ID, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close releases resources. chromem keeps everything in memory, so
// there is nothing to flush.
func (a *Archive) Close() error {
	return nil
}

func encodeMetadata(ev *core.Event) map[string]string {
	meta := map[string]string{
		"category":      ev.Category.String(),
		"novelty":       strconv.FormatFloat(ev.Novelty, 'f', -1, 64),
		"significance":  strconv.FormatFloat(ev.Significance, 'f', -1, 64),
		"valence":       strconv.FormatFloat(ev.Valence, 'f', -1, 64),
		"created_at":    ev.CreatedAt.Format(time.RFC3339Nano),
		"last_accessed": ev.LastAccessed.Format(time.RFC3339Nano),
		"access_count":  strconv.Itoa(ev.AccessCount),
	}
	for k, v := range ev.Metadata {
		meta["x_"+k] = v
	}
	return meta
}

func decodeResult(res chromem.Result) (*core.Event, error) {
	category, err := core.ParseCategory(res.Metadata["category"])
	if err != nil {
		return nil, err
	}

	novelty, err := strconv.ParseFloat(res.Metadata["novelty"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse novelty: %w", err)
	}
	significance, err := strconv.ParseFloat(res.Metadata["significance"], 64)
	if err != nil {
		return nil, fmt.Errorf("parse significance: %w", err)
	}
	valence, _ := strconv.ParseFloat(res.Metadata["valence"], 64)
	accessCount, _ := strconv.Atoi(res.Metadata["access_count"])
	createdAt, _ := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
	lastAccessed, _ := time.Parse(time.RFC3339Nano, res.Metadata["last_accessed"])

	var custom map[string]string
	for k, v := range res.Metadata {
		if len(k) > 2 && k[:2] == "x_" {
			if custom == nil {
				custom = make(map[string]string)
			}
			custom[k[2:]] = v
		}
	}

	return &core.Event{
		ID:           res.ID,
		Content:      res.Content,
		Embedding:    res.Embedding,
		Novelty:      novelty,
		Significance: significance,
		Valence:      valence,
		Category:     category,
		CreatedAt:    createdAt,
		LastAccessed: lastAccessed,
		AccessCount:  accessCount,
		Metadata:     custom,
	}, nil
}
