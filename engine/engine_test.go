package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
	"github.com/becomeliminal/cerebral-go-sdk/engine"
	"github.com/becomeliminal/cerebral-go-sdk/memory"
	"github.com/becomeliminal/cerebral-go-sdk/memory/embedder/mock"
	"github.com/becomeliminal/cerebral-go-sdk/router"
	"github.com/becomeliminal/cerebral-go-sdk/scorer"
)

// echoCompleter returns a canned response tagged with the provider.
type echoCompleter struct {
	err error
}

func (c *echoCompleter) Complete(ctx context.Context, prompt string, provider router.ProviderID) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("[%s] ok", provider), nil
}

// brokenEmbedder always fails, simulating an unavailable model.
type brokenEmbedder struct{}

func (brokenEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func (brokenEmbedder) Dimensions() int { return 3 }

func newScorer(t *testing.T, cfg *scorer.Config) *scorer.Scorer {
	t.Helper()
	s, err := scorer.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func newRouter() *router.Router {
	r := router.New(router.Config{Seed: 1})
	r.RegisterRule(engine.TaskReasoning, []router.Candidate{{Provider: "opus", Weight: 1}})
	r.RegisterRule(engine.TaskCreative, []router.Candidate{{Provider: "sonnet", Weight: 1}})
	r.RegisterRule(engine.TaskFast, []router.Candidate{{Provider: "haiku", Weight: 1}})
	return r
}

func TestProcessFlashbulbEndToEnd(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)

	e := engine.New(newScorer(t, nil), shortTerm, longTerm,
		engine.WithRouter(newRouter()),
		engine.WithCompleter(&echoCompleter{}),
	)

	outcome, err := e.Process(context.Background(), engine.Input{
		Content:   "Breakthrough!! the fix finally works",
		SessionID: "session-1",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if outcome.Category != core.Glow {
		t.Errorf("Category = %s, want glow", outcome.Category)
	}
	if !outcome.Flashbulb {
		t.Error("High arousal plus high novelty should be a flashbulb moment")
	}
	if !outcome.Consolidated {
		t.Error("A glow event should consolidate immediately")
	}
	if outcome.TaskType != engine.TaskReasoning {
		t.Errorf("TaskType = %s, want reasoning", outcome.TaskType)
	}
	if outcome.Provider != "opus" {
		t.Errorf("Provider = %s, want opus", outcome.Provider)
	}
	if outcome.Response != "[opus] ok" {
		t.Errorf("Response = %q", outcome.Response)
	}

	// Consolidation moved the event out of short-term memory.
	if shortTerm.Len() != 0 {
		t.Errorf("Short-term count = %d, want 0 after consolidation", shortTerm.Len())
	}
	if longTerm.Len() != 1 {
		t.Errorf("Long-term count = %d, want 1", longTerm.Len())
	}
	if stored := longTerm.Get(outcome.Event.ID); stored == nil {
		t.Error("Consolidated event missing from long-term memory")
	}
}

func TestProcessSuppressesChaos(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)

	e := engine.New(newScorer(t, nil), shortTerm, longTerm,
		engine.WithRouter(newRouter()),
		engine.WithCompleter(&echoCompleter{}),
	)

	outcome, err := e.Process(context.Background(), engine.Input{
		Content: "routine status update as usual",
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if outcome.ShouldProcess {
		t.Error("Low-novelty chaos should be suppressed")
	}
	if outcome.Event != nil {
		t.Error("A suppressed input must not create an event")
	}
	if outcome.TaskType != "" || outcome.Provider != "" {
		t.Error("A suppressed input must not be routed")
	}
	if shortTerm.Len() != 0 || longTerm.Len() != 0 {
		t.Error("A suppressed input must not touch the stores")
	}
}

func TestProcessFoundationStaysShortTerm(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)

	e := engine.New(newScorer(t, nil), shortTerm, longTerm,
		engine.WithRouter(newRouter()),
	)

	sig := 0.4
	outcome, err := e.Process(context.Background(), engine.Input{
		Content:      "met with the design team about the quarterly layout",
		Significance: &sig,
		Metadata:     map[string]string{"source": "calendar"},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if outcome.Category != core.Foundation {
		t.Errorf("Category = %s, want foundation", outcome.Category)
	}
	if outcome.Consolidated {
		t.Error("A mid-significance foundation event should stay in short-term memory")
	}
	if outcome.TaskType != engine.TaskFast {
		t.Errorf("TaskType = %s, want fast", outcome.TaskType)
	}
	if shortTerm.Len() != 1 {
		t.Errorf("Short-term count = %d, want 1", shortTerm.Len())
	}
	if longTerm.Len() != 0 {
		t.Errorf("Long-term count = %d, want 0", longTerm.Len())
	}
	if outcome.Event.Metadata["source"] != "calendar" {
		t.Error("Input metadata should carry onto the stored event")
	}
}

func TestProcessValenceOverride(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)
	e := engine.New(newScorer(t, nil), shortTerm, longTerm)

	val := -0.9
	outcome, err := e.Process(context.Background(), engine.Input{
		Content:       "something happened",
		UserInitiated: true,
		Valence:       &val,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Valence != -0.9 {
		t.Errorf("Valence = %v, want the override -0.9", outcome.Valence)
	}
	if outcome.Event.Valence != -0.9 {
		t.Errorf("Event valence = %v, want -0.9", outcome.Event.Valence)
	}
}

func TestProcessConsolidationFailureKeepsShortTerm(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(brokenEmbedder{}, nil)
	e := engine.New(newScorer(t, nil), shortTerm, longTerm)

	_, err = e.Process(context.Background(), engine.Input{
		Content: "Breakthrough!! the fix finally works",
	})

	var embErr *core.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("Expected EmbeddingError, got %v", err)
	}

	// The event must not be lost: it stays in short-term memory.
	if shortTerm.Len() != 1 {
		t.Errorf("Short-term count = %d, want 1 after a failed consolidation", shortTerm.Len())
	}
	if longTerm.Len() != 0 {
		t.Errorf("Long-term count = %d, want 0", longTerm.Len())
	}
}

func TestProcessCompletionFailure(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)

	e := engine.New(newScorer(t, nil), shortTerm, longTerm,
		engine.WithRouter(newRouter()),
		engine.WithCompleter(&echoCompleter{err: errors.New("rate limited")}),
	)

	outcome, err := e.Process(context.Background(), engine.Input{
		Content:       "something happened today",
		UserInitiated: true,
	})

	var compErr *core.CompletionError
	if !errors.As(err, &compErr) {
		t.Fatalf("Expected CompletionError, got %v", err)
	}
	if outcome.Provider == "" {
		t.Error("The outcome should still report which provider was picked")
	}
}

func TestTickDecaysAndPrunes(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)
	e := engine.New(newScorer(t, nil), shortTerm, longTerm)

	for i := 0; i < 3; i++ {
		ev := core.NewEvent(fmt.Sprintf("minor note %d", i), time.Now())
		ev.Significance = 0.2
		if err := shortTerm.Add(ev); err != nil {
			t.Fatal(err)
		}
	}

	// Ten minutes of exponential decay pushes 0.2 far below the floor.
	pruned, err := e.Tick(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(pruned) != 3 {
		t.Errorf("Pruned %d events, want 3", len(pruned))
	}
	if shortTerm.Len() != 0 {
		t.Errorf("Short-term count = %d, want 0", shortTerm.Len())
	}
}

func TestSystemState(t *testing.T) {
	shortTerm, err := memory.NewShortTerm(nil)
	if err != nil {
		t.Fatal(err)
	}
	longTerm := memory.NewLongTerm(mock.New(), nil)
	r := newRouter()
	r.StartExperiment("ab-test-1")

	e := engine.New(newScorer(t, nil), shortTerm, longTerm, engine.WithRouter(r))

	ev := core.NewEvent("note", time.Now())
	ev.Significance = 0.4
	if err := shortTerm.Add(ev); err != nil {
		t.Fatal(err)
	}

	state := e.SystemState()
	if state.ShortTermCount != 1 {
		t.Errorf("ShortTermCount = %d, want 1", state.ShortTermCount)
	}
	if state.LongTermCount != 0 {
		t.Errorf("LongTermCount = %d, want 0", state.LongTermCount)
	}
	if state.ActiveExperiment != "ab-test-1" {
		t.Errorf("ActiveExperiment = %q, want ab-test-1", state.ActiveExperiment)
	}
}
