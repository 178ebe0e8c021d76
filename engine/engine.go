// Package engine wires the cognitive pipeline together: emotional
// analysis, novelty scoring, short-term memory, consolidation into
// long-term memory, and provider routing for downstream completion.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
	"github.com/becomeliminal/cerebral-go-sdk/memory"
	"github.com/becomeliminal/cerebral-go-sdk/router"
	"github.com/becomeliminal/cerebral-go-sdk/scorer"
	"github.com/becomeliminal/cerebral-go-sdk/valence"
)

// Task types produced by complexity selection and consumed by routing
// rules.
const (
	TaskReasoning = "reasoning"
	TaskCreative  = "creative"
	TaskFast      = "fast"
)

// Engine orchestrates event processing. Stores are shared mutable
// resources guarded internally, so one engine serves concurrent
// sessions.
type Engine struct {
	scorer    *scorer.Scorer
	analyzer  *valence.Analyzer
	shortTerm *memory.ShortTermStore
	longTerm  *memory.LongTermStore
	router    *router.Router
	completer router.Completer
	archive   memory.Archive
	nowFn     func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithRouter attaches provider routing. Without it, outcomes carry no
// provider and no completion runs.
func WithRouter(r *router.Router) Option {
	return func(e *Engine) { e.router = r }
}

// WithCompleter attaches the external completion function. Requires a
// router.
func WithCompleter(c router.Completer) Option {
	return func(e *Engine) { e.completer = c }
}

// WithArchive mirrors every consolidated event into an archive.
func WithArchive(a memory.Archive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithAnalyzer overrides the default valence analyzer.
func WithAnalyzer(a *valence.Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithClock overrides the engine's notion of "now" for event creation.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.nowFn = now }
}

// New creates an engine around a scorer and the two memory stores.
func New(sc *scorer.Scorer, shortTerm *memory.ShortTermStore, longTerm *memory.LongTermStore, opts ...Option) *Engine {
	e := &Engine{
		scorer:    sc,
		analyzer:  valence.NewAnalyzer(),
		shortTerm: shortTerm,
		longTerm:  longTerm,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Input is one raw event entering the pipeline.
type Input struct {
	// Content is the text payload. Required.
	Content string

	// SessionID is the stable key for sticky A/B routing.
	SessionID string

	// UserInitiated marks input typed by the user; such input is never
	// suppressed.
	UserInitiated bool

	// Metadata is carried onto the stored event.
	Metadata map[string]string

	// Valence overrides the analyzer's valence when non-nil.
	Valence *float64

	// Significance overrides the scorer's default when non-nil.
	Significance *float64
}

// Outcome is the full cognitive state after processing one input.
type Outcome struct {
	// Event is the stored event. Nil when the input was suppressed.
	Event *core.Event

	Category      core.Category
	Novelty       float64
	Valence       float64
	Arousal       float64
	Flashbulb     bool
	ShouldProcess bool
	Consolidated  bool

	// TaskType and Provider are set when routing ran.
	TaskType string
	Provider router.ProviderID

	// Response is the completion text when a completer is attached.
	Response string
}

// Process runs one input through the pipeline: analyze, score, gate,
// store, consolidate, route, complete. Every failure is returned to the
// caller; nothing is logged-and-swallowed on a path that changes the
// returned state.
func (e *Engine) Process(ctx context.Context, input Input) (*Outcome, error) {
	// Emotional analysis. Novelty is unknown on the first pass, so
	// flashbulb detection waits for the scorer.
	state := e.analyzer.Analyze(input.Content, -1)
	val := state.Valence
	if input.Valence != nil {
		val = *input.Valence
	}

	res, err := e.scorer.Score(input.Content, scorer.Context{
		UserInitiated: input.UserInitiated,
		Valence:       val,
		Significance:  input.Significance,
	})
	if err != nil {
		return nil, err
	}

	// Re-check flashbulb now that novelty is known.
	flashbulb := state.Arousal > 0.7 && res.Novelty > 0.7

	outcome := &Outcome{
		Category:      res.Category,
		Novelty:       res.Novelty,
		Valence:       val,
		Arousal:       state.Arousal,
		Flashbulb:     flashbulb,
		ShouldProcess: res.ShouldProcess,
	}

	if !res.ShouldProcess {
		log.Printf("[ENGINE] Suppressed chaos event (novelty=%.2f)", res.Novelty)
		return outcome, nil
	}

	ev := core.NewEvent(input.Content, e.nowFn())
	ev.Novelty = res.Novelty
	ev.Significance = res.Significance
	ev.Valence = val
	ev.Category = res.Category
	ev.Metadata = input.Metadata
	outcome.Event = ev.Clone()

	if err := e.shortTerm.Add(ev); err != nil {
		return outcome, err
	}

	consolidatedCurrent, err := e.consolidate(ctx, ev.ID, flashbulb)
	if err != nil {
		return outcome, err
	}
	outcome.Consolidated = consolidatedCurrent

	if e.router == nil {
		return outcome, nil
	}

	outcome.TaskType = e.selectTaskType(res.Category, state.Arousal)
	provider, err := e.router.Route(outcome.TaskType, router.Context{SessionKey: input.SessionID})
	if err != nil {
		return outcome, err
	}
	outcome.Provider = provider

	if e.completer != nil {
		text, err := e.completer.Complete(ctx, input.Content, provider)
		if err != nil {
			return outcome, &core.CompletionError{Provider: string(provider), Err: err}
		}
		outcome.Response = text
	}

	return outcome, nil
}

// consolidate promotes eligible short-term events into long-term memory.
// A flashbulb moment forces promotion of the current event regardless of
// thresholds. Removal from short-term memory happens only after
// long-term storage confirms the insert, so a failed consolidation never
// loses an event.
func (e *Engine) consolidate(ctx context.Context, currentID string, flashbulb bool) (bool, error) {
	candidates := e.shortTerm.ConsolidateCandidates()

	if flashbulb {
		found := false
		for _, c := range candidates {
			if c.ID == currentID {
				found = true
				break
			}
		}
		if !found {
			for _, ev := range e.shortTerm.Events() {
				if ev.ID == currentID {
					candidates = append(candidates, ev)
					break
				}
			}
		}
	}

	currentConsolidated := false
	for _, candidate := range candidates {
		if err := e.longTerm.Consolidate(ctx, candidate); err != nil {
			return currentConsolidated, fmt.Errorf("consolidate event %s: %w", candidate.ID, err)
		}

		if e.archive != nil {
			if stored := e.longTerm.Get(candidate.ID); stored != nil {
				if err := e.archive.Store(ctx, stored); err != nil {
					return currentConsolidated, fmt.Errorf("archive event %s: %w", candidate.ID, err)
				}
			}
		}

		e.shortTerm.Remove(candidate.ID)
		if candidate.ID == currentID {
			currentConsolidated = true
		}
		log.Printf("[ENGINE] Consolidated event %s (significance=%.2f)", candidate.ID, candidate.Significance)
	}
	return currentConsolidated, nil
}

// selectTaskType maps cognitive state to routing complexity, mirroring
// "glow or high arousal needs reasoning, medium arousal is creative,
// the rest goes fast".
func (e *Engine) selectTaskType(category core.Category, arousal float64) string {
	switch {
	case category == core.Glow || arousal > 0.7:
		return TaskReasoning
	case arousal > 0.4:
		return TaskCreative
	default:
		return TaskFast
	}
}

// Tick advances the short-term store's logical clock: decays stored
// significance for the elapsed duration, then prunes events that fell
// below the floor. Returns the pruned events for audit logging.
func (e *Engine) Tick(ctx context.Context, elapsed time.Duration) ([]*core.Event, error) {
	e.shortTerm.Decay(elapsed)
	pruned, err := e.shortTerm.Prune(ctx)
	if err != nil {
		return nil, err
	}
	if len(pruned) > 0 {
		log.Printf("[ENGINE] Pruned %d decayed events", len(pruned))
	}
	return pruned, nil
}

// State is a point-in-time view of the pipeline's stores.
type State struct {
	ShortTermCount   int
	LongTermCount    int
	ActiveExperiment string
}

// SystemState reports store sizes and the active routing experiment.
func (e *Engine) SystemState() State {
	s := State{
		ShortTermCount: e.shortTerm.Len(),
		LongTermCount:  e.longTerm.Len(),
	}
	if e.router != nil {
		s.ActiveExperiment = e.router.ActiveExperiment()
	}
	return s
}
