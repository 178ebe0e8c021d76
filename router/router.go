// Package router selects a downstream completion provider for a task.
//
// Selection is rule-based: each task type maps to weighted candidate
// providers, picked by seedable weighted-random so behavior is
// reproducible under test. An active A/B experiment makes assignments
// sticky per session key: a session sees the same provider for the
// experiment's lifetime.
package router

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// ProviderID identifies a downstream completion provider.
type ProviderID string

// Candidate is one weighted routing option for a task type.
type Candidate struct {
	Provider ProviderID
	Weight   float64
}

// Completer executes a completion request against a provider. External
// calls are injected; the router never talks to a network itself.
type Completer interface {
	Complete(ctx context.Context, prompt string, provider ProviderID) (string, error)
}

// Context carries per-request routing state.
type Context struct {
	// SessionKey is the stable key for sticky A/B assignment.
	SessionKey string
}

// Config holds router construction parameters.
type Config struct {
	// DefaultProvider handles task types with no rule. Empty means
	// unmatched tasks fail with core.ErrUnroutableTask.
	DefaultProvider ProviderID

	// Seed makes weighted sampling reproducible. Zero seeds from the
	// clock.
	Seed int64
}

// Router routes tasks to providers. Safe for concurrent use: the rule
// table and the sticky-assignment map are instance state, so independent
// routers never interfere.
type Router struct {
	mu              sync.RWMutex
	rules           map[string][]Candidate
	defaultProvider ProviderID

	experiment  string
	assignments map[string]ProviderID

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a router.
func New(cfg Config) *Router {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Router{
		rules:           make(map[string][]Candidate),
		defaultProvider: cfg.DefaultProvider,
		assignments:     make(map[string]ProviderID),
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// RegisterRule maps a task type to weighted candidates. One rule per
// task type, last write wins. An empty candidate list removes the rule.
func (r *Router) RegisterRule(taskType string, candidates []Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(candidates) == 0 {
		delete(r.rules, taskType)
		return
	}
	rule := make([]Candidate, len(candidates))
	copy(rule, candidates)
	r.rules[taskType] = rule
}

// StartExperiment activates A/B mode under the given name, clearing any
// previous assignments.
func (r *Router) StartExperiment(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experiment = name
	r.assignments = make(map[string]ProviderID)
	log.Printf("[ROUTER] Experiment %q started", name)
}

// ResetExperiment deactivates A/B mode and drops all assignments.
func (r *Router) ResetExperiment() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.experiment = ""
	r.assignments = make(map[string]ProviderID)
}

// ActiveExperiment returns the current experiment name, empty when none.
func (r *Router) ActiveExperiment() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.experiment
}

// Route picks a provider for the task type. With an active experiment
// and a session key, the first pick is recorded and every later call
// for that key returns the same provider. No rule and no default fails
// with core.ErrUnroutableTask.
func (r *Router) Route(taskType string, rctx Context) (ProviderID, error) {
	r.mu.RLock()
	sticky := r.experiment != "" && rctx.SessionKey != ""
	if sticky {
		if assigned, ok := r.assignments[rctx.SessionKey]; ok {
			r.mu.RUnlock()
			return assigned, nil
		}
	}
	candidates := r.rules[taskType]
	fallback := r.defaultProvider
	r.mu.RUnlock()

	var provider ProviderID
	switch {
	case len(candidates) == 1:
		provider = candidates[0].Provider
	case len(candidates) > 1:
		provider = r.weightedPick(candidates)
	case fallback != "":
		provider = fallback
	default:
		return "", fmt.Errorf("%w: no rule for task type %q and no default provider", core.ErrUnroutableTask, taskType)
	}

	if sticky {
		provider = r.recordAssignment(rctx.SessionKey, provider)
	}

	log.Printf("[ROUTER] task=%s provider=%s", taskType, provider)
	return provider, nil
}

// recordAssignment stores the first assignment for a key. When two
// routes race on a fresh key, the first write wins and both callers see
// the same provider.
func (r *Router) recordAssignment(key string, provider ProviderID) ProviderID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if assigned, ok := r.assignments[key]; ok {
		return assigned
	}
	r.assignments[key] = provider
	return provider
}

// weightedPick samples a candidate proportionally to weight.
// Non-positive weights count as zero; all-zero weights fall back to
// uniform selection.
func (r *Router) weightedPick(candidates []Candidate) ProviderID {
	var total float64
	for _, c := range candidates {
		if c.Weight > 0 {
			total += c.Weight
		}
	}

	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if total <= 0 {
		return candidates[r.rng.Intn(len(candidates))].Provider
	}

	target := r.rng.Float64() * total
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		target -= c.Weight
		if target < 0 {
			return c.Provider
		}
	}
	return candidates[len(candidates)-1].Provider
}

// CompareResult holds one provider's response in a comparison fan-out.
type CompareResult struct {
	Text string
	Err  error
}

// Compare runs the same prompt against several providers, capturing
// per-provider failures instead of aborting the whole comparison.
func (r *Router) Compare(ctx context.Context, completer Completer, prompt string, providers ...ProviderID) map[ProviderID]CompareResult {
	results := make(map[ProviderID]CompareResult, len(providers))
	for _, p := range providers {
		text, err := completer.Complete(ctx, prompt, p)
		if err != nil {
			results[p] = CompareResult{Err: &core.CompletionError{Provider: string(p), Err: err}}
			continue
		}
		results[p] = CompareResult{Text: text}
	}
	return results
}
