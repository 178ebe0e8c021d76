// Package scorer classifies incoming events by novelty and significance.
//
// Scoring is deterministic and rule-based: configured breakthrough
// keywords raise novelty, routine keywords lower it, and caller context
// (user-initiated, recent repeat) adjusts the result. Classification
// buckets the adjusted novelty into Chaos, Foundation, or Glow.
package scorer

import (
	"hash/fnv"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/cerebral-go-sdk/core"
)

// Context carries caller-supplied signals for a single scoring call.
type Context struct {
	// UserInitiated marks input typed by the user. User-initiated input
	// is never suppressed.
	UserInitiated bool

	// Duplicate marks the event as a known recent repeat. The scorer
	// also detects repeats on its own via the recency cache.
	Duplicate bool

	// Valence is the emotional charge [-1.0, 1.0], typically produced
	// by the valence analyzer before scoring.
	Valence float64

	// Significance overrides the computed default when non-nil.
	Significance *float64
}

// Result is the outcome of scoring one event.
type Result struct {
	Category      core.Category
	Novelty       float64
	RawNovelty    float64
	Significance  float64
	ShouldProcess bool
	Duplicate     bool
}

// Config holds scorer tuning parameters.
type Config struct {
	// BreakthroughKeywords raise novelty when present in content.
	BreakthroughKeywords []string

	// RoutineKeywords lower novelty when present in content.
	RoutineKeywords []string

	// BaseNovelty is the starting point before keyword features.
	BaseNovelty float64

	// BreakthroughBoost is added per distinct breakthrough keyword found.
	BreakthroughBoost float64

	// RoutinePenalty is subtracted per distinct routine keyword found.
	RoutinePenalty float64

	// UserInitiatedBonus is added when the context is user-initiated.
	UserInitiatedBonus float64

	// DuplicatePenalty is subtracted for recent repeats.
	DuplicatePenalty float64

	// GlowThreshold is the novelty above which events classify as Glow.
	GlowThreshold float64

	// ChaosThreshold is the novelty below which events classify as Chaos.
	ChaosThreshold float64

	// SuppressThreshold gates processing of Chaos events. Chaos events
	// below this novelty are dropped unless user-initiated.
	SuppressThreshold float64

	// ADHDMode spikes Glow novelty and dampens Chaos novelty after
	// classification.
	ADHDMode bool

	// GlowSpikeMultiplier amplifies Glow novelty (capped at 1.0).
	GlowSpikeMultiplier float64

	// ChaosSuppressionMultiplier dampens Chaos novelty.
	ChaosSuppressionMultiplier float64

	// DedupeTTL is how long a content fingerprint counts as "recent".
	DedupeTTL time.Duration
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	BreakthroughKeywords: []string{"breakthrough", "eureka", "discovery", "finally works", "solved"},
	RoutineKeywords:      []string{"routine", "as usual", "status update", "reminder"},
	BaseNovelty:          0.5,
	BreakthroughBoost:    0.2,
	RoutinePenalty:       0.2,
	UserInitiatedBonus:   0.2,
	DuplicatePenalty:     0.3,
	GlowThreshold:        0.8,
	ChaosThreshold:       0.3,
	SuppressThreshold:    0.3,
	ADHDMode:             false,
	GlowSpikeMultiplier:  1.2,

	ChaosSuppressionMultiplier: 0.8,
	DedupeTTL:                  5 * time.Minute,
}

// Scorer computes novelty, significance, and the processing gate for
// incoming content. Pure computation apart from the recency cache used
// for repeat detection.
type Scorer struct {
	config *Config
	recent *ristretto.Cache
}

// New creates a scorer. A nil config uses DefaultConfig.
func New(config *Config) (*Scorer, error) {
	if config == nil {
		config = DefaultConfig
	}

	// Recency cache for repeat detection. Cost 1 per fingerprint.
	recent, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Scorer{
		config: config,
		recent: recent,
	}, nil
}

// Score classifies content and decides whether it should be processed.
// Empty content fails with core.ErrInvalidInput.
func (s *Scorer) Score(content string, sctx Context) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, core.ErrInvalidInput
	}

	raw := s.baseNovelty(content)

	// Context adjustments.
	novelty := raw
	if sctx.UserInitiated {
		novelty += s.config.UserInitiatedBonus
	}
	duplicate := sctx.Duplicate || s.seenRecently(content)
	if duplicate {
		novelty -= s.config.DuplicatePenalty
	}
	novelty = core.Clamp01(novelty)

	category := s.classify(novelty)

	// ADHD adjustments: spike glow, dampen chaos. Applied after
	// classification so the threshold semantics stay intact.
	if s.config.ADHDMode {
		switch category {
		case core.Glow:
			novelty = core.Clamp01(novelty * s.config.GlowSpikeMultiplier)
		case core.Chaos:
			novelty = novelty * s.config.ChaosSuppressionMultiplier
		case core.Foundation:
			// Unchanged.
		}
	}

	shouldProcess := true
	if category == core.Chaos && novelty < s.config.SuppressThreshold && !sctx.UserInitiated {
		shouldProcess = false
	}

	significance := s.significance(novelty, sctx)

	s.remember(content)

	log.Printf("[SCORER] novelty=%.2f category=%s process=%v duplicate=%v",
		novelty, category, shouldProcess, duplicate)

	return &Result{
		Category:      category,
		Novelty:       novelty,
		RawNovelty:    raw,
		Significance:  significance,
		ShouldProcess: shouldProcess,
		Duplicate:     duplicate,
	}, nil
}

// Close releases the recency cache.
func (s *Scorer) Close() {
	s.recent.Close()
}

// baseNovelty computes keyword-feature novelty before context adjustments.
func (s *Scorer) baseNovelty(content string) float64 {
	lower := strings.ToLower(content)
	novelty := s.config.BaseNovelty
	for _, kw := range s.config.BreakthroughKeywords {
		if strings.Contains(lower, kw) {
			novelty += s.config.BreakthroughBoost
		}
	}
	for _, kw := range s.config.RoutineKeywords {
		if strings.Contains(lower, kw) {
			novelty -= s.config.RoutinePenalty
		}
	}
	return core.Clamp01(novelty)
}

// classify buckets adjusted novelty into a category.
func (s *Scorer) classify(novelty float64) core.Category {
	switch {
	case novelty > s.config.GlowThreshold:
		return core.Glow
	case novelty < s.config.ChaosThreshold:
		return core.Chaos
	default:
		return core.Foundation
	}
}

// significance defaults to a blend of novelty and emotional magnitude
// unless the caller overrides it.
func (s *Scorer) significance(novelty float64, sctx Context) float64 {
	if sctx.Significance != nil {
		return core.Clamp01(*sctx.Significance)
	}
	valence := sctx.Valence
	if valence < 0 {
		valence = -valence
	}
	return core.Clamp01(novelty*0.6 + valence*0.4)
}

// seenRecently reports whether the content fingerprint is in the
// recency cache.
func (s *Scorer) seenRecently(content string) bool {
	_, found := s.recent.Get(fingerprint(content))
	return found
}

// remember records the content fingerprint for repeat detection.
func (s *Scorer) remember(content string) {
	s.recent.SetWithTTL(fingerprint(content), struct{}{}, 1, s.config.DedupeTTL)
	// Ristretto applies writes asynchronously; Wait makes the entry
	// visible to the next Score call.
	s.recent.Wait()
}

// fingerprint hashes normalized content for the recency cache.
func fingerprint(content string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(content))))
	return h.Sum64()
}
