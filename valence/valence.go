// Package valence provides lexicon-based emotional valence and arousal
// analysis. It replaces a hardcoded zero valence with a fast word-list
// approach suitable for the local SDK; production systems can swap in a
// transformer-based analyzer behind the same API.
package valence

import (
	"regexp"
	"strings"
)

// State holds the emotional dimensions of a piece of text.
type State struct {
	// Valence ranges from -1.0 (negative) to +1.0 (positive).
	Valence float64

	// Arousal ranges from 0.0 (calm) to 1.0 (intense).
	Arousal float64

	// Flashbulb marks high-arousal, high-novelty moments that deserve
	// immediate consolidation.
	Flashbulb bool
}

type weightedSet struct {
	words  []string
	weight float64
}

// Analyzer scores text for emotional valence and arousal.
type Analyzer struct {
	positive []weightedSet
	negative []weightedSet
	arousal  []weightedSet
}

var (
	intensifierRe = regexp.MustCompile(`\b(very|extremely|incredibly|absolutely|totally|completely|really|quite)\b`)
	negationRe    = regexp.MustCompile(`\b(not|no|never|neither|nobody|nothing|nowhere|don't|doesn't|didn't|won't|wouldn't|can't|couldn't)\b`)
	capsWordRe    = regexp.MustCompile(`\b[A-Z]{3,}\b`)
)

// NewAnalyzer creates an analyzer with the built-in lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		positive: []weightedSet{
			{words: []string{"ecstatic", "overjoyed", "thrilled", "elated", "euphoric"}, weight: 0.9},
			{words: []string{"breakthrough", "discovery", "amazing", "incredible", "fantastic", "wonderful"}, weight: 0.85},
			{words: []string{"love", "adore", "perfect", "brilliant", "excellent", "outstanding"}, weight: 0.8},
			{words: []string{"happy", "joy", "pleased", "glad", "delighted", "excited"}, weight: 0.7},
			{words: []string{"good", "great", "nice", "helpful", "positive", "successful"}, weight: 0.6},
			{words: []string{"like", "enjoy", "appreciate", "satisfied", "content"}, weight: 0.5},
		},
		negative: []weightedSet{
			{words: []string{"devastated", "horrible", "terrible", "catastrophic", "disaster", "nightmare"}, weight: 0.9},
			{words: []string{"hate", "despise", "furious", "enraged", "disgusted"}, weight: 0.85},
			{words: []string{"awful", "dreadful", "miserable", "tragic", "horrific"}, weight: 0.8},
			{words: []string{"angry", "sad", "upset", "disappointed", "frustrated", "annoyed"}, weight: 0.7},
			{words: []string{"bad", "poor", "wrong", "problem", "issue", "error"}, weight: 0.6},
			{words: []string{"dislike", "concerned", "worried", "anxious", "stressed"}, weight: 0.5},
		},
		arousal: []weightedSet{
			{words: []string{"urgent", "emergency", "critical"}, weight: 0.9},
			{words: []string{"shocking", "stunning", "explosive", "overwhelming", "intense"}, weight: 0.85},
			{words: []string{"exciting", "surprising", "unexpected", "dramatic", "significant"}, weight: 0.7},
			{words: []string{"quickly", "suddenly", "immediately", "now"}, weight: 0.6},
		},
	}
}

// Analyze scores text. Pass novelty < 0 when no novelty score is
// available yet; flashbulb detection then stays off.
func (a *Analyzer) Analyze(text string, novelty float64) State {
	lower := strings.ToLower(text)

	valence := a.computeValence(lower)
	arousal := a.computeArousal(text, lower)

	flashbulb := novelty >= 0 && arousal > 0.7 && novelty > 0.7

	return State{
		Valence:   valence,
		Arousal:   arousal,
		Flashbulb: flashbulb,
	}
}

func (a *Analyzer) computeValence(lower string) float64 {
	var score float64
	var count int

	words := splitWords(lower)
	for _, set := range a.positive {
		n := countMatches(words, set.words)
		score += set.weight * float64(n)
		count += n
	}
	for _, set := range a.negative {
		n := countMatches(words, set.words)
		score -= set.weight * float64(n)
		count += n
	}

	if count == 0 {
		return 0
	}

	valence := score / float64(count)

	// Negation partially flips the net valence.
	if negationRe.MatchString(lower) {
		valence *= -0.7
	}

	return clamp(valence, -1, 1)
}

func (a *Analyzer) computeArousal(original, lower string) float64 {
	var score float64
	var count int

	words := splitWords(lower)
	for _, set := range a.arousal {
		n := countMatches(words, set.words)
		score += set.weight * float64(n)
		count += n
	}

	// Repeated terminal punctuation signals intensity.
	if strings.Contains(original, "!!") || strings.Contains(original, "??") {
		score += 0.9
		count++
	} else if strings.Contains(original, "!") {
		score += 0.5
		count++
	}

	// ALL CAPS words read as shouting.
	if caps := capsWordRe.FindAllString(original, -1); len(caps) > 0 {
		score += 0.8 * float64(len(caps))
		count += len(caps)
	}

	if intensifierRe.MatchString(lower) {
		score += 0.3
		count++
	}

	// Long text tends to be more involved.
	if len(words) > 50 {
		score += 0.2
		count++
	}

	if count == 0 {
		return 0.3 // Baseline arousal.
	}

	return clamp(score/float64(count), 0, 1)
}

// Label maps valence/arousal to an emotion name (Russell's circumplex).
func Label(valence, arousal float64) string {
	if arousal > 0.6 {
		switch {
		case valence > 0.3:
			if arousal > 0.8 {
				return "excited"
			}
			return "happy"
		case valence < -0.3:
			if arousal > 0.8 {
				return "angry"
			}
			return "frustrated"
		default:
			return "surprised"
		}
	}
	switch {
	case valence > 0.3:
		return "content"
	case valence < -0.3:
		return "sad"
	default:
		return "neutral"
	}
}

func splitWords(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
}

func countMatches(words []string, lexicon []string) int {
	n := 0
	for _, w := range words {
		for _, lw := range lexicon {
			if w == lw {
				n++
				break
			}
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
