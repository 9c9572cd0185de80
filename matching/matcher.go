// Package matching assigns candidate posts to existing themes by embedding
// similarity.
package matching

import (
	"errors"
	"fmt"

	"github.com/poiesic/culldron/ai"
	"github.com/poiesic/culldron/core"
)

// DefaultThreshold is the minimum similarity for joining an existing theme.
const DefaultThreshold = 0.60

// ErrInvalidThreshold is returned for thresholds outside [-1, 1].
var ErrInvalidThreshold = errors.New("invalid match threshold")

// Entry is a theme-tagged post embedding.
type Entry struct {
	ThemeId core.ID
	Vector  []float32
}

// Pool is the ordered set of embeddings a candidate is compared against.
// Entries are only ever appended, so iteration order is stable.
type Pool struct {
	entries []Entry
}

// NewPool creates a pool holding entries in the given order.
func NewPool(entries ...Entry) *Pool {
	p := &Pool{entries: make([]Entry, 0, len(entries))}
	p.entries = append(p.entries, entries...)
	return p
}

// Add appends a post embedding for theme.
func (p *Pool) Add(theme core.ID, vector []float32) {
	p.entries = append(p.entries, Entry{ThemeId: theme, Vector: vector})
}

// Len returns the number of entries.
func (p *Pool) Len() int {
	return len(p.entries)
}

// Result describes the outcome of a match.
type Result struct {
	ThemeId core.ID
	Score   float64
	Matched bool
}

// Matcher compares candidates against a pool using cosine similarity.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a Matcher that assigns when the best score is at least threshold.
func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold returns the assignment threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match finds the most similar pool entry. Only a strictly greater score
// replaces the running best, which starts at zero, so the earliest entry
// wins ties. Matched is false when the pool is empty, when nothing scores
// above zero, or when the best score is below the threshold.
func (m *Matcher) Match(vector []float32, pool *Pool) Result {
	var best Result
	if pool == nil {
		return best
	}

	for _, e := range pool.entries {
		score := ai.CosineSimilarity(vector, e.Vector)
		if score > best.Score {
			best.Score = score
			best.ThemeId = e.ThemeId
		}
	}

	best.Matched = best.ThemeId != 0 && best.Score >= m.threshold
	return best
}
