// Package dedup filters feed entries whose natural key was already stored or
// already seen earlier in the same run.
package dedup

import "github.com/poiesic/culldron/core"

// Guard is an in-memory set of natural keys. It is scoped to one ingestion
// run and is not safe for concurrent use; the store's uniqueness constraint
// covers races between runs.
type Guard struct {
	seen map[core.NaturalKey]struct{}
}

// NewGuard creates a guard seeded with keys, typically every key currently
// persisted.
func NewGuard(keys []core.NaturalKey) *Guard {
	g := &Guard{seen: make(map[core.NaturalKey]struct{}, len(keys))}
	for _, k := range keys {
		g.seen[normalize(k)] = struct{}{}
	}
	return g
}

// Accept reports whether key is new. A new key is recorded so the same key
// is rejected afterwards; a known key leaves the guard unchanged.
func (g *Guard) Accept(key core.NaturalKey) bool {
	key = normalize(key)
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

// Len returns the number of known keys.
func (g *Guard) Len() int {
	return len(g.seen)
}

func normalize(k core.NaturalKey) core.NaturalKey {
	return core.NewNaturalKey(k.URL, k.Published, k.Title)
}
