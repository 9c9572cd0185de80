package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/culldron/ai"
)

var (
	// ErrUpstreamRequired is returned when no upstream embedder is provided.
	ErrUpstreamRequired = errors.New("upstream embedder required")

	// ErrBackendRequired is returned when no backend is provided.
	ErrBackendRequired = errors.New("cache backend required")

	// ErrModelRequired is returned when the model name is empty.
	ErrModelRequired = errors.New("model name required")
)

// Cache is an ai.Embedder that serves repeated texts from BadgerDB and
// forwards misses to an upstream embedder.
type Cache struct {
	upstream ai.Embedder
	backend  *Backend
	model    string
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

var _ ai.Embedder = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-cache")
	}
}

// Stats reports cache effectiveness since construction.
type Stats struct {
	Hits   int64
	Misses int64
}

// New wraps upstream with a cache stored in backend. The model name is part
// of every key, so switching models never serves stale vectors.
func New(upstream ai.Embedder, backend *Backend, model string, opts ...Option) (*Cache, error) {
	if upstream == nil {
		return nil, ErrUpstreamRequired
	}
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	c := &Cache{
		upstream: upstream,
		backend:  backend,
		model:    model,
		logger:   slog.Default().With("component", "embedding-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmbedText returns the cached vector for text or embeds and caches it.
func (c *Cache) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts resolves every text from the cache where possible and sends the
// remaining distinct texts upstream in one batch. Order follows the input.
func (c *Cache) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	if len(texts) == 0 {
		return result, nil
	}

	keys := make([][]byte, len(texts))
	for i, text := range texts {
		keys[i] = makeVectorKey(c.model, text)
	}

	found, err := c.backend.getMany(keys)
	if err != nil {
		c.logger.Warn("cache read failed, embedding upstream", "err", err)
		found = nil
	}

	var missTexts []string
	missIndex := make(map[string]int)
	for i, text := range texts {
		if data, ok := found[string(keys[i])]; ok {
			record, err := unmarshalVectorRecord(data)
			if err == nil && record.Model == c.model {
				result[i] = record.Vector
				continue
			}
			c.logger.Debug("discarding unreadable cache entry", "err", err)
		}
		if _, seen := missIndex[text]; !seen {
			missIndex[text] = len(missTexts)
			missTexts = append(missTexts, text)
		}
	}

	c.hits.Add(int64(len(texts) - countNil(result)))
	if len(missTexts) == 0 {
		return result, nil
	}
	c.misses.Add(int64(len(missTexts)))

	fresh, err := c.upstream.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(missTexts), len(fresh))
	}

	for i, text := range texts {
		if result[i] == nil {
			result[i] = fresh[missIndex[text]]
		}
	}

	entries := make(map[string][]byte, len(missTexts))
	for j, text := range missTexts {
		entries[string(makeVectorKey(c.model, text))] = marshalVectorRecord(vectorRecord{
			Model:  c.model,
			Vector: fresh[j],
		})
	}
	if err := c.backend.putMany(entries); err != nil {
		c.logger.Warn("cache write failed", "entries", len(entries), "err", err)
	}

	c.logger.Debug("embedded texts", "total", len(texts), "upstream", len(missTexts))
	return result, nil
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len returns the number of cached vectors.
func (c *Cache) Len() (int, error) {
	return c.backend.count()
}

func countNil(vs [][]float32) int {
	n := 0
	for _, v := range vs {
		if v == nil {
			n++
		}
	}
	return n
}
