// Package thesis selects a short extractive summary ("thesis") of a text.
//
// Short texts keep their sentences. Longer texts are ranked by how close
// each sentence's embedding is to the embedding of the whole text, and the
// top-ranked sentences are kept. Picked sentences that are too similar to a
// higher-ranked pick are dropped as redundant.
package thesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/poiesic/culldron/ai"
)

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidConfig is returned for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid thesis config")
)

// Config tunes extraction.
type Config struct {
	// MaxSentences is the maximum number of thesis sentences. Default: 2
	MaxSentences int

	// RedundancyThreshold is the cosine similarity above which a lower-ranked
	// pick is considered a restatement of a higher-ranked one. Default: 0.60
	RedundancyThreshold float64
}

// DefaultConfig returns the default extraction settings.
func DefaultConfig() Config {
	return Config{
		MaxSentences:        2,
		RedundancyThreshold: 0.60,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.MaxSentences < 1 {
		return fmt.Errorf("%w: MaxSentences must be at least 1", ErrInvalidConfig)
	}
	if c.RedundancyThreshold < -1 || c.RedundancyThreshold > 1 {
		return fmt.Errorf("%w: RedundancyThreshold must be between -1 and 1", ErrInvalidConfig)
	}
	return nil
}

// Extractor produces thesis sentences. It is safe for concurrent use when
// its embedder is.
type Extractor struct {
	embedder  ai.Embedder
	segmenter Segmenter
	config    Config
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithConfig replaces the extraction settings.
func WithConfig(cfg Config) Option {
	return func(e *Extractor) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithSegmenter replaces the default Punkt segmenter.
func WithSegmenter(s Segmenter) Option {
	return func(e *Extractor) error {
		if s != nil {
			e.segmenter = s
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "thesis")
		return nil
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(embedder ai.Embedder, opts ...Option) (*Extractor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Extractor{
		embedder: embedder,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "thesis"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.segmenter == nil {
		s, err := NewPunktSegmenter()
		if err != nil {
			return nil, fmt.Errorf("load sentence model: %w", err)
		}
		e.segmenter = s
	}
	return e, nil
}

// Config returns the active settings.
func (e *Extractor) Config() Config {
	return e.config
}

// Extract returns 1..MaxSentences thesis sentences for text, or an empty
// slice when text has no sentences. Output is deterministic for a
// deterministic embedder.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	sentences := e.segmenter.Segment(text)
	if len(sentences) == 0 {
		return []string{}, nil
	}

	if len(sentences) == 1 {
		return sentences, nil
	}

	if len(sentences) <= e.config.MaxSentences {
		vectors, err := e.embedder.EmbedTexts(ctx, sentences)
		if err != nil {
			return nil, fmt.Errorf("embed sentences: %w", err)
		}
		if len(vectors) != len(sentences) {
			return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(sentences), len(vectors))
		}
		return e.collapse(sentences, vectors), nil
	}

	// Body first, then every sentence, in one batch.
	inputs := make([]string, 0, len(sentences)+1)
	inputs = append(inputs, text)
	inputs = append(inputs, sentences...)
	vectors, err := e.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed body and sentences: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(inputs), len(vectors))
	}
	body, sentVecs := vectors[0], vectors[1:]

	order := rank(body, sentVecs)[:e.config.MaxSentences]
	picks := make([]string, len(order))
	pickVecs := make([][]float32, len(order))
	for i, idx := range order {
		picks[i] = sentences[idx]
		pickVecs[i] = sentVecs[idx]
	}

	e.logger.Debug("ranked sentences", "sentences", len(sentences), "picked", order)
	return e.collapse(picks, pickVecs), nil
}

// collapse keeps picks[0] and every later pick whose similarity to all kept
// picks does not exceed the redundancy threshold.
func (e *Extractor) collapse(picks []string, vectors [][]float32) []string {
	kept := []string{picks[0]}
	keptVecs := [][]float32{vectors[0]}

	for i := 1; i < len(picks); i++ {
		redundant := false
		for _, kv := range keptVecs {
			if ai.CosineSimilarity(vectors[i], kv) > e.config.RedundancyThreshold {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, picks[i])
			keptVecs = append(keptVecs, vectors[i])
		}
	}
	return kept
}

// rank returns sentence indexes ordered by similarity to body, descending.
// Equal scores keep source order.
func rank(body []float32, sentences [][]float32) []int {
	scores := make([]float64, len(sentences))
	order := make([]int, len(sentences))
	for i, v := range sentences {
		scores[i] = ai.CosineSimilarity(body, v)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order
}
