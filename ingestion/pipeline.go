// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/culldron/ai"
	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/dedup"
	"github.com/poiesic/culldron/feed"
	"github.com/poiesic/culldron/matching"
	"github.com/poiesic/culldron/normalize"
	"github.com/poiesic/culldron/storage"
	"github.com/poiesic/culldron/thesis"
)

// Default thresholds.
const (
	DefaultMatchThreshold      = matching.DefaultThreshold
	DefaultRedundancyThreshold = 0.60
	DefaultMaxThesisSentences  = 2
)

// Pipeline ingests feeds into a store.
type Pipeline struct {
	store      storage.PostRepository
	reader     feed.Reader
	embedder   ai.Embedder
	normalizer *normalize.Normalizer
	extractor  *thesis.Extractor
	matcher    *matching.Matcher
	segmenter  thesis.Segmenter

	matchThreshold      float64
	redundancyThreshold float64
	maxThesisSentences  int
	logger              *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMatchThreshold sets the minimum similarity for joining an existing theme.
// Default is 0.60.
func WithMatchThreshold(threshold float64) Option {
	return func(p *Pipeline) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: match threshold %v", ErrInvalidThreshold, threshold)
		}
		p.matchThreshold = threshold
		return nil
	}
}

// WithRedundancyThreshold sets the similarity above which two thesis
// sentences are considered redundant. Default is 0.60.
func WithRedundancyThreshold(threshold float64) Option {
	return func(p *Pipeline) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: redundancy threshold %v", ErrInvalidThreshold, threshold)
		}
		p.redundancyThreshold = threshold
		return nil
	}
}

// WithMaxThesisSentences sets the maximum thesis length. Default is 2.
func WithMaxThesisSentences(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: max thesis sentences %d", ErrInvalidThreshold, n)
		}
		p.maxThesisSentences = n
		return nil
	}
}

// WithNormalizer replaces the entry normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) error {
		if n != nil {
			p.normalizer = n
		}
		return nil
	}
}

// WithSegmenter replaces the sentence segmenter used for thesis extraction.
func WithSegmenter(s thesis.Segmenter) Option {
	return func(p *Pipeline) error {
		p.segmenter = s
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.PostRepository,
	reader feed.Reader,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if reader == nil {
		return nil, ErrReaderRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:               store,
		reader:              reader,
		embedder:            embedder,
		normalizer:          normalize.New(),
		matchThreshold:      DefaultMatchThreshold,
		redundancyThreshold: DefaultRedundancyThreshold,
		maxThesisSentences:  DefaultMaxThesisSentences,
		logger:              slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	matcher, err := matching.NewMatcher(p.matchThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, err)
	}
	p.matcher = matcher

	extractor, err := thesis.NewExtractor(embedder,
		thesis.WithConfig(thesis.Config{
			MaxSentences:        p.maxThesisSentences,
			RedundancyThreshold: p.redundancyThreshold,
		}),
		thesis.WithSegmenter(p.segmenter),
		thesis.WithLogger(p.logger),
	)
	if err != nil {
		return nil, err
	}
	p.extractor = extractor

	return p, nil
}

// runStats counts what happened to a feed's entries.
type runStats struct {
	entries    int
	duplicates int
	empty      int
	stored     int
	newThemes  int
	raced      int
}

// Ingest reads the feed at url and stores every new entry as a post.
// Reader failures are returned wrapped, so errors.Is matches
// feed.ErrSourceUnreachable and feed.ErrInvalidFeed. An empty feed returns a
// successful result with no posts.
func (p *Pipeline) Ingest(ctx context.Context, url string) (*core.IngestResult, error) {
	start := time.Now()
	logger := p.logger.With("run_id", uuid.NewString(), "feed_url", url)
	logger.Info("ingestion started")

	parsed, err := p.reader.Read(ctx, url)
	if err != nil {
		logger.Error("feed read failed", "err", err)
		return nil, fmt.Errorf("read feed %s: %w", url, err)
	}

	result := &core.IngestResult{
		FeedTitle: parsed.Title,
		Posts:     []core.PostSummary{},
	}
	stats := runStats{entries: len(parsed.Entries)}

	if len(parsed.Entries) == 0 {
		logger.Info("feed has no entries")
		return result, nil
	}

	keys, err := p.store.PostKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load post keys: %w", err)
	}
	guard := dedup.NewGuard(keys)

	candidates, err := p.prepare(ctx, parsed.Entries, guard, &stats)
	if err != nil {
		return nil, err
	}

	if len(candidates) > 0 {
		pool, err := p.loadPool(ctx)
		if err != nil {
			return nil, err
		}

		err = p.store.WithTransaction(ctx, func(ctx context.Context) error {
			return p.assign(ctx, candidates, pool, result, &stats, logger)
		})
		if err != nil {
			logger.Error("ingestion failed", "err", err)
			return nil, fmt.Errorf("store posts: %w", err)
		}
	}

	result.PostCount = len(result.Posts)
	logger.Info("ingestion finished",
		"entries", stats.entries,
		"duplicates", stats.duplicates,
		"empty", stats.empty,
		"raced", stats.raced,
		"stored", stats.stored,
		"new_themes", stats.newThemes,
		"duration", time.Since(start))
	return result, nil
}

// prepare normalizes, deduplicates and summarizes entries in source order,
// then embeds the match text of every survivor in one batch.
func (p *Pipeline) prepare(ctx context.Context, entries []core.Entry, guard *dedup.Guard, stats *runStats) ([]*core.Candidate, error) {
	var candidates []*core.Candidate
	for _, entry := range entries {
		ne := p.normalizer.Normalize(entry)
		if !guard.Accept(ne.Key()) {
			stats.duplicates++
			continue
		}

		sentences, err := p.extractor.Extract(ctx, ne.Body)
		if err != nil {
			return nil, fmt.Errorf("extract thesis for %q: %w", ne.Title, err)
		}
		if len(sentences) == 0 {
			stats.empty++
			continue
		}

		candidates = append(candidates, &core.Candidate{
			Title:     ne.Title,
			URL:       ne.URL,
			Published: ne.Published,
			Thesis:    sentences,
			Content:   ne.Body,
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = core.MatchText(c.Title, c.ThesisText())
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(candidates) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(candidates), len(vectors))
	}
	for i, c := range candidates {
		c.Vector = vectors[i]
	}
	return candidates, nil
}

// loadPool embeds the match text of every stored post, in id order.
func (p *Pipeline) loadPool(ctx context.Context) (*matching.Pool, error) {
	texts, err := p.store.PostTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load post texts: %w", err)
	}
	if len(texts) == 0 {
		return matching.NewPool(), nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = core.MatchText(t.Title, t.Thesis)
	}
	vectors, err := p.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed stored posts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(texts), len(vectors))
	}

	entries := make([]matching.Entry, len(texts))
	for i, t := range texts {
		entries[i] = matching.Entry{ThemeId: t.ThemeId, Vector: vectors[i]}
	}
	return matching.NewPool(entries...), nil
}

// assign matches and stores candidates in order. Only stored posts join the
// pool, so later candidates never match a theme that was rolled back.
func (p *Pipeline) assign(
	ctx context.Context,
	candidates []*core.Candidate,
	pool *matching.Pool,
	result *core.IngestResult,
	stats *runStats,
	logger *slog.Logger,
) error {
	for _, c := range candidates {
		post := &core.Post{
			Title:       c.Title,
			URL:         c.URL,
			PublishedAt: c.Published,
			Thesis:      c.ThesisText(),
		}

		match := p.matcher.Match(c.Vector, pool)

		var stored *core.Post
		var err error
		if match.Matched {
			post.ThemeId = match.ThemeId
			stored, err = p.store.AddPost(ctx, post)
		} else {
			stored, err = p.store.CreateThemeWithPost(ctx, post)
		}

		if errors.Is(err, storage.ErrDuplicateKey) {
			stats.raced++
			logger.Warn("skipped duplicate post, likely a concurrent run", "key", post.Key().String())
			continue
		}
		if err != nil {
			return err
		}

		if !match.Matched {
			stats.newThemes++
		}
		stats.stored++
		logger.Debug("post stored",
			"post_id", stored.Id,
			"theme_id", stored.ThemeId,
			"score", match.Score,
			"new_theme", !match.Matched)

		pool.Add(stored.ThemeId, c.Vector)
		result.Posts = append(result.Posts, core.PostSummary{
			Title:     c.Title,
			URL:       c.URL,
			Published: c.Published,
			Thesis:    []string{c.ThesisText()},
			Content:   c.Content,
		})
	}
	return nil
}
