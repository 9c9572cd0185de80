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


// Package culldron wires the feed reader, embedding client, store and
// ingestion pipeline into a single Service.
package culldron

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/culldron/ai"
	"github.com/poiesic/culldron/ai/cache"
	"github.com/poiesic/culldron/ai/openai"
	"github.com/poiesic/culldron/config"
	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/feed"
	"github.com/poiesic/culldron/ingestion"
	"github.com/poiesic/culldron/scheduler"
	"github.com/poiesic/culldron/storage"
	"github.com/poiesic/culldron/storage/gorm"
	"github.com/poiesic/culldron/warmup"
)

// Service owns every long-lived dependency of the application.
type Service struct {
	config       *config.Config
	store        storage.Store
	embedder     ai.Embedder
	cacheBackend *cache.Backend
	reader       feed.Reader
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger   *slog.Logger
	embedder ai.Embedder
	reader   feed.Reader
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithEmbedder replaces the OpenAI-compatible embedder built from config.
func WithEmbedder(e ai.Embedder) ServiceOption {
	return func(o *serviceOptions) {
		o.embedder = e
	}
}

// WithReader replaces the HTTP feed reader built from config.
func WithReader(r feed.Reader) ServiceOption {
	return func(o *serviceOptions) {
		o.reader = r
	}
}

// NewService opens the store and builds the pipeline described by cfg.
func NewService(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	s := &Service{config: cfg, logger: options.logger}

	store, err := gorm.NewStore(ctx, cfg.Database.URL,
		gorm.WithLogger(s.logger),
		gorm.WithMaxConns(cfg.Database.MaxConns),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = store

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(cfg.AIConfig())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create embedder: %w", err)
		}
	}

	if cfg.Embedding.CacheDir != "" {
		backend, err := cache.OpenBackend(cfg.Embedding.CacheDir, false)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		s.cacheBackend = backend

		embedder, err = cache.New(embedder, backend, cfg.Embedding.Model, cache.WithLogger(s.logger))
		if err != nil {
			s.Close()
			return nil, err
		}
	}
	s.embedder = embedder

	s.reader = options.reader
	if s.reader == nil {
		s.reader = feed.NewHTTPReader(
			feed.WithTimeout(cfg.Feed.Timeout),
			feed.WithUserAgent(cfg.Feed.UserAgent),
			feed.WithRateLimit(cfg.Feed.RatePerSecond, cfg.Feed.Burst),
			feed.WithLogger(s.logger),
		)
	}

	pipeline, err := ingestion.NewPipeline(s.store, s.reader, s.embedder,
		ingestion.WithLogger(s.logger),
		ingestion.WithMatchThreshold(cfg.Ingestion.MatchThreshold),
		ingestion.WithRedundancyThreshold(cfg.Ingestion.RedundancyThreshold),
		ingestion.WithMaxThesisSentences(cfg.Ingestion.MaxThesisSentences),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pipeline = pipeline

	return s, nil
}

// Close releases the store and the embedding cache.
func (s *Service) Close() error {
	var firstErr error
	if s.cacheBackend != nil {
		if err := s.cacheBackend.Close(); err != nil {
			s.logger.Error("error closing embedding cache", "err", err)
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing store", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Store returns the underlying store.
func (s *Service) Store() storage.Store {
	return s.store
}

// Pipeline returns the shared ingestion pipeline.
func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Ingest runs the pipeline once for url.
func (s *Service) Ingest(ctx context.Context, url string) (*core.IngestResult, error) {
	return s.pipeline.Ingest(ctx, url)
}

// ListThemes returns themes by descending post count.
func (s *Service) ListThemes(ctx context.Context, limit, offset int) ([]core.ThemeSummary, error) {
	return s.store.ListThemes(ctx, limit, offset)
}

// ThemeTimeline returns a theme's posts in publish order.
func (s *Service) ThemeTimeline(ctx context.Context, id core.ID, limit, offset int) ([]core.TimelineEntry, error) {
	return s.store.ThemeTimeline(ctx, id, limit, offset)
}

// NewScheduler creates a scheduler for the configured feeds that shares the
// service's pipeline.
func (s *Service) NewScheduler(opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	base := []scheduler.Option{
		scheduler.WithInterval(s.config.Scheduler.Interval),
		scheduler.WithFeeds(s.config.Scheduler.Feeds...),
		scheduler.WithPoolSize(s.config.Scheduler.PoolSize),
		scheduler.WithLogger(s.logger),
	}
	return scheduler.New(s.pipeline, append(base, opts...)...)
}

// CacheEnabled reports whether embeddings are cached on disk.
func (s *Service) CacheEnabled() bool {
	return s.cacheBackend != nil
}

// WarmCache embeds every stored post through the service's embedder so the
// embedding cache holds the whole theme pool. Progress lines go to progress.
func (s *Service) WarmCache(ctx context.Context, cfg *warmup.Config, progress io.Writer) (*warmup.Result, error) {
	if !s.CacheEnabled() {
		s.logger.Warn("embedding cache disabled, warm-up will not persist vectors")
	}
	w, err := warmup.NewWarmer(s.store, s.embedder, cfg, progress)
	if err != nil {
		return nil, err
	}
	return w.Run(ctx)
}
