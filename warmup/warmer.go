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


package warmup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/culldron/ai"
	"github.com/poiesic/culldron/core"
)

var (
	// ErrSourceRequired is returned when no post source is provided.
	ErrSourceRequired = errors.New("post source is required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidBatchSize is returned when BatchSize is less than 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrCountMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// PostSource lists the stored posts to warm.
type PostSource interface {
	PostTexts(ctx context.Context) ([]core.PostText, error)
}

// Config holds configuration for a warm-up run.
type Config struct {
	// BatchSize is the number of texts sent per embedding call
	BatchSize int

	// ReportInterval is how often to report progress, in posts
	ReportInterval int
}

// DefaultConfig returns a Config with batches of 100.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
	}
}

// Result summarizes a warm-up run.
type Result struct {
	Posts    int
	Batches  int
	Duration time.Duration
}

// Warmer embeds every stored post's match text.
type Warmer struct {
	source   PostSource
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewWarmer creates a Warmer. progress receives status lines and may be
// io.Discard.
func NewWarmer(source PostSource, embedder ai.Embedder, config *Config, progress io.Writer) (*Warmer, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Warmer{
		source:   source,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "warmup"),
	}, nil
}

// Run embeds all posts. Vectors are discarded; the embedder is expected to
// be a caching one.
func (w *Warmer) Run(ctx context.Context) (*Result, error) {
	texts, err := w.source.PostTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load post texts: %w", err)
	}

	result := &Result{Posts: len(texts)}
	if len(texts) == 0 {
		fmt.Fprintf(w.progress, "No posts found in database (0 posts)\n")
		return result, nil
	}

	fmt.Fprintf(w.progress, "Embedding %d posts (batch size: %d)\n", len(texts), w.config.BatchSize)

	tracker := NewProgressTracker(w.progress, len(texts), w.config.ReportInterval)
	tracker.Start()

	err = forEachBatch(texts, w.config.BatchSize, func(batch []core.PostText) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.embedBatch(ctx, batch); err != nil {
			return fmt.Errorf("batch %d: %w", result.Batches+1, err)
		}
		result.Batches++
		tracker.Add(len(batch))
		return nil
	})
	if err != nil {
		w.logger.Error("warm-up stopped", "embedded", tracker.Current(), "total", len(texts), "err", err)
		return nil, err
	}

	tracker.Finish()
	result.Duration = tracker.Elapsed()
	w.logger.Info("warm-up complete", "posts", result.Posts, "batches", result.Batches, "duration", result.Duration)
	return result, nil
}

func (w *Warmer) embedBatch(ctx context.Context, batch []core.PostText) error {
	inputs := make([]string, len(batch))
	for i, t := range batch {
		inputs[i] = core.MatchText(t.Title, t.Thesis)
	}

	vectors, err := w.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		return err
	}
	if len(vectors) != len(inputs) {
		return fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(inputs), len(vectors))
	}
	return nil
}

// forEachBatch calls fn with consecutive slices of at most size items.
func forEachBatch(texts []core.PostText, size int, fn func([]core.PostText) error) error {
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		if err := fn(texts[start:end]); err != nil {
			return err
		}
	}
	return nil
}
