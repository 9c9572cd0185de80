// Package scheduler periodically ingests a fixed list of feeds.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/culldron/core"
)

var (
	// ErrIngesterRequired is returned when an ingester is not provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrDisabled is returned by Start when there are no feeds or the
	// interval is not positive.
	ErrDisabled = errors.New("scheduler disabled")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Ingester runs one ingestion for a feed URL.
type Ingester interface {
	Ingest(ctx context.Context, url string) (*core.IngestResult, error)
}

// CycleStats summarizes one scheduled cycle.
type CycleStats struct {
	Feeds       int
	Succeeded   int
	Failed      int
	PostsStored int
	Duration    time.Duration
}

// Scheduler triggers an ingestion of every configured feed once per interval.
type Scheduler struct {
	ingester Ingester
	interval time.Duration
	feeds    []string
	poolSize int
	pool     *ants.Pool
	logger   *slog.Logger

	running atomic.Bool
	cycles  sync.WaitGroup

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the time between cycles.
// Default is one hour.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithFeeds sets the feed URLs ingested each cycle.
func WithFeeds(urls ...string) Option {
	return func(s *Scheduler) {
		s.feeds = append([]string(nil), urls...)
	}
}

// WithPoolSize sets how many feeds are ingested at once.
// Default is 1.
func WithPoolSize(size int) Option {
	return func(s *Scheduler) {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// New creates a Scheduler.
func New(ingester Ingester, opts ...Option) (*Scheduler, error) {
	if ingester == nil {
		return nil, ErrIngesterRequired
	}

	s := &Scheduler{
		ingester: ingester,
		interval: time.Hour,
		poolSize: 1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// Enabled reports whether Start would run cycles.
func (s *Scheduler) Enabled() bool {
	return len(s.feeds) > 0 && s.interval > 0
}

// Feeds returns the configured feed URLs.
func (s *Scheduler) Feeds() []string {
	return append([]string(nil), s.feeds...)
}

// Start runs a cycle every interval, beginning one interval from now, until
// ctx is cancelled or Stop is called. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Warn("scheduler disabled", "feeds", len(s.feeds), "interval", s.interval)
		return ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("scheduler started", "feeds", len(s.feeds), "interval", s.interval)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				s.logger.Warn("previous cycle still running, skipping tick")
				continue
			}
			s.cycles.Add(1)
			go func() {
				defer s.cycles.Done()
				defer s.running.Store(false)
				s.RunCycle(ctx)
			}()
		}
	}
}

// Stop halts the schedule, waits for an in-flight cycle and releases the
// worker pool. The Scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.cycles.Wait()
	s.pool.Release()
}

// RunCycle ingests every configured feed and waits for all of them. A
// failing feed is logged and counted; it never stops the others.
func (s *Scheduler) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	stats := CycleStats{Feeds: len(s.feeds)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	record := func(posts int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.Failed++
			return
		}
		stats.Succeeded++
		stats.PostsStored += posts
	}

	for _, url := range s.feeds {
		url := url
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			record(s.ingestOne(ctx, url))
		})
		if err != nil {
			wg.Done()
			s.logger.Error("scheduled ingestion not submitted", "feed_url", url, "err", err)
			record(0, err)
		}
	}
	wg.Wait()

	stats.Duration = time.Since(start)
	s.logger.Info("scheduled cycle finished",
		"feeds", stats.Feeds,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"posts", stats.PostsStored,
		"duration", stats.Duration)
	return stats
}

func (s *Scheduler) ingestOne(ctx context.Context, url string) (posts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled ingestion panicked", "feed_url", url, "panic", r)
			err = errors.New("ingestion panicked")
		}
	}()

	result, err := s.ingester.Ingest(ctx, url)
	if err != nil {
		s.logger.Error("scheduled ingestion failed", "feed_url", url, "err", err)
		return 0, err
	}
	return result.PostCount, nil
}
