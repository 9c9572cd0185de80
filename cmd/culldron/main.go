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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/poiesic/culldron"
	"github.com/poiesic/culldron/api"
	"github.com/poiesic/culldron/config"
	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/scheduler"
	"github.com/poiesic/culldron/warmup"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "culldron",
		Usage: "Group blog posts into themes by their central claims",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"CULLDRON_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the periodic ingestion scheduler",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest one or more feeds and print a summary for each",
				ArgsUsage: "URL [URL...]",
				Action:    ingestCommand,
			},
			{
				Name:   "themes",
				Usage:  "List themes ordered by post count",
				Action: themesCommand,
				Flags:  pageFlags(10000),
			},
			{
				Name:   "warm-cache",
				Usage:  "Embed every stored post so the embedding cache holds the theme pool",
				Action: warmCacheCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of posts to embed per request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N posts",
						Value: 100,
					},
				},
			},
			{
				Name:      "timeline",
				Usage:     "List the posts of a theme in publication order",
				ArgsUsage: "THEME_ID",
				Action:    timelineCommand,
				Flags:     pageFlags(1000),
			},
		},
	}
}

func pageFlags(defaultLimit int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of rows to return",
			Value: defaultLimit,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of rows to skip",
			Value: 0,
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))
	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format := strings.ToLower(c.String("log-format")); format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func openService(ctx context.Context, c *cli.Context) (*culldron.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return culldron.NewService(ctx, cfg, culldron.WithLogger(slog.Default()))
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := svc.Config().Server.Addr
	if override := c.String("addr"); override != "" {
		addr = override
	}
	server, err := api.NewServer(svc, api.WithAddr(addr), api.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	sched, err := svc.NewScheduler()
	if err != nil {
		return err
	}
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if err := startScheduler(gctx, svc.Config(), sched); err != nil {
		return err
	}
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	return g.Wait()
}

// startScheduler starts periodic ingestion when the configuration asks for
// it. The caller owns sched and must Stop it.
func startScheduler(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler) error {
	if !cfg.SchedulerEnabled() {
		slog.Info("periodic ingestion disabled", "feeds", len(cfg.Scheduler.Feeds), "interval", cfg.Scheduler.Interval)
		return nil
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	slog.Info("periodic ingestion enabled", "feeds", sched.Feeds(), "interval", cfg.Scheduler.Interval)
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one feed URL is required")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := c.App.Writer
	var failed []string
	for _, url := range c.Args().Slice() {
		result, err := svc.Ingest(ctx, url)
		if err != nil {
			slog.Error("ingest failed", "url", url, "error", err)
			failed = append(failed, url)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := printJSON(out, result); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d feeds failed: %s", len(failed), c.NArg(), strings.Join(failed, ", "))
	}
	return nil
}

func themesCommand(c *cli.Context) error {
	limit, offset, err := pageArgs(c)
	if err != nil {
		return err
	}

	svc, err := openService(c.Context, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	themes, err := svc.ListThemes(c.Context, limit, offset)
	if err != nil {
		return err
	}
	if themes == nil {
		themes = []core.ThemeSummary{}
	}
	return printJSON(c.App.Writer, themes)
}

func timelineCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one theme ID is required")
	}
	id, err := parseThemeID(c.Args().First())
	if err != nil {
		return err
	}
	limit, offset, err := pageArgs(c)
	if err != nil {
		return err
	}

	svc, err := openService(c.Context, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	timeline, err := svc.ThemeTimeline(c.Context, id, limit, offset)
	if err != nil {
		return fmt.Errorf("theme %d: %w", id, err)
	}
	return printJSON(c.App.Writer, timeline)
}

func warmCacheCommand(c *cli.Context) error {
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive, got %d", batchSize)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	_, err = svc.WarmCache(ctx, &warmup.Config{
		BatchSize:      batchSize,
		ReportInterval: c.Int("report-interval"),
	}, c.App.ErrWriter)
	return err
}

func parseThemeID(s string) (core.ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid theme ID %q", s)
	}
	return core.ID(n), nil
}

func pageArgs(c *cli.Context) (limit, offset int, err error) {
	limit, offset = c.Int("limit"), c.Int("offset")
	if limit < 0 {
		return 0, 0, fmt.Errorf("limit must be non-negative, got %d", limit)
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset must be non-negative, got %d", offset)
	}
	return limit, offset, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
