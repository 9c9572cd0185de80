package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/culldron/config"
	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"culldron"}, args...))
	return out.String(), err
}

func TestCommandValidation(t *testing.T) {
	t.Run("ingest requires a URL", func(t *testing.T) {
		_, err := runApp(t, "ingest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "feed URL is required")
	})

	t.Run("timeline requires a theme ID", func(t *testing.T) {
		_, err := runApp(t, "timeline")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "theme ID is required")
	})

	t.Run("timeline rejects a non-numeric ID", func(t *testing.T) {
		_, err := runApp(t, "timeline", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid theme ID")
	})

	t.Run("timeline rejects a zero ID", func(t *testing.T) {
		_, err := runApp(t, "timeline", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid theme ID")
	})

	t.Run("themes rejects a negative limit", func(t *testing.T) {
		_, err := runApp(t, "themes", "--limit", "-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit must be non-negative")
	})

	t.Run("timeline rejects a negative offset", func(t *testing.T) {
		_, err := runApp(t, "timeline", "--offset", "-5", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "offset must be non-negative")
	})

	t.Run("warm-cache rejects a zero batch size", func(t *testing.T) {
		_, err := runApp(t, "warm-cache", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size must be positive")
	})

	t.Run("missing config file fails", func(t *testing.T) {
		_, err := runApp(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "themes")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config")
	})
}

func TestThemesCommandEmptyStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "sqlite:///"+filepath.Join(dir, "culldron.db"))
	t.Setenv("EMBEDDING_CACHE_DIR", "")

	out, err := runApp(t, "themes")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

type nopIngester struct{}

func (nopIngester) Ingest(context.Context, string) (*core.IngestResult, error) {
	return &core.IngestResult{Posts: []core.PostSummary{}}, nil
}

func TestStartScheduler(t *testing.T) {
	newScheduler := func(t *testing.T) *scheduler.Scheduler {
		t.Helper()
		sched, err := scheduler.New(nopIngester{},
			scheduler.WithFeeds("https://a"),
			scheduler.WithInterval(time.Hour))
		require.NoError(t, err)
		t.Cleanup(sched.Stop)
		return sched
	}

	t.Run("disabled config leaves scheduler idle", func(t *testing.T) {
		cfg := config.Default()
		sched := newScheduler(t)

		require.NoError(t, startScheduler(context.Background(), cfg, sched))
		assert.NoError(t, sched.Start(context.Background()), "scheduler was not started")
	})

	t.Run("enabled config starts scheduler", func(t *testing.T) {
		cfg := config.Default()
		cfg.Scheduler.Feeds = []string{"https://a"}
		sched := newScheduler(t)

		require.NoError(t, startScheduler(context.Background(), cfg, sched))
		assert.ErrorIs(t, sched.Start(context.Background()), scheduler.ErrAlreadyStarted)
	})
}

func TestParseThemeID(t *testing.T) {
	id, err := parseThemeID("42")
	require.NoError(t, err)
	assert.Equal(t, core.ID(42), id)

	for _, bad := range []string{"", "-1", "0", "1.5", "x"} {
		_, err := parseThemeID(bad)
		assert.Error(t, err, bad)
	}
}

func TestSetupLogger(t *testing.T) {
	newTestApp := func(check func(c *cli.Context)) *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "info",
				},
				&cli.StringFlag{
					Name:  "log-format",
					Value: "text",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				if check != nil {
					check(c)
				}
				return nil
			},
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "warning", "error"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp(nil).Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, level := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(level, func(t *testing.T) {
				err := newTestApp(nil).Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newTestApp(nil).Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("json format", func(t *testing.T) {
		err := newTestApp(nil).Run([]string{"test", "--log-format", "json"})
		require.NoError(t, err)
	})

	t.Run("invalid log format returns error", func(t *testing.T) {
		err := newTestApp(nil).Run([]string{"test", "--log-format", "xml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log format")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		err := newTestApp(func(c *cli.Context) {
			assert.Equal(t, "debug", c.String("log-level"))
		}).Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
