package gorm

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, opts ...Option) storage.Store {
	t.Helper()
	store, err := NewMemoryStore(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newPost(url, title string, published time.Time) *core.Post {
	return &core.Post{
		Title:       title,
		URL:         url,
		PublishedAt: published,
		Thesis:      title + " thesis.",
	}
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)

func TestParseURL(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		dsn     string
	}{
		{"sqlite://culldron.db", DialectSQLite, "culldron.db"},
		{"sqlite:///culldron.db", DialectSQLite, "culldron.db"},
		{"sqlite:////var/lib/culldron.db", DialectSQLite, "/var/lib/culldron.db"},
		{"file:test.db?mode=rwc", DialectSQLite, "file:test.db?mode=rwc"},
		{"data/culldron.db", DialectSQLite, "data/culldron.db"},
		{"postgres://u:p@localhost:5432/culldron", DialectPostgres, "postgres://u:p@localhost:5432/culldron"},
		{"postgresql://localhost/culldron", DialectPostgres, "postgresql://localhost/culldron"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dialect, dsn, err := ParseURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	for _, bad := range []string{"", "  ", "mysql://localhost/db", "sqlite://"} {
		_, _, err := ParseURL(bad)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery, bad)
	}
}

func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "culldron.db")

	store, err := NewStore(context.Background(), "sqlite:///"+path)
	require.NoError(t, err)
	_, err = store.CreateThemeWithPost(context.Background(), newPost("https://a", "A", t0))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs migrations again without error and keeps the data.
	store, err = NewStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	keys, err := store.PostKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, core.NewNaturalKey("https://a", t0, "A"), keys[0])
}

func TestCreateThemeWithPost(t *testing.T) {
	now := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	store := setupTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stored, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)
	assert.NotZero(t, stored.Id)
	assert.NotZero(t, stored.ThemeId)
	assert.Equal(t, now, stored.IngestedAt)
	assert.Equal(t, core.NormalizeTimestamp(t0), stored.PublishedAt)

	other, err := store.CreateThemeWithPost(ctx, newPost("https://b", "B", t0))
	require.NoError(t, err)
	assert.NotEqual(t, stored.ThemeId, other.ThemeId)
}

func TestCreateThemeWithPost_DuplicateLeavesNoTheme(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)

	_, err = store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	themes, err := store.ListThemes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, themes, 1)

	s := store.(*Store)
	var count int64
	require.NoError(t, s.db.Model(&ThemeRow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "rolled back theme must not persist")
}

func TestAddPost(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)

	p := newPost("https://b", "B", t0.Add(time.Hour))
	p.ThemeId = first.ThemeId
	second, err := store.AddPost(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, first.ThemeId, second.ThemeId)
	assert.Greater(t, second.Id, first.Id)
}

func TestAddPost_Validation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AddPost(ctx, newPost("https://a", "A", t0))
	assert.ErrorIs(t, err, core.ErrMissingTheme)

	p := newPost("https://a", "A", t0)
	p.ThemeId = 1
	p.Thesis = ""
	_, err = store.AddPost(ctx, p)
	assert.ErrorIs(t, err, core.ErrInvalidPost)
}

func TestAddPost_DuplicateInsideTransaction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)

	err = store.WithTransaction(ctx, func(ctx context.Context) error {
		dup := newPost("https://a", "A", t0)
		dup.ThemeId = first.ThemeId
		_, err := store.AddPost(ctx, dup)
		require.ErrorIs(t, err, storage.ErrDuplicateKey)

		// The transaction is still usable after the failed insert.
		ok := newPost("https://c", "C", t0)
		ok.ThemeId = first.ThemeId
		_, err = store.AddPost(ctx, ok)
		return err
	})
	require.NoError(t, err)

	keys, err := store.PostKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	keys, err := store.PostKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	themes, err := store.ListThemes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, themes)
}

func TestNaturalKey_DistinguishesEachField(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)
	_, err = store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0.Add(time.Second)))
	require.NoError(t, err)
	_, err = store.CreateThemeWithPost(ctx, newPost("https://a", "A2", t0))
	require.NoError(t, err)
	_, err = store.CreateThemeWithPost(ctx, newPost("https://b", "A", t0))
	require.NoError(t, err)

	// Sub-microsecond differences collapse onto the same key.
	_, err = store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0.Add(100*time.Nanosecond)))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestConcurrentDuplicateInserts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "race.db")
	store, err := NewStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, duplicates int

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTransaction(context.Background(), func(ctx context.Context) error {
				_, err := store.CreateThemeWithPost(ctx, newPost("https://race", "Race", t0))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, storage.ErrDuplicateKey):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, duplicates)

	keys, err := store.PostKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestPostTexts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a, err := store.CreateThemeWithPost(ctx, newPost("https://a", "A", t0))
	require.NoError(t, err)
	b := newPost("https://b", "B", t0)
	b.ThemeId = a.ThemeId
	_, err = store.AddPost(ctx, b)
	require.NoError(t, err)

	texts, err := store.PostTexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.PostText{
		{ThemeId: a.ThemeId, Title: "A", Thesis: "A thesis."},
		{ThemeId: a.ThemeId, Title: "B", Thesis: "B thesis."},
	}, texts)
}

func TestListThemes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	small, err := store.CreateThemeWithPost(ctx, newPost("https://s", "S", t0))
	require.NoError(t, err)
	big, err := store.CreateThemeWithPost(ctx, newPost("https://b1", "B1", t0))
	require.NoError(t, err)
	for _, u := range []string{"https://b2", "https://b3"} {
		p := newPost(u, u, t0)
		p.ThemeId = big.ThemeId
		_, err := store.AddPost(ctx, p)
		require.NoError(t, err)
	}
	tie, err := store.CreateThemeWithPost(ctx, newPost("https://t", "T", t0))
	require.NoError(t, err)

	themes, err := store.ListThemes(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []core.ThemeSummary{
		{Id: big.ThemeId, PostCount: 3},
		{Id: small.ThemeId, PostCount: 1},
		{Id: tie.ThemeId, PostCount: 1},
	}, themes)

	page, err := store.ListThemes(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.ThemeSummary{{Id: small.ThemeId, PostCount: 1}}, page)

	_, err = store.ListThemes(ctx, -1, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestThemeTimeline(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	later, err := store.CreateThemeWithPost(ctx, newPost("https://later", "Later", t0.Add(2*time.Hour)))
	require.NoError(t, err)
	earlier := newPost("https://earlier", "Earlier", t0)
	earlier.ThemeId = later.ThemeId
	_, err = store.AddPost(ctx, earlier)
	require.NoError(t, err)

	timeline, err := store.ThemeTimeline(ctx, later.ThemeId, 0, 0)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "Earlier", timeline[0].Title)
	assert.Equal(t, "Later", timeline[1].Title)
	assert.Equal(t, "Earlier thesis.", timeline[0].Thesis)
	assert.False(t, timeline[0].IngestedAt.IsZero())

	page, err := store.ThemeTimeline(ctx, later.ThemeId, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Later", page[0].Title)

	_, err = store.ThemeTimeline(ctx, 9999, 0, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.ThemeTimeline(ctx, later.ThemeId, 0, -3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestClosedStore(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.PostKeys(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	err = store.WithTransaction(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
