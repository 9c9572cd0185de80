package gorm

import (
	"context"
	"fmt"

	"github.com/poiesic/culldron/core"
	"github.com/poiesic/culldron/storage"
)

func checkWindow(limit, offset int) error {
	if limit < 0 || offset < 0 {
		return fmt.Errorf("%w: limit and offset must be non-negative", storage.ErrInvalidQuery)
	}
	return nil
}

// gormLimit maps a zero limit to "no limit".
func gormLimit(limit int) int {
	if limit == 0 {
		return -1
	}
	return limit
}

// ListThemes returns themes that have posts with their post counts, largest first.
func (s *Store) ListThemes(ctx context.Context, limit, offset int) ([]core.ThemeSummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkWindow(limit, offset); err != nil {
		return nil, err
	}

	var rows []struct {
		ThemeID   uint64
		PostCount int
	}
	err := s.conn(ctx).
		Model(&PostRow{}).
		Select("theme_id, COUNT(*) AS post_count").
		Group("theme_id").
		Order("post_count DESC").
		Order("theme_id ASC").
		Limit(gormLimit(limit)).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}

	out := make([]core.ThemeSummary, len(rows))
	for i, r := range rows {
		out[i] = core.ThemeSummary{Id: core.ID(r.ThemeID), PostCount: r.PostCount}
	}
	return out, nil
}

// ThemeTimeline returns a theme's posts in publish order.
func (s *Store) ThemeTimeline(ctx context.Context, themeID core.ID, limit, offset int) ([]core.TimelineEntry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkWindow(limit, offset); err != nil {
		return nil, err
	}

	var rows []PostRow
	err := s.conn(ctx).
		Where("theme_id = ?", uint64(themeID)).
		Order("published_at ASC").
		Order("id ASC").
		Limit(gormLimit(limit)).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load theme %d: %w", themeID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: theme %d", storage.ErrNotFound, themeID)
	}

	out := make([]core.TimelineEntry, len(rows))
	for i := range rows {
		p := rows[i].toPost()
		out[i] = core.TimelineEntry{
			Title:       p.Title,
			URL:         p.URL,
			PublishedAt: p.PublishedAt,
			IngestedAt:  p.IngestedAt,
			Thesis:      p.Thesis,
		}
	}
	return out, nil
}
