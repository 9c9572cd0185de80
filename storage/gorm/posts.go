package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/culldron/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostKeys returns the natural key of every stored post.
func (s *Store) PostKeys(ctx context.Context) ([]core.NaturalKey, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rows []struct {
		URL         string
		PublishedAt time.Time
		Title       string
	}
	err := s.conn(ctx).
		Model(&PostRow{}).
		Select("url", "published_at", "title").
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load post keys: %w", err)
	}

	keys := make([]core.NaturalKey, len(rows))
	for i, r := range rows {
		keys[i] = core.NewNaturalKey(r.URL, r.PublishedAt, r.Title)
	}
	return keys, nil
}

// PostTexts returns (theme id, title, thesis) for every stored post in id order.
func (s *Store) PostTexts(ctx context.Context) ([]core.PostText, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var rows []struct {
		ThemeID uint64
		Title   string
		Thesis  string
	}
	err := s.conn(ctx).
		Model(&PostRow{}).
		Select("theme_id", "title", "thesis").
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load post texts: %w", err)
	}

	texts := make([]core.PostText, len(rows))
	for i, r := range rows {
		texts[i] = core.PostText{ThemeId: core.ID(r.ThemeID), Title: r.Title, Thesis: r.Thesis}
	}
	return texts, nil
}

// CreateThemeWithPost creates a theme and its first post atomically.
func (s *Store) CreateThemeWithPost(ctx context.Context, post *core.Post) (*core.Post, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidatePost(post); err != nil {
		return nil, err
	}

	var stored *core.Post
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()
		theme := ThemeRow{CreatedAt: now}
		if err := tx.Create(&theme).Error; err != nil {
			return fmt.Errorf("create theme: %w", err)
		}

		row := postRowFrom(post, theme.ID, now)
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		stored = row.toPost()
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return stored, nil
}

// AddPost stores a post under an existing theme. The insert runs in its own
// savepoint when ctx carries a transaction.
func (s *Store) AddPost(ctx context.Context, post *core.Post) (*core.Post, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := core.ValidateAssignedPost(post); err != nil {
		return nil, err
	}

	var stored *core.Post
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		row := postRowFrom(post, uint64(post.ThemeId), s.now().UTC())
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		stored = row.toPost()
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return stored, nil
}
