package gorm

import (
	"time"

	"github.com/poiesic/culldron/core"
)

// ThemeRow is the persisted form of core.Theme.
type ThemeRow struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ThemeRow) TableName() string { return "themes" }

// PostRow is the persisted form of core.Post. The (url, published_at, title)
// natural key carries a unique index.
type PostRow struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ThemeID     uint64    `gorm:"not null;index"`
	Theme       *ThemeRow `gorm:"foreignKey:ThemeID;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	URL         string    `gorm:"column:url;not null;uniqueIndex:idx_posts_natural_key,priority:1"`
	PublishedAt time.Time `gorm:"not null;uniqueIndex:idx_posts_natural_key,priority:2"`
	Title       string    `gorm:"not null;uniqueIndex:idx_posts_natural_key,priority:3"`
	IngestedAt  time.Time `gorm:"not null"`
	Thesis      string    `gorm:"type:text;not null"`
}

func (PostRow) TableName() string { return "posts" }

func postRowFrom(post *core.Post, themeID uint64, ingestedAt time.Time) PostRow {
	return PostRow{
		ThemeID:     themeID,
		URL:         post.URL,
		PublishedAt: core.NormalizeTimestamp(post.PublishedAt),
		Title:       post.Title,
		IngestedAt:  ingestedAt,
		Thesis:      post.Thesis,
	}
}

func (r *PostRow) toPost() *core.Post {
	return &core.Post{
		Id:          core.ID(r.ID),
		ThemeId:     core.ID(r.ThemeID),
		Title:       r.Title,
		URL:         r.URL,
		PublishedAt: core.NormalizeTimestamp(r.PublishedAt),
		IngestedAt:  r.IngestedAt.UTC(),
		Thesis:      r.Thesis,
	}
}
