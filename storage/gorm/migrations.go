package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations brings the schema up to date using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: themes and posts, including the natural-key unique index
		{
			ID: "001_themes_posts",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&ThemeRow{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&PostRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("posts", "themes")
			},
		},

		// Migration 002: timeline lookups filter by theme and sort by publish time
		{
			ID: "002_post_theme_published_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_posts_theme_published ON posts (theme_id, published_at)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_posts_theme_published").Error
			},
		},
	})

	return m.Migrate()
}
