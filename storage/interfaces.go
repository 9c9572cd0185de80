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


package storage

import (
	"context"

	"github.com/poiesic/culldron/core"
)

// Repository provides operations shared by all stores.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn carries the transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// PostRepository provides the reads and writes used by ingestion.
type PostRepository interface {
	Repository

	// PostKeys returns the natural key of every stored post.
	PostKeys(ctx context.Context) ([]core.NaturalKey, error)

	// PostTexts returns (theme id, title, thesis) for every stored post,
	// ordered by post id.
	PostTexts(ctx context.Context) ([]core.PostText, error)

	// CreateThemeWithPost creates a new theme and stores post as its first
	// member in one atomic unit. The returned post carries its id, theme id
	// and ingestion time. If the post violates the natural-key constraint the
	// theme is not created and the error matches ErrDuplicateKey.
	CreateThemeWithPost(ctx context.Context, post *core.Post) (*core.Post, error)

	// AddPost stores post under its existing ThemeId. A natural-key
	// violation fails with an error matching ErrDuplicateKey and leaves the
	// enclosing transaction usable.
	AddPost(ctx context.Context, post *core.Post) (*core.Post, error)
}

// ThemeReader provides read access for the request layer.
type ThemeReader interface {
	// ListThemes returns themes with their post counts, ordered by count
	// descending then id ascending. Negative limit or offset returns
	// ErrInvalidQuery.
	ListThemes(ctx context.Context, limit, offset int) ([]core.ThemeSummary, error)

	// ThemeTimeline returns the posts of a theme ordered by publish time
	// ascending then id. Returns ErrNotFound when the theme has no posts in
	// the requested window.
	ThemeTimeline(ctx context.Context, themeID core.ID, limit, offset int) ([]core.TimelineEntry, error)
}

// Store combines every storage capability.
type Store interface {
	PostRepository
	ThemeReader
}
