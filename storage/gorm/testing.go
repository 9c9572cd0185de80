package gorm

import (
	"context"

	"github.com/poiesic/culldron/storage"
)

// NewMemoryStore creates a store on a private in-memory SQLite database for
// testing. Caller must Close it when done.
func NewMemoryStore(opts ...Option) (storage.Store, error) {
	return openStore(context.Background(), DialectSQLite, ":memory:", opts...)
}
