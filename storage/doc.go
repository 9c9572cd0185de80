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


// Package storage defines the persistence contract for themes and posts.
//
// The ingestion pipeline depends only on the interfaces in this package; the
// relational implementation lives in storage/gorm.
//
// # Constructor Return Type Pattern
//
// Public constructors of storage implementations return the Store interface:
//
//	store, err := gorm.NewStore(ctx, "sqlite://culldron.db") // returns storage.Store
//
// # Transactions
//
// WithTransaction runs a function in a transaction carried by the context it
// passes to fn. Every store method called with that context joins the
// transaction. Calling WithTransaction again with a transactional context
// opens a nested savepoint, so a failure inside it rolls back only the
// nested work.
//
// # Uniqueness
//
// The (url, published_at, title) natural key of a post is unique. An insert
// that violates it fails with an error matching ErrDuplicateKey, which
// callers can tell apart from any other write failure.
//
// # Thread Safety
//
// Store implementations are safe for concurrent use. Concurrent ingestion
// runs rely on the uniqueness constraint, not on locking.
package storage
