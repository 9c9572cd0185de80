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


// Package ingestion turns one syndicated feed into stored, theme-assigned
// posts.
//
// # Overview
//
// A Pipeline run reads the feed, normalizes every entry to plain text,
// drops entries whose natural key (url, published, title) is already stored
// or already seen in the run, extracts a one or two sentence thesis, and
// embeds "{title}. {thesis}". Each surviving candidate is then matched
// against the embeddings of every stored post plus every post stored earlier
// in the same run. A candidate that scores at least the match threshold
// joins the best theme; otherwise it founds a new one.
//
// # Transactions
//
// Reads, thesis extraction and embedding happen before any write. All
// writes of a run share one transaction that commits once. Each post insert
// runs in its own savepoint, so a uniqueness violation caused by a
// concurrent run drops only that candidate. A new theme is created together
// with its first post and never exists without it.
//
// # Usage
//
//	pipeline, err := ingestion.NewPipeline(store, feed.NewHTTPReader(), embedder)
//	if err != nil {
//	    return err
//	}
//	result, err := pipeline.Ingest(ctx, "https://example.com/feed.xml")
//
// Ingest is safe to call concurrently from request handlers and the
// scheduler.
package ingestion
