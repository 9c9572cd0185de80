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


// Package cache provides a persistent ai.Embedder decorator.
//
// Cache stores every vector produced by an upstream embedder in BadgerDB,
// keyed by a BLAKE2b digest of the model name and the input text. Because
// embedders are deterministic for identical input, a cached vector is
// interchangeable with a fresh one, and repeated embedding of the same text
// (for example the per-run recomputation of stored post embeddings) becomes a
// local read.
//
// # Usage
//
//	backend, err := cache.OpenBackend("/var/lib/culldron/embeddings", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	embedder, err := cache.New(upstream, backend, "all-minilm")
//
// Values are encoded with mus-go. Entries that fail to decode, or that were
// written for another model, are treated as misses and overwritten.
package cache
