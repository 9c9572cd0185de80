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


// Package ai provides the embedding abstraction used by thesis extraction
// and theme matching.
//
// The Embedder interface is the only capability the ingestion core needs:
// a deterministic text -> vector function. The core never inspects vectors
// beyond computing cosine similarity (see CosineSimilarity).
//
// # Implementation Packages
//
//   - ai/openai: production embedder for OpenAI-compatible APIs (Ollama, vLLM, OpenAI)
//   - ai/cache: persistent decorator that memoizes another Embedder on disk
//   - ai/mock: deterministic test double
//
// Public constructors of production embedders return the ai.Embedder
// interface. Test doubles return concrete types so tests can inspect call
// counts and inject behavior.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("all-minilm"),
//	)
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vec, err := embedder.EmbedText(ctx, "Rates are rising again.")
package ai
