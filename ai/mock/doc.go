// Package mock provides a test double for ai.Embedder.
//
// MockEmbedder lets tests run without an embedding service and keeps
// behavior deterministic, which thesis extraction and theme matching rely on.
//
// # Usage in Tests
//
//	// Default deterministic behavior
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Pin vectors for specific texts to control similarity
//	embedder.SetVector("Rates. Rates are rising.", []float32{1, 0, 0})
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("boom")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
// Texts without a pinned vector map to a pseudo-random unit vector seeded by
// the FNV hash of the text. Components are centered on zero, so unrelated
// texts are close to orthogonal.
package mock
