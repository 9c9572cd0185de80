package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/culldron/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newEmbeddingServer serves /v1/embeddings, returning one 2-d vector per
// input whose first component is the input's length.
func newEmbeddingServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failures {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(in)), 1},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{})
	require.Error(t, err)
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	srv, _ := newEmbeddingServer(t, 0)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRetry(1, time.Millisecond)))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(3), vectors[1][0])

	vec, err := embedder.EmbedText(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, float32(4), vec[0])
}

func TestEmbedder_EmptyBatch(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 0)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL)))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, int32(0), calls.Load())
}

func TestEmbedder_RetriesTransientFailures(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 2)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRetry(3, time.Millisecond)))
	require.NoError(t, err)

	vec, err := embedder.EmbedText(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, float32(2), vec[0])
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedder_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := newEmbeddingServer(t, 100)

	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(srv.URL), ai.WithRetry(2, time.Millisecond)))
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "ab")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
