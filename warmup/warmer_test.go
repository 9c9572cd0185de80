package warmup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/poiesic/culldron/ai/cache"
	"github.com/poiesic/culldron/ai/mock"
	"github.com/poiesic/culldron/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	texts []core.PostText
	err   error
}

func (s *staticSource) PostTexts(context.Context) ([]core.PostText, error) {
	return s.texts, s.err
}

func postTexts(n int) []core.PostText {
	texts := make([]core.PostText, n)
	for i := range texts {
		texts[i] = core.PostText{
			ThemeId: core.ID(i%3 + 1),
			Title:   fmt.Sprintf("Post %d", i),
			Thesis:  fmt.Sprintf("Claim number %d.", i),
		}
	}
	return texts
}

func TestNewWarmer_Validation(t *testing.T) {
	t.Run("requires source", func(t *testing.T) {
		_, err := NewWarmer(nil, mock.NewMockEmbedder(), nil, nil)
		assert.ErrorIs(t, err, ErrSourceRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewWarmer(&staticSource{}, nil, nil, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		_, err := NewWarmer(&staticSource{}, mock.NewMockEmbedder(), &Config{BatchSize: 0}, nil)
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	})
}

func TestWarmer_Batches(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	var progress bytes.Buffer
	w, err := NewWarmer(&staticSource{texts: postTexts(25)}, embedder,
		&Config{BatchSize: 10, ReportInterval: 10}, &progress)
	require.NoError(t, err)

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, result.Posts)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Equal(t, 25, embedder.TextCount())
	assert.Contains(t, progress.String(), "Embedding 25 posts")
	assert.Contains(t, progress.String(), "25/25")
}

func TestWarmer_EmbedsMatchText(t *testing.T) {
	var seen []string
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		seen = append(seen, texts...)
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}

	source := &staticSource{texts: []core.PostText{{ThemeId: 1, Title: "Rates", Thesis: "Rates will rise."}}}
	w, err := NewWarmer(source, embedder, nil, io.Discard)
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rates. Rates will rise."}, seen)
}

func TestWarmer_EmptyStore(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	var progress bytes.Buffer
	w, err := NewWarmer(&staticSource{}, embedder, nil, &progress)
	require.NoError(t, err)

	result, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Posts)
	assert.Equal(t, 0, embedder.CallCount())
	assert.Contains(t, progress.String(), "No posts found")
}

func TestWarmer_Errors(t *testing.T) {
	t.Run("source failure", func(t *testing.T) {
		boom := errors.New("db down")
		w, err := NewWarmer(&staticSource{err: boom}, mock.NewMockEmbedder(), nil, nil)
		require.NoError(t, err)

		_, err = w.Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("embedder failure", func(t *testing.T) {
		boom := errors.New("upstream unavailable")
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return nil, boom
		}
		w, err := NewWarmer(&staticSource{texts: postTexts(3)}, embedder, nil, nil)
		require.NoError(t, err)

		_, err = w.Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("short embedder response", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}
		w, err := NewWarmer(&staticSource{texts: postTexts(3)}, embedder, nil, nil)
		require.NoError(t, err)

		_, err = w.Run(context.Background())
		assert.ErrorIs(t, err, ErrCountMismatch)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		embedder := mock.NewMockEmbedder()
		w, err := NewWarmer(&staticSource{texts: postTexts(3)}, embedder, nil, nil)
		require.NoError(t, err)

		_, err = w.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, embedder.CallCount())
	})
}

func TestWarmer_PopulatesCache(t *testing.T) {
	backend, err := cache.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	upstream := mock.NewMockEmbedder()
	cached, err := cache.New(upstream, backend, "test-model")
	require.NoError(t, err)

	source := &staticSource{texts: postTexts(12)}
	w, err := NewWarmer(source, cached, &Config{BatchSize: 5, ReportInterval: 5}, nil)
	require.NoError(t, err)

	_, err = w.Run(context.Background())
	require.NoError(t, err)

	n, err := cached.Len()
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	upstream.Reset()
	_, err = w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, upstream.TextCount(), "second run should be served from the cache")
}
