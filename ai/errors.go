package ai

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingMismatch is returned when a batch call yields a different
	// number of vectors than texts.
	ErrEmbeddingMismatch = errors.New("embedding count does not match input count")
)
