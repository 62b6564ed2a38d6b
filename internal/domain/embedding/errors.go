package embedding

import "errors"

var (
	// ErrEmbeddingUnavailable reports an upstream failure or malformed output.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDataIntegrity marks malformed vectors (wrong dimension, empty, non-finite).
	ErrDataIntegrity = errors.New("data integrity")
)
