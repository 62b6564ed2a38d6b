package similarity

import "errors"

var (
	// ErrIndexUnavailable reports a backend failure.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrIndexNotReady reports a partition that does not exist.
	ErrIndexNotReady = errors.New("index not ready")
)
