package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/brandmatch/internal/adapters/mq/queue"
	"github.com/okian/brandmatch/internal/adapters/repository"
	service "github.com/okian/brandmatch/internal/app"
	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/ranking"
	"github.com/okian/brandmatch/internal/domain/similarity"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// opError tags an error with the handler operation it came from.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }

func (e *opError) Unwrap() error { return e.err }

// Wrap tags err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind tags cause with op and kind so errors.Is matches both.
func WrapKind(op string, kind, cause error) error {
	return &opError{op: op, err: fmt.Errorf("%w: %w", kind, cause)}
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}

// classify maps an error onto an HTTP status and error code. Unavailability
// is checked before not-found so that a ranking which failed on every
// attribute reports 503 rather than an empty result.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidAttributes),
		errors.Is(err, attribute.ErrUnknownKey):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled),
		errors.Is(err, embedding.ErrEmbeddingUnavailable),
		errors.Is(err, similarity.ErrIndexUnavailable),
		errors.Is(err, similarity.ErrIndexNotReady),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, service.ErrBrandNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, ranking.ErrNoCandidatesFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
