package service

import (
	"errors"
	"fmt"

	"github.com/okian/brandmatch/internal/domain/attribute"
)

// Sentinel kinds for service errors.
var (
	// ErrBrandNotFound is returned when a brand is unknown or has no usable attributes.
	ErrBrandNotFound = errors.New("brand not found")

	// ErrInvalidAttributes is returned for input without any usable attribute text.
	ErrInvalidAttributes = errors.New("invalid attributes")

	// ErrNotStarted is returned by ingest calls before Start.
	ErrNotStarted = errors.New("service not started")
)

// AttributeFailure records why one attribute contributed nothing to a ranking.
type AttributeFailure struct {
	Key attribute.Key
	Err error
}

func (f *AttributeFailure) Error() string {
	return fmt.Sprintf("attribute %s: %v", f.Key, f.Err)
}

func (f *AttributeFailure) Unwrap() error { return f.Err }
