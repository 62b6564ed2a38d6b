// Package worker runs the ingest pool that embeds influencer attribute texts
// and writes them into the similarity index.
package worker

import (
	"context"

	"github.com/okian/brandmatch/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithResultHook registers a callback invoked after every job with its
// outcome. A nil error means every partition was indexed.
func WithResultHook(fn func(ctx context.Context, j Job, err error)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onResult = fn
		}
	}
}
