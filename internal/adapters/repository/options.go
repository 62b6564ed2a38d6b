package repository

import "time"

// Option applies a configuration option to a brand store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

func defaultOptions() storeOptions {
	return storeOptions{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}
