// Package breaker guards upstream collaborators with circuit breakers so a
// failing embedding API or index backend is skipped fast instead of being
// waited on for every attribute.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const (
	defaultMaxFailures = 5
	defaultTimeout     = 30 * time.Second
	halfOpenRequests   = 1
)

// Option applies a configuration option to a breaker.
type Option func(*settings)

type settings struct {
	maxFailures uint32
	timeout     time.Duration
	log         logger.Logger
}

// WithMaxFailures trips the breaker after n consecutive failures.
func WithMaxFailures(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxFailures = uint32(n)
		}
	}
}

// WithTimeout sets how long the breaker stays open before probing again.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for state changes.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

func newBreaker(name string, opts []Option) *gobreaker.CircuitBreaker {
	s := settings{maxFailures: defaultMaxFailures, timeout: defaultTimeout, log: logger.NamedOrNop("breaker")}
	for _, opt := range opts {
		opt(&s)
	}
	metrics.UpdateBreakerState(name, int(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpenRequests,
		Timeout:     s.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.maxFailures
		},
		// Caller cancellation says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
			s.log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

func rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Provider wraps an embedding.Provider.
type Provider struct {
	next embedding.Provider
	cb   *gobreaker.CircuitBreaker
}

// NewProvider guards next with a breaker called name.
func NewProvider(name string, next embedding.Provider, opts ...Option) *Provider {
	return &Provider{next: next, cb: newBreaker(name, opts)}
}

// Embed calls the wrapped provider unless the breaker is open.
func (p *Provider) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.next.Embed(ctx, text)
	})
	if err != nil {
		if rejected(err) {
			return nil, fmt.Errorf("%w: breaker %s: %w", embedding.ErrEmbeddingUnavailable, p.cb.Name(), err)
		}
		return nil, err
	}
	return out.(embedding.Vector), nil
}

// State returns the breaker state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

// Client wraps a similarity.Client. A missing partition is not counted as
// a backend failure.
type Client struct {
	next similarity.Client
	cb   *gobreaker.CircuitBreaker
}

// NewClient guards next with a breaker called name.
func NewClient(name string, next similarity.Client, opts ...Option) *Client {
	return &Client{next: next, cb: newBreaker(name, opts)}
}

// Query calls the wrapped client unless the breaker is open.
func (c *Client) Query(ctx context.Context, vec embedding.Vector, partition attribute.Partition, topN int) ([]model.RawMatch, error) {
	var notReady error
	out, err := c.cb.Execute(func() (interface{}, error) {
		matches, err := c.next.Query(ctx, vec, partition, topN)
		if errors.Is(err, similarity.ErrIndexNotReady) {
			notReady = err
			return []model.RawMatch(nil), nil
		}
		return matches, err
	})
	if notReady != nil {
		return nil, notReady
	}
	if err != nil {
		if rejected(err) {
			return nil, fmt.Errorf("%w: breaker %s: %w", similarity.ErrIndexUnavailable, c.cb.Name(), err)
		}
		return nil, err
	}
	return out.([]model.RawMatch), nil
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State { return c.cb.State() }
