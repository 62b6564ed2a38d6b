// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const (
	providerName   = "openai"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Option applies a configuration option to the Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithDimension requests vectors of dim components and validates responses against it.
func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) Option {
	return func(e *Embedder) {
		if url != "" {
			e.baseURL = url
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Embedder) {
		if l != nil {
			e.log = l
		}
	}
}

// Embedder calls the OpenAI embeddings endpoint. The SDK's own retries are
// disabled; retry policy belongs to callers.
type Embedder struct {
	client  openai.Client
	model   string
	dim     int
	baseURL string
	timeout time.Duration
	log     logger.Logger
}

// New creates an Embedder authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	e := &Embedder{
		model:   defaultModel,
		dim:     embedding.Dimension,
		timeout: defaultTimeout,
		log:     logger.NamedOrNop("embedding.openai"),
	}
	for _, opt := range opts {
		opt(e)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(e.timeout),
	}
	if e.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
	}
	e.client = openai.NewClient(clientOpts...)
	return e, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	start := time.Now()
	defer func() { metrics.RecordEmbeddingLatency(providerName, float64(time.Since(start).Milliseconds())) }()

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(e.model),
		Dimensions:     openai.Int(int64(e.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		metrics.RecordEmbeddingError(providerName)
		e.log.Warn(ctx, "embedding request failed", logger.String("model", e.model), logger.Error(err))
		return nil, embedding.Unavailable(providerName, err)
	}
	if len(resp.Data) == 0 {
		metrics.RecordEmbeddingError(providerName)
		return nil, embedding.Validate(nil, e.dim)
	}

	vec := embedding.FromFloat64(resp.Data[0].Embedding)
	if err := embedding.Validate(vec, e.dim); err != nil {
		metrics.RecordEmbeddingError(providerName)
		e.log.Warn(ctx, "malformed embedding", logger.Int("dimension", len(vec)), logger.Error(err))
		return nil, err
	}
	return vec, nil
}
