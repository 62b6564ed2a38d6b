// Package cohere embeds text with the Cohere /v1/embed API over fasthttp.
package cohere

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/pkg/logger"
	"github.com/okian/brandmatch/pkg/metrics"
)

const (
	providerName     = "cohere"
	defaultBaseURL   = "https://api.cohere.ai"
	defaultModel     = "embed-multilingual-v3.0"
	defaultInputType = "classification"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 256
)

// ErrMissingAPIKey is returned by New without an API key.
var ErrMissingAPIKey = errors.New("cohere: api key is required")

// Doer performs one HTTP exchange; *fasthttp.Client satisfies it.
type Doer interface {
	DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error
}

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

// WithInputType sets the input_type sent with every request.
func WithInputType(t string) Option {
	return func(e *Embedder) {
		if t != "" {
			e.inputType = t
		}
	}
}

// WithDimension sets the expected vector length.
func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// WithBaseURL overrides the API host, e.g. for a proxy.
func WithBaseURL(url string) Option {
	return func(e *Embedder) {
		if url != "" {
			e.baseURL = strings.TrimRight(url, "/")
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

// WithClient replaces the HTTP client.
func WithClient(c Doer) Option {
	return func(e *Embedder) {
		if c != nil {
			e.client = c
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

// Embedder calls Cohere's embed endpoint for one text at a time.
type Embedder struct {
	client    Doer
	apiKey    string
	baseURL   string
	model     string
	inputType string
	dim       int
	timeout   time.Duration
	log       logger.Logger
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type embedResponse struct {
	ID         string      `json:"id"`
	Embeddings [][]float64 `json:"embeddings"`
}

// New creates an Embedder authenticated with apiKey.
func New(apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	e := &Embedder{
		client:    &fasthttp.Client{Name: "brandmatch"},
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     defaultModel,
		inputType: defaultInputType,
		dim:       embedding.Dimension,
		timeout:   defaultTimeout,
		log:       logger.NamedOrNop("embedding.cohere"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	start := time.Now()
	defer func() { metrics.RecordEmbeddingLatency(providerName, float64(time.Since(start).Milliseconds())) }()

	vec, err := e.embed(ctx, text)
	if err != nil {
		metrics.RecordEmbeddingError(providerName)
		e.log.Warn(ctx, "embedding request failed", logger.String("model", e.model), logger.Error(err))
		return nil, err
	}
	return vec, nil
}

func (e *Embedder) embed(ctx context.Context, text string) (embedding.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, embedding.Unavailable(providerName, err)
	}

	body, err := json.Marshal(embedRequest{
		Texts:     []string{text},
		Model:     e.model,
		InputType: e.inputType,
		Truncate:  "END",
	})
	if err != nil {
		return nil, embedding.Unavailable(providerName, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.SetRequestURI(e.baseURL + "/v1/embed")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.SetBody(body)

	if err := e.do(ctx, req, resp); err != nil {
		return nil, embedding.Unavailable(providerName, err)
	}
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		msg := resp.Body()
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, embedding.Unavailable(providerName, fmt.Errorf("status %d: %s", resp.StatusCode(), msg))
	}

	var out embedResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, embedding.Unavailable(providerName, fmt.Errorf("decode: %w", err))
	}
	if len(out.Embeddings) == 0 {
		return nil, embedding.Validate(nil, e.dim)
	}
	vec := embedding.FromFloat64(out.Embeddings[0])
	if err := embedding.Validate(vec, e.dim); err != nil {
		return nil, err
	}
	return vec, nil
}

// do runs the exchange honoring ctx. On success the caller releases req and
// resp; when ctx wins, the in-flight goroutine releases them once it returns.
func (e *Embedder) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	done := make(chan error, 1)
	go func() { done <- e.client.DoTimeout(req, resp, e.timeout) }()

	select {
	case <-ctx.Done():
		go func() {
			<-done
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
		}
		return err
	}
}
