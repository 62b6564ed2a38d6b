package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/brandmatch/internal/domain/types"
)

// Client talks to the brandmatch HTTP API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a Client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, client: &http.Client{Timeout: timeout}}
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Status int
	Body   types.ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.Status, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
}

// PutBrand stores a brand.
func (c *Client) PutBrand(ctx context.Context, name string, attrs map[string]string) error {
	body := map[string]map[string]string{"attributes": attrs}
	return c.do(ctx, http.MethodPut, "/api/v1/brands/"+url.PathEscape(name), body, nil, http.StatusOK)
}

// PostInfluencer submits a profile and reports whether it was a duplicate.
func (c *Client) PostInfluencer(ctx context.Context, req types.InfluencerRequest) (bool, error) {
	var resp types.InfluencerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/influencers", req, &resp, http.StatusAccepted, http.StatusOK); err != nil {
		return false, err
	}
	return resp.Status == "duplicate", nil
}

// Match ranks influencers for a stored brand.
func (c *Client) Match(ctx context.Context, brand string, topK int) (types.MatchResponse, error) {
	var resp types.MatchResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/match-influencers",
		types.MatchBrandRequest{BrandName: brand, TopK: topK}, &resp, http.StatusOK)
	return resp, err
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out, http.StatusOK)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, want ...int) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	for _, code := range want {
		if resp.StatusCode == code {
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}
	}
	se := &StatusError{Status: resp.StatusCode}
	_ = json.Unmarshal(data, &se.Body)
	return se
}
