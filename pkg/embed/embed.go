// Package embed turns query text into vectors via a local llama.cpp-style
// embedding server. The server is expected to run the same model the
// ingestion pipeline embedded the corpus with.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scryer-dev/scryer/pkg/util"
)

// ErrEmptyText is returned for blank input; embedding whitespace produces a
// meaningless vector that still matches everything.
var ErrEmptyText = errors.New("cannot embed empty text")

// Client embeds text over HTTP, caching results per query string.
type Client struct {
	endpoint string
	dims     int
	http     *http.Client
	cache    *util.TTLCache
}

// NewClient creates an embedding client for the given endpoint and expected
// dimensionality.
func NewClient(endpoint string, dims int) *Client {
	return &Client{
		endpoint: endpoint,
		dims:     dims,
		http:     &http.Client{Timeout: 30 * time.Second},
		cache:    util.NewTTLCache(512, 10*time.Minute),
	}
}

type embedRequest struct {
	Content string `json:"content"`
}

// llama.cpp's /embedding replies with a one-element array whose embedding
// field is itself wrapped in an array; older builds return a flat object.
type embedItem struct {
	Embedding json.RawMessage `json:"embedding"`
}

// Embed returns the vector for text, hitting the cache first.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if cached := c.cache.Get(text); cached != nil {
		return cached.([]float32), nil
	}

	body, err := json.Marshal(embedRequest{Content: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding server returned %d: %s", resp.StatusCode, data)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	vec, err := parseEmbedding(data)
	if err != nil {
		return nil, err
	}
	if c.dims > 0 && len(vec) != c.dims {
		return nil, fmt.Errorf("embedding server returned %d dims, index expects %d", len(vec), c.dims)
	}

	c.cache.Set(text, vec)
	return vec, nil
}

func parseEmbedding(data []byte) ([]float32, error) {
	var items []embedItem
	if err := json.Unmarshal(data, &items); err == nil && len(items) > 0 {
		return unwrapVector(items[0].Embedding)
	}

	var item embedItem
	if err := json.Unmarshal(data, &item); err == nil && item.Embedding != nil {
		return unwrapVector(item.Embedding)
	}
	return nil, errors.New("unrecognized embedding response shape")
}

// unwrapVector accepts both [f,...] and [[f,...]] embedding payloads.
func unwrapVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	return nil, errors.New("embedding field is neither flat nor nested array")
}

// CacheStats exposes the embedding cache counters for the status command.
func (c *Client) CacheStats() util.CacheStats {
	return c.cache.Stats()
}
