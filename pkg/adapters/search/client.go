// Package search is a ports.Searcher for Tavily-compatible web search APIs,
// with an in-memory result cache.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MikaYeghi/agent-first/pkg/domain"
)

// DefaultEndpoint is the Tavily search endpoint.
const DefaultEndpoint = "https://api.tavily.com/search"

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Client calls the search API. Identical queries are answered from the
// cache until they expire.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	cache    *gocache.Cache
	logger   *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithCacheTTL sets how long results are kept. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = gocache.New(ttl, DefaultCleanupInterval)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
		cache:    gocache.New(DefaultExpiration, DefaultCleanupInterval),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type response struct {
	Results []domain.SearchResult `json:"results"`
}

// Search implements ports.Searcher.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := fmt.Sprintf("%d:%s", limit, query)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if results, ok := v.([]domain.SearchResult); ok {
				c.logger.Debug("search cache hit", "query", query)
				return results, nil
			}
		}
	}

	body, err := json.Marshal(request{APIKey: c.apiKey, Query: query, MaxResults: limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search api returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}

	if c.cache != nil {
		c.cache.SetDefault(key, out.Results)
	}
	return out.Results, nil
}
