// Package news fetches campus and world headlines for the news
// response strategy.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"karebot/internal/domain"
)

// Fetcher retrieves headlines for a category and optional search term.
// An empty result is not an error.
type Fetcher interface {
	Fetch(ctx context.Context, category, query string) ([]domain.Article, error)
}

// NoopFetcher always returns no articles. Used when no news source is
// configured.
type NoopFetcher struct{}

func (NoopFetcher) Fetch(context.Context, string, string) ([]domain.Article, error) {
	return nil, nil
}

// Config holds news source configuration.
type Config struct {
	// Endpoint is the news service base URL (unset disables fetching).
	Endpoint string
	// Timeout bounds a single fetch round trip.
	Timeout time.Duration
}

// ConfigFromEnv reads news source configuration from environment variables.
// KAREBOT_NEWS_URL: news service base URL (unset disables fetching)
// KAREBOT_NEWS_TIMEOUT: Go duration string (default: 10s)
func ConfigFromEnv() Config {
	cfg := Config{Timeout: 10 * time.Second}
	cfg.Endpoint = os.Getenv("KAREBOT_NEWS_URL")
	if v := os.Getenv("KAREBOT_NEWS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// HTTPFetcher implements Fetcher against a JSON news endpoint:
// GET /api/news?category=<c>&q=<term>.
type HTTPFetcher struct {
	cfg    Config
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for the news endpoint.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (f *HTTPFetcher) Available() bool { return f.cfg.Endpoint != "" }

type newsResponse struct {
	Articles []domain.Article `json:"articles"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, category, query string) ([]domain.Article, error) {
	if !f.Available() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	u := strings.TrimRight(f.cfg.Endpoint, "/") + "/api/news"
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if query != "" {
		params.Set("q", query)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out newsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Articles, nil
}
