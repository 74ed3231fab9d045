// Package knowledge talks to the backend knowledge service that answers
// university questions.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoAnswer indicates the backend responded but produced no usable
// answer text.
var ErrNoAnswer = errors.New("knowledge: empty answer")

// Answer is the backend's reply to a query.
type Answer struct {
	Text string
	// DetectedLanguage is the backend's own language verdict, when it
	// reports one. Empty otherwise.
	DetectedLanguage string
}

// Client abstracts the knowledge backend.
type Client interface {
	// Query sends the user's text and returns the backend's answer.
	Query(ctx context.Context, query, language, sessionID string) (Answer, error)

	// Available returns true if the client is configured and ready.
	Available() bool
}

// Config holds knowledge backend configuration.
type Config struct {
	// Endpoint is the backend base URL (e.g. http://localhost:8000).
	Endpoint string
	// Timeout bounds a single query round trip.
	Timeout time.Duration
}

// ConfigFromEnv reads backend configuration from environment variables.
// KAREBOT_BACKEND_URL: backend base URL (unset disables the client)
// KAREBOT_BACKEND_TIMEOUT: Go duration string (default: 15s)
func ConfigFromEnv() Config {
	cfg := Config{Timeout: 15 * time.Second}
	cfg.Endpoint = os.Getenv("KAREBOT_BACKEND_URL")
	if v := os.Getenv("KAREBOT_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// HTTPClient implements Client against the backend's POST /api/query
// endpoint.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates a client for the query endpoint.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *HTTPClient) Available() bool { return c.cfg.Endpoint != "" }

func (c *HTTPClient) baseURL() string {
	return strings.TrimRight(c.cfg.Endpoint, "/")
}

type queryRequest struct {
	Query     string `json:"query"`
	Language  string `json:"language"`
	SessionID string `json:"session_id"`
}

// queryResponse is the structured response form. The backend may also
// reply with a bare JSON string.
type queryResponse struct {
	Response         string `json:"response"`
	DetectedLanguage string `json:"detected_language"`
}

func (c *HTTPClient) Query(ctx context.Context, query, language, sessionID string) (Answer, error) {
	bodyJSON, err := json.Marshal(queryRequest{Query: query, Language: language, SessionID: sessionID})
	if err != nil {
		return Answer{}, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/query", strings.NewReader(string(bodyJSON)))
	if err != nil {
		return Answer{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Answer{}, fmt.Errorf("backend status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	ans, err := parseAnswer(respBody)
	if err != nil {
		return Answer{}, err
	}
	if strings.TrimSpace(ans.Text) == "" {
		return Answer{}, ErrNoAnswer
	}
	return ans, nil
}

// parseAnswer accepts either a bare JSON string or a structured object.
func parseAnswer(body []byte) (Answer, error) {
	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return Answer{Text: bare}, nil
	}
	var structured queryResponse
	if err := json.Unmarshal(body, &structured); err != nil {
		return Answer{}, fmt.Errorf("decode response: %w", err)
	}
	return Answer{Text: structured.Response, DetectedLanguage: structured.DetectedLanguage}, nil
}
