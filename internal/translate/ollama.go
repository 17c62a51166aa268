// Package translate machine-translates transcript segments through a local
// Ollama server and streams per-segment progress.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 2 * time.Minute
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	defaultRetryAttempts  = 2
	maxErrorBody          = 512
)

// Config captures the runtime settings required to talk to Ollama.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration // per request
}

// Client calls the Ollama generate API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 2).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an Ollama client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	client := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: cfg.Timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError is a non-2xx reply from Ollama.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: http %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("ollama: empty response")

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Translate asks the model for a translation of text and returns it with
// wrapping quotes removed.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	out, err := c.Generate(ctx, BuildPrompt(text, source, target))
	if err != nil {
		return "", err
	}
	cleaned := CleanQuotes(out)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}
	return cleaned, nil
}

// Generate runs one non-streaming completion, retrying transient failures.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{Model: c.cfg.Model, Prompt: prompt, Stream: false}
	attempts := c.retryAttempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := c.generateOnce(ctx, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("ollama generate: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, payload generateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: encode body: %w", err)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "api", "generate")
	if err != nil {
		return "", fmt.Errorf("ollama: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("ollama: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: http error (timeout=%s): %w", c.cfg.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", ErrEmptyResponse
	}
	return out.Response, nil
}

// Models lists the models installed on the server (GET /api/tags).
func (c *Client) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	endpoint, err := url.JoinPath(c.cfg.BaseURL, "api", "tags")
	if err != nil {
		return nil, fmt.Errorf("ollama: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("ollama: decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return c.backoffDelay(attempt), true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	maxDelay := c.retryMaxDelay
	if base <= 0 {
		return 0
	}
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
