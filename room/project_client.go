package room

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kwv/roomscan/internal/logger"
)

const (
	// DefaultStoreTimeout is the default HTTP request timeout for project saves.
	DefaultStoreTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 3

	// defaultBaseBackoff is the base delay for exponential backoff.
	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes limits the response body read from the backend.
	maxResponseBytes = 1 << 20
)

// ProjectStore persists saved projects for a user and returns the project ID.
type ProjectStore interface {
	SaveProject(ctx context.Context, userID string, p ProjectPayload) (string, error)
}

// StatusError is a non-2xx response from the project backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// retryable reports whether another attempt could succeed.
func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// ClientOption configures a ProjectClient.
type ClientOption func(*ProjectClient)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *ProjectClient) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *ProjectClient) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay for exponential backoff between retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *ProjectClient) {
		c.baseBackoff = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ProjectClient) {
		c.client = client
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *ProjectClient) {
		c.token = token
	}
}

// ProjectClient saves projects to a remote project backend over HTTP.
type ProjectClient struct {
	baseURL     string
	token       string
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

// NewProjectClient creates a client for the backend at baseURL.
func NewProjectClient(baseURL string, opts ...ClientOption) (*ProjectClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("project client: base URL is empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("project client: %w", err)
	}

	c := &ProjectClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     DefaultStoreTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// saveResponse is the body the backend returns on success.
type saveResponse struct {
	ID string `json:"id"`
}

// SaveProject posts the project to /users/{userID}/projects. Transient
// failures are retried with exponential backoff; 4xx responses are not.
func (c *ProjectClient) SaveProject(ctx context.Context, userID string, p ProjectPayload) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("save project: user ID is empty")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("save project: marshaling payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/users/%s/projects", c.baseURL, url.PathEscape(userID))

	var lastErr error
	for attempt := range c.maxRetries {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			logger.Sugar.Warnw("retrying project save", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("save project: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		respBody, err := c.doPost(ctx, endpoint, body)
		if err != nil {
			lastErr = err
			var se *StatusError
			if errors.As(err, &se) && !se.retryable() {
				return "", fmt.Errorf("save project: %w", err)
			}
			continue
		}

		var resp saveResponse
		if len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return "", fmt.Errorf("save project: decoding response: %w", err)
			}
		}
		logger.Sugar.Infow("project saved", "user", userID, "name", p.Name, "id", resp.ID)
		return resp.ID, nil
	}

	return "", fmt.Errorf("save project: all %d attempts failed: %w", c.maxRetries, lastErr)
}

// doPost performs a single HTTP POST and returns the response body bytes.
func (c *ProjectClient) doPost(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP POST %s: %w", endpoint,
			&StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}
	return data, nil
}
