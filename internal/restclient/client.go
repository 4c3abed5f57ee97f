package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/reelrag/internal/domain"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 2048

// AuthFunc decorates an outgoing request with credentials.
type AuthFunc func(req *http.Request)

// HeaderAuth sets a raw header value, e.g. AssemblyAI's "authorization: <key>".
func HeaderAuth(name, value string) AuthFunc {
	return func(req *http.Request) {
		req.Header.Set(name, value)
	}
}

// BearerAuth sets "Authorization: Bearer <token>".
func BearerAuth(token string) AuthFunc {
	return HeaderAuth("Authorization", "Bearer "+token)
}

// Client is a small JSON-over-HTTP client for third-party REST APIs.
type Client struct {
	baseURL    string
	auth       AuthFunc
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client rooted at baseURL.
func New(baseURL string, auth AuthFunc, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root every request path is joined to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post performs a POST request with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

// Do sends a request and decodes a JSON response into out (skipped when out is
// nil). Returned errors are tagged with a domain.ErrorKind: auth failures are
// config errors, throttling and 5xx are transient, other 4xx and undecodable
// bodies are data-shape errors.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return domain.DataShape(op, fmt.Errorf("failed to marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return domain.Config(op, fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Transient(op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transient(op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode >= 400 {
		return classify(op, &APIError{
			StatusCode: resp.StatusCode,
			Message:    truncate(strings.TrimSpace(string(respBody)), maxErrorBody),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.DataShape(op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

// StatusCode extracts the HTTP status from an error returned by Do, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func classify(op string, err *APIError) error {
	switch {
	case err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden:
		return domain.Config(op, err)
	case err.StatusCode == http.StatusTooManyRequests || err.StatusCode == http.StatusRequestTimeout:
		return domain.Transient(op, err)
	case err.StatusCode >= 500:
		return domain.Transient(op, err)
	default:
		return domain.DataShape(op, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
