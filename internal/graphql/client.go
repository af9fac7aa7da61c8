// ABOUTME: Minimal GraphQL-over-HTTP client used by the consoles
// ABOUTME: Queries retry transient failures with exponential backoff; mutations never retry

package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/2389/console-session/internal/metrics"
)

const (
	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20

	defaultMaxRetries = 2
	defaultRetryBase  = 200 * time.Millisecond
)

// ErrHTTPStatus wraps non-2xx responses.
var ErrHTTPStatus = errors.New("unexpected http status")

// Request is one GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Error is a single entry of a GraphQL "errors" array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// ResponseError is returned when the server answered with GraphQL errors.
type ResponseError struct {
	Errors []Error
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// HasCode reports whether any error carries extensions.code == code.
func (e *ResponseError) HasCode(code string) bool {
	for _, ge := range e.Errors {
		if c, ok := ge.Extensions["code"].(string); ok && c == code {
			return true
		}
	}
	return false
}

// Client posts GraphQL operations to a single endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries uint64
	retryBase  time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client, typically one whose Transport is a
// transport.BearerTransport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetry sets how many times a query is retried and the first backoff.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) {
		if maxRetries < 0 {
			maxRetries = 0
		}
		if base <= 0 {
			base = defaultRetryBase
		}
		c.maxRetries = uint64(maxRetries)
		c.retryBase = base
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "graphql")
	return c
}

// Endpoint returns the URL operations are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors"`
}

// Do executes req and decodes its data into out, which may be nil. GraphQL
// errors are returned as *ResponseError after any partial data is decoded.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	retries := c.maxRetries
	if isMutation(req.Query) {
		retries = 0
	}
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(c.retryBase))

	var payload []byte
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		data, err := c.post(ctx, body)
		if err != nil {
			c.logger.Debug("graphql attempt failed", "attempt", attempt, "error", err)
			return err
		}
		payload = data
		return nil
	})
	if err != nil {
		metrics.RecordGraphQLRequest(metrics.OutcomeError)
		return err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		metrics.RecordGraphQLRequest(metrics.OutcomeError)
		return fmt.Errorf("decoding response: %w", err)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			metrics.RecordGraphQLRequest(metrics.OutcomeError)
			return fmt.Errorf("decoding data: %w", err)
		}
	}

	if len(env.Errors) > 0 {
		metrics.RecordGraphQLRequest(metrics.OutcomeRejected)
		return &ResponseError{Errors: env.Errors}
	}
	metrics.RecordGraphQLRequest(metrics.OutcomeOK)
	return nil
}

// post sends one attempt. Network failures and 5xx responses come back
// wrapped with retry.RetryableError.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.RetryableError(fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("reading response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}
	return data, nil
}

func isMutation(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "mutation")
}
