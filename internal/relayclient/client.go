package relayclient

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for a new Client.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultRetries      = 2
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Client talks to a running presence relay over its REST API.
type Client struct {
	base    string
	http    *http.Client
	logger  *slog.Logger
	retries int
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a client for the relay at baseURL, for example
// "http://localhost:3000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
		retries: DefaultRetries,
		backoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRetries sets how many times a 5xx or 429 response is retried and
// the first backoff, which doubles per retry.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the HTTP client, for example to share a
// transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}
