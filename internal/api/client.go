package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Client provides access to the guardian registration API.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	mu         sync.RWMutex
	guardianID string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new API client. The token may be empty before registration.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithGuardianID sets the guardian id used by pairing calls.
func WithGuardianID(id string) ClientOption {
	return func(c *Client) {
		c.guardianID = id
	}
}

// SetGuardianID sets the guardian id used by pairing calls.
func (c *Client) SetGuardianID(id string) {
	c.mu.Lock()
	c.guardianID = id
	c.mu.Unlock()
}

// GuardianID returns the guardian id, empty before registration.
func (c *Client) GuardianID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guardianID
}
