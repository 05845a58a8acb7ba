package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client fetches listing and history pages from the exchange.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	// timeout bounds a single attempt; the retry loop may take longer.
	timeout time.Duration
	retry   RetryPolicy
	limiter *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new exchange client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		userAgent:  "mse-data/1.0",
		httpClient: &http.Client{},
		logger:     slog.Default(),
		timeout:    10 * time.Second,
		retry:      DefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRetries sets the retry count and base backoff, keeping the retryable statuses.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.MaxRetries = max
		c.retry.BaseBackoff = backoff
	}
}

// WithMaxBackoff caps a single retry delay.
func WithMaxBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.MaxBackoff = d
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables the limit.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
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
