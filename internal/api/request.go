package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rickgao/mse-data/internal/metrics"
)

// StatusError represents a non-2xx response from the exchange.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mse http error %d: %s", e.StatusCode, e.Message)
}

// request kinds, used as metric labels.
const (
	kindListing = "listing"
	kindHistory = "history"
)

// doRequest performs one attempt under the per-request deadline.
// A non-nil form is sent as an urlencoded POST body.
func (c *Client) doRequest(ctx context.Context, method string, form url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       data,
		}
	}

	return data, nil
}

// doWithRetry performs a request with exponential backoff retry.
// It returns the number of attempts made alongside the result.
func (c *Client) doWithRetry(ctx context.Context, kind, method string, form url.Values) ([]byte, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := jitter(c.retry.Backoff(attempt))
			c.logger.Warn("retrying request",
				"kind", kind,
				"attempt", attempt,
				"backoff", wait,
				"error", lastErr,
			)
			metrics.FetchRetriesTotal.WithLabelValues(kind).Inc()

			select {
			case <-ctx.Done():
				return nil, attempts, ctx.Err()
			case <-time.After(wait):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, attempts, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attempts++
		start := time.Now()
		data, err := c.doRequest(ctx, method, form)
		metrics.FetchDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.FetchRequestsTotal.WithLabelValues(kind, "ok").Inc()
			return data, attempts, nil
		}

		lastErr = err

		// The caller gave up; the attempt deadline is not the cause.
		if ctx.Err() != nil {
			metrics.FetchRequestsTotal.WithLabelValues(kind, "canceled").Inc()
			return nil, attempts, ctx.Err()
		}

		if !c.retry.Retryable(err) {
			metrics.FetchRequestsTotal.WithLabelValues(kind, "error").Inc()
			return nil, attempts, err
		}
		metrics.FetchRequestsTotal.WithLabelValues(kind, "transient").Inc()
	}

	return nil, attempts, fmt.Errorf("max retries exceeded: %w", lastErr)
}
