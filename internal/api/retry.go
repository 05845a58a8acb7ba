package api

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RetryPolicy decides which failures are retried and how long to wait between attempts.
type RetryPolicy struct {
	MaxRetries      int           // Retries after the first attempt
	BaseBackoff     time.Duration // Delay before the first retry, doubled per attempt
	MaxBackoff      time.Duration // Cap on a single delay; 0 = uncapped
	RetryableStatus map[int]bool  // HTTP statuses worth retrying
}

// DefaultRetryPolicy retries gateway and overload statuses three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		RetryableStatus: map[int]bool{
			http.StatusBadGateway:         true,
			http.StatusServiceUnavailable: true,
			http.StatusGatewayTimeout:     true,
		},
	}
}

// Backoff returns the delay before retry number attempt (1-based), without jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Retryable reports whether err is a transient failure.
// Transport errors and per-attempt timeouts are transient; of the HTTP
// errors only the statuses in RetryableStatus are.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return p.RetryableStatus[statusErr.StatusCode]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// jitter spreads d over [0.5d, 1.5d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
