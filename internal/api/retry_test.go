package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// roundTripFunc lets tests inject transport behaviour.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func fastPolicy(retries int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = retries
	p.BaseBackoff = time.Millisecond
	p.MaxBackoff = 5 * time.Millisecond
	return p
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	uncapped := RetryPolicy{BaseBackoff: time.Second}
	if got := uncapped.Backoff(4); got != 8*time.Second {
		t.Errorf("uncapped Backoff(4) = %v, want 8s", got)
	}
}

func TestRetryPolicy_Retryable(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"502", &StatusError{StatusCode: 502}, true},
		{"503", &StatusError{StatusCode: 503}, true},
		{"504", &StatusError{StatusCode: 504}, true},
		{"wrapped 503", fmt.Errorf("do: %w", &StatusError{StatusCode: 503}), true},
		{"500", &StatusError{StatusCode: 500}, false},
		{"404", &StatusError{StatusCode: 404}, false},
		{"429", &StatusError{StatusCode: 429}, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"attempt deadline", fmt.Errorf("do request: %w", context.DeadlineExceeded), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestJitter(t *testing.T) {
	if got := jitter(0); got != 0 {
		t.Errorf("jitter(0) = %v, want 0", got)
	}
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := jitter(d)
		if got < d/2 || got >= d*3/2 {
			t.Fatalf("jitter(%v) = %v, out of [%v, %v)", d, got, d/2, d*3/2)
		}
	}
}

func TestDoWithRetry(t *testing.T) {
	t.Run("retries transient statuses then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		statuses := []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := int(calls.Add(1))
			if n <= len(statuses) {
				w.WriteHeader(statuses[n-1])
				return
			}
			w.Write([]byte("ok"))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetryPolicy(fastPolicy(3)))
		body, attempts, err := c.doWithRetry(context.Background(), kindHistory, http.MethodGet, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "ok" {
			t.Errorf("body = %q, want ok", body)
		}
		if attempts != 4 {
			t.Errorf("attempts = %d, want 4", attempts)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetryPolicy(fastPolicy(2)))
		_, attempts, err := c.doWithRetry(context.Background(), kindHistory, http.MethodGet, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("error = %v, want wrapped 503 StatusError", err)
		}
		if attempts != 3 || calls.Load() != 3 {
			t.Errorf("attempts = %d, calls = %d, want 3", attempts, calls.Load())
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetryPolicy(fastPolicy(3)))
		_, _, err := c.doWithRetry(context.Background(), kindHistory, http.MethodGet, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("retries transport errors", func(t *testing.T) {
		var calls atomic.Int32
		hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, syscall.ECONNRESET
		})}

		c := NewClient("http://mse.invalid", WithHTTPClient(hc), WithRetryPolicy(fastPolicy(2)))
		_, attempts, err := c.doWithRetry(context.Background(), kindHistory, http.MethodGet, nil)
		if !errors.Is(err, syscall.ECONNRESET) {
			t.Errorf("error = %v, want ECONNRESET", err)
		}
		if attempts != 3 || calls.Load() != 3 {
			t.Errorf("attempts = %d, calls = %d, want 3", attempts, calls.Load())
		}
	})

	t.Run("per-request timeout is retried and bounded", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer server.Close()

		c := NewClient(server.URL,
			WithTimeout(20*time.Millisecond),
			WithRetryPolicy(fastPolicy(1)),
		)
		start := time.Now()
		_, attempts, err := c.doWithRetry(context.Background(), kindHistory, http.MethodGet, nil)
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
		if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
			t.Errorf("elapsed = %v, per-request deadline not applied", elapsed)
		}
	})

	t.Run("stops when caller cancels", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		p := fastPolicy(10)
		p.BaseBackoff = time.Second
		p.MaxBackoff = time.Second
		c := NewClient(server.URL, WithRetryPolicy(p))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(30 * time.Millisecond)
			cancel()
		}()

		_, _, err := c.doWithRetry(ctx, kindHistory, http.MethodGet, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: 503, Message: "Service Unavailable"}
	if got := err.Error(); got != "mse http error 503: Service Unavailable" {
		t.Errorf("Error() = %q", got)
	}
}
