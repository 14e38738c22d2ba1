package mistral

import (
	"net/http"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	config := RetryConfig{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}

	if got := CalculateBackoff(0, config); got != 500*time.Millisecond {
		t.Errorf("attempt 0 backoff = %v, want 500ms", got)
	}
	if got := CalculateBackoff(1, config); got != 1*time.Second {
		t.Errorf("attempt 1 backoff = %v, want 1s", got)
	}
	if got := CalculateBackoff(2, config); got != 2*time.Second {
		t.Errorf("attempt 2 backoff = %v, want 2s", got)
	}

	// Backoff is capped
	if got := CalculateBackoff(20, config); got != 30*time.Second {
		t.Errorf("large attempt backoff = %v, want cap of 30s", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}

	if got := ParseRetryAfter(resp); got != 0 {
		t.Errorf("missing header should yield 0, got %v", got)
	}

	resp.Header.Set("Retry-After", "3")
	if got := ParseRetryAfter(resp); got != 3*time.Second {
		t.Errorf("Retry-After: 3 = %v, want 3s", got)
	}

	resp.Header.Set("Retry-After", "not-a-number")
	if got := ParseRetryAfter(resp); got != 0 {
		t.Errorf("unparseable header should yield 0, got %v", got)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsRetryableStatusCode(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsRetryableStatusCode(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestIsStreamErrorRetryable(t *testing.T) {
	retryable := []string{
		"dial tcp: connection refused",
		"read: connection reset by peer",
		"unexpected EOF",
		"streaming failed with status 503: overloaded",
	}
	for _, msg := range retryable {
		if !isStreamErrorRetryable(errFromString(msg)) {
			t.Errorf("%q should be retryable", msg)
		}
	}

	if isStreamErrorRetryable(errFromString("streaming failed with status 401: bad key")) {
		t.Error("auth failures must not be retried")
	}
	if isStreamErrorRetryable(nil) {
		t.Error("nil error is not retryable")
	}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errFromString(s string) error { return stringError(s) }
