package accounting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"
)

// BackoffStrategy mirrors the teacher engine's retry-policy enum; accounting
// only ever uses exponential, but the type is kept for fidelity with the
// rest of the call-site API.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy is the accounting client's adaptation of the workflow
// engine's RetryPolicy: exponential backoff plus a dedicated branch for
// HTTP 429's Retry-After header (spec §4.3 steps 6-7).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	OnRetry      func(attempt int, err error)
}

// DefaultRetryPolicy matches the accounting client's documented retry
// behavior: base delay doubling per attempt, capped.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// GetDelay returns the exponential backoff delay for the given attempt
// (1-based), capped at MaxDelay.
func (rp *RetryPolicy) GetDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	multiplier := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(rp.InitialDelay) * multiplier)
	if delay > rp.MaxDelay {
		delay = rp.MaxDelay
	}
	return delay
}

// apiError is the minimal shape Execute needs to detect HTTP 429 and read
// Retry-After; the real client constructs this from the HTTP response.
type apiError struct {
	StatusCode int
	RetryAfter time.Duration
	Transient  bool
	Err        error
}

func (e *apiError) Error() string { return e.Err.Error() }
func (e *apiError) Unwrap() error { return e.Err }

// Execute runs fn with retry, using Retry-After when the failure carries
// one (HTTP 429), and exponential backoff otherwise for transient errors.
// Non-transient errors (permanent 4xx) are not retried.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= rp.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("accounting call cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *apiError
		if !errors.As(err, &apiErr) || !apiErr.Transient {
			return fmt.Errorf("non-retryable accounting error: %w", err)
		}

		if attempt >= rp.MaxAttempts {
			break
		}

		if rp.OnRetry != nil {
			rp.OnRetry(attempt, err)
		}

		delay := apiErr.RetryAfter
		if delay <= 0 {
			delay = rp.GetDelay(attempt)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("accounting call cancelled during backoff: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("accounting call exhausted retries: %w", lastErr)
}

// classifyHTTPError turns an HTTP status code and optional Retry-After
// header value into the apiError Execute understands.
func classifyHTTPError(statusCode int, retryAfterHeader string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &apiError{
			StatusCode: statusCode,
			RetryAfter: parseRetryAfter(retryAfterHeader),
			Transient:  true,
			Err:        fmt.Errorf("accounting API rate limited (429)"),
		}
	case statusCode == http.StatusRequestTimeout, statusCode >= 500:
		return &apiError{StatusCode: statusCode, Transient: true, Err: fmt.Errorf("accounting API transient error (%d)", statusCode)}
	default:
		return &apiError{StatusCode: statusCode, Transient: false, Err: fmt.Errorf("accounting API error (%d)", statusCode)}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}
