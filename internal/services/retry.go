package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
)

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, strings.TrimSpace(e.Body))
}

// Transient reports whether the status is worth retrying: 408, 429 or any 5xx.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// RetryPolicy retries transient upstream failures with capped exponential backoff and full jitter.
//
// Only errors reporting Transient() == true and network timeouts are retried.
// Context cancellation and decode failures return immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// NewRetryPolicy builds a policy, substituting defaults for non-positive values.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// NoRetry runs every operation exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// WithSleeper returns a copy of p that waits through fn instead of a timer. Tests use it to skip delays.
func (p RetryPolicy) WithSleeper(fn func(context.Context, time.Duration) error) RetryPolicy {
	p.sleep = fn
	return p
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		delay, retry := p.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if serr := p.wait(ctx, delay); serr != nil {
			return serr
		}
	}

	if attempts > 1 && IsTransient(err) {
		return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
	}
	return err
}

func (p RetryPolicy) retryDelay(ctx context.Context, err error, attempt, attempts int) (time.Duration, bool) {
	if attempt >= attempts || ctx.Err() != nil {
		return 0, false
	}
	if !IsTransient(err) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return min(statusErr.RetryAfter, p.maxDelay()), true
	}
	return p.backoff(attempt), true
}

// backoff returns a random delay in [0, min(max, base*2^(attempt-1))].
func (p RetryPolicy) backoff(attempt int) time.Duration {
	ceiling := p.BaseDelay
	for i := 1; i < attempt && ceiling < p.maxDelay(); i++ {
		ceiling *= 2
	}
	ceiling = min(ceiling, p.maxDelay())
	if ceiling <= 0 {
		return 0
	}
	if p.jitter != nil {
		return p.jitter(ceiling)
	}
	return rand.N(ceiling + 1)
}

func (p RetryPolicy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultRetryMaxDelay
}

func (p RetryPolicy) wait(ctx context.Context, delay time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, delay)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient classifies err as retryable.
//
// HTTP client timeouts count as transient; an expired caller context is caught by [RetryPolicy.Do] before retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var classified interface{ Transient() bool }
	if errors.As(err, &classified) {
		return classified.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
