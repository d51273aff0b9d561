package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"time"
)

// RetryConfig configures retry behavior for transport operations.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first (default: 1)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the initial backoff duration (default: 1s)
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration (default: 30s)
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffFactor is the exponential backoff multiplier (default: 2.0)
	BackoffFactor float64 `yaml:"backoff_factor"`

	// RetryableErrors is the list of HTTP status codes that should be retried
	// Default: [408, 429, 500, 502, 503, 504]
	RetryableErrors []int `yaml:"retryable_status_codes"`
}

// DefaultRetryConfig returns the default retry configuration.
// A single attempt is made; raise MaxAttempts to enable retries.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     1,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      30 * time.Second,
		BackoffFactor:   2.0,
		RetryableErrors: []int{408, 429, 500, 502, 503, 504},
	}
}

// Validate checks if the retry configuration is valid.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 {
		return fmt.Errorf("initial_backoff must be non-negative, got %v", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%v) must be >= initial_backoff (%v)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff_factor must be >= 1.0, got %f", c.BackoffFactor)
	}
	return nil
}

// IsRetryable returns true if the given status code should be retried.
func (c *RetryConfig) IsRetryable(statusCode int) bool {
	return slices.Contains(c.RetryableErrors, statusCode)
}

// ExecuteFunc is a function that executes a single request attempt.
type ExecuteFunc func(ctx context.Context) (*Response, error)

// Execute runs the given function with retry logic.
//
// Retry behavior:
// - Retries on retryable status codes and on connection errors and timeouts
// - Respects Retry-After when present, capped at MaxBackoff
// - Stops immediately on context cancellation
func Execute(ctx context.Context, config *RetryConfig, fn ExecuteFunc) (*Response, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			if resp.Metadata == nil {
				resp.Metadata = make(map[string]interface{})
			}
			resp.Metadata[MetadataRetryCount] = attempt - 1
			return resp, nil
		}
		lastErr = err

		shouldRetry, retryAfter := shouldRetryError(err, config)
		if attempt >= config.MaxAttempts || !shouldRetry {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "request cancelled before retry",
				Cause:   ctx.Err(),
			}
		}

		timer := time.NewTimer(calculateBackoff(config, attempt, retryAfter))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &TransportError{
				Type:    ErrorTypeCancelled,
				Message: "request cancelled during retry backoff",
				Cause:   ctx.Err(),
			}
		}
	}

	return nil, lastErr
}

// shouldRetryError determines if an error should be retried and extracts Retry-After if present.
func shouldRetryError(err error, config *RetryConfig) (bool, time.Duration) {
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || !transportErr.Retryable {
		return false, 0
	}

	if transportErr.StatusCode > 0 {
		if !config.IsRetryable(transportErr.StatusCode) {
			return false, 0
		}
		if transportErr.StatusCode == http.StatusTooManyRequests || transportErr.StatusCode == http.StatusServiceUnavailable {
			return true, extractRetryAfter(transportErr)
		}
	}

	return true, 0
}

// calculateBackoff returns min(InitialBackoff * BackoffFactor^(attempt-1), MaxBackoff)
// raised to Retry-After when that is larger, plus 0-100ms jitter.
func calculateBackoff(config *RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	base := float64(config.InitialBackoff) * math.Pow(config.BackoffFactor, float64(attempt-1))
	delay := time.Duration(math.Min(base, float64(config.MaxBackoff)))

	if retryAfter > delay {
		delay = min(retryAfter, config.MaxBackoff)
	}

	return delay + time.Duration(rand.IntN(101))*time.Millisecond
}

// extractRetryAfter parses the Retry-After value (seconds or HTTP-date) captured
// in the error metadata. Returns 0 if absent or malformed.
func extractRetryAfter(te *TransportError) time.Duration {
	raw, ok := te.Metadata[MetadataRetryAfter].(string)
	if !ok {
		return 0
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}

	retryTime, err := http.ParseTime(raw)
	if err != nil {
		return 0
	}

	return max(time.Until(retryTime), 0)
}
