package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const MaxRetries = 3

// RetryableError marks a transient provider failure.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is worth retrying: an explicit
// RetryableError, a gRPC ResourceExhausted/Unavailable/DeadlineExceeded
// status, or an HTTP 429/5xx from the REST transport.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var retryErr *RetryableError
	if errors.As(err, &retryErr) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	switch status.Code(err) {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// Retrying wraps an Embedder with retries on transient errors and records
// call latency.
type Retrying struct {
	next       Embedder
	stats      *LatencyStats
	log        *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// WithRetry wraps next. stats may be nil.
func WithRetry(next Embedder, stats *LatencyStats, log *slog.Logger) *Retrying {
	return &Retrying{
		next:       next,
		stats:      stats,
		log:        log,
		maxRetries: MaxRetries,
		backoff:    Backoff,
	}
}

func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		vec, err := r.next.Embed(ctx, text)
		if r.stats != nil && !errors.Is(err, ErrDisabled) {
			r.stats.Record(time.Since(start).Milliseconds())
		}
		if err == nil {
			return vec, nil
		}
		if attempt >= r.maxRetries || !IsRetryable(err) {
			return nil, err
		}

		wait := r.backoff(attempt)
		r.log.Warn("embedding failed, retrying", "attempt", attempt+1, "backoff", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
