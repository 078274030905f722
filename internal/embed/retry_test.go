package embed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type scripted struct {
	errs  []error
	calls int
}

func (s *scripted) Embed(ctx context.Context, text string) ([]float32, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return []float32{1, 2, 3}, nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noWait(int) time.Duration { return 0 }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{&RetryableError{StatusCode: 429}, true},
		{fmt.Errorf("wrapped: %w", &RetryableError{StatusCode: 503}), true},
		{status.Error(codes.ResourceExhausted, "quota"), true},
		{status.Error(codes.Unavailable, "down"), true},
		{status.Error(codes.InvalidArgument, "bad"), false},
		{&googleapi.Error{Code: 500}, true},
		{&googleapi.Error{Code: 400}, false},
		{ErrDisabled, false},
		{context.Canceled, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}

func TestBackoffBounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d < time.Second || d > 45*time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestRetryingRecovers(t *testing.T) {
	next := &scripted{errs: []error{&RetryableError{StatusCode: 429}, &RetryableError{StatusCode: 503}}}
	stats := NewLatencyStats(time.Hour)
	r := WithRetry(next, stats, quiet())
	r.backoff = noWait

	vec, err := r.Embed(context.Background(), "xin chào")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || next.calls != 3 {
		t.Errorf("expected success on third call, got %d calls", next.calls)
	}
	if stats.Snapshot().Count != 3 {
		t.Errorf("expected 3 latency samples, got %d", stats.Snapshot().Count)
	}
}

func TestRetryingGivesUp(t *testing.T) {
	errs := make([]error, MaxRetries+2)
	for i := range errs {
		errs[i] = &RetryableError{StatusCode: 503}
	}
	next := &scripted{errs: errs}
	r := WithRetry(next, nil, quiet())
	r.backoff = noWait

	if _, err := r.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if next.calls != MaxRetries+1 {
		t.Errorf("expected %d calls, got %d", MaxRetries+1, next.calls)
	}
}

func TestRetryingSkipsPermanentErrors(t *testing.T) {
	next := &scripted{errs: []error{errors.New("invalid input")}}
	r := WithRetry(next, nil, quiet())
	r.backoff = noWait
	if _, err := r.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if next.calls != 1 {
		t.Errorf("expected 1 call, got %d", next.calls)
	}
}

func TestRetryingHonoursCancel(t *testing.T) {
	next := &scripted{errs: []error{&RetryableError{StatusCode: 429}, &RetryableError{StatusCode: 429}}}
	r := WithRetry(next, nil, quiet())
	r.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Embed(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	if _, err := (Disabled{}).Embed(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}
