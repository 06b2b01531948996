package auth

import (
	"context"
	"time"
)

// Counter is the failed-attempt store. Incr must be atomic at the store
// level and must start the TTL window only on first creation.
type Counter interface {
	Incr(ctx context.Context, clientID string, window time.Duration) (int64, error)
	Get(ctx context.Context, clientID string) (int64, error)
	Del(ctx context.Context, clientID string) error
}

// RateLimitService throttles brute-force authentication attempts per client
// identifier. The lockout window is anchored to the first failure; retries
// inside the window do not extend it.
type RateLimitService struct {
	counter     Counter
	maxAttempts int64
	window      time.Duration
}

func NewRateLimitService(counter Counter, maxAttempts int, window time.Duration) *RateLimitService {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &RateLimitService{
		counter:     counter,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (s *RateLimitService) IsAuthRateLimited(ctx context.Context, clientID string) (bool, error) {
	attempts, err := s.counter.Get(ctx, clientID)
	if err != nil {
		return false, err
	}
	return attempts >= s.maxAttempts, nil
}

func (s *RateLimitService) RecordFailedAuthAttempt(ctx context.Context, clientID string) error {
	_, err := s.counter.Incr(ctx, clientID, s.window)
	return err
}

func (s *RateLimitService) ClearFailedAuthAttempts(ctx context.Context, clientID string) error {
	return s.counter.Del(ctx, clientID)
}

// Window is the configured lockout duration, used for Retry-After hints.
func (s *RateLimitService) Window() time.Duration {
	return s.window
}
