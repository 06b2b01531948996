// Package kv wraps the redis stores the session-security engine depends on:
// the token revocation blacklist and the failed-auth attempt counters. All
// mutations are atomic per key at the store level.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedTokenPrefix = "revoked_token:"
	failedAuthPrefix   = "failed_auth:"

	dialTimeout = 5 * time.Second
)

type Store struct {
	client *redis.Client
}

func Open(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Blacklist() *Blacklist { return &Blacklist{client: s.client} }

func (s *Store) AttemptCounter() *AttemptCounter { return &AttemptCounter{client: s.client} }

// Blacklist records revoked token ids. Records carry a TTL equal to the
// token's remaining lifetime, so the store never outgrows the set of tokens
// that are still otherwise verifiable.
type Blacklist struct {
	client *redis.Client
}

// Add writes the revocation record unless one already exists. The SETNX
// semantics make the first revoker win; concurrent revokers observe false.
func (b *Blacklist) Add(ctx context.Context, tokenID, reason string, ttl time.Duration) (bool, error) {
	added, err := b.client.SetNX(ctx, revokedTokenPrefix+tokenID, reason, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist setnx: %w", err)
	}
	return added, nil
}

func (b *Blacklist) Exists(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist exists: %w", err)
	}
	return n > 0, nil
}

// AttemptCounter tracks consecutive failed authentication attempts per
// client identifier inside a lockout window anchored to the first failure.
type AttemptCounter struct {
	client *redis.Client
}

// Incr atomically increments the counter and, only when the key has no TTL
// yet, starts the lockout window. Subsequent failures do not extend it.
func (c *AttemptCounter) Incr(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	key := failedAuthPrefix + clientID

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("attempt counter incr: %w", err)
	}
	if err := c.client.ExpireNX(ctx, key, window).Err(); err != nil {
		return n, fmt.Errorf("attempt counter expire: %w", err)
	}

	return n, nil
}

func (c *AttemptCounter) Get(ctx context.Context, clientID string) (int64, error) {
	n, err := c.client.Get(ctx, failedAuthPrefix+clientID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("attempt counter get: %w", err)
	}
	return n, nil
}

func (c *AttemptCounter) Del(ctx context.Context, clientID string) error {
	if err := c.client.Del(ctx, failedAuthPrefix+clientID).Err(); err != nil {
		return fmt.Errorf("attempt counter del: %w", err)
	}
	return nil
}
