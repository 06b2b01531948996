package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"socialqueue/internal/apperr"
)

type memoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	err     error
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{
		entries: map[string]string{},
		ttls:    map[string]time.Duration{},
	}
}

func (b *memoryBlacklist) Add(ctx context.Context, tokenID, reason string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	if _, ok := b.entries[tokenID]; ok {
		return false, nil
	}
	b.entries[tokenID] = reason
	b.ttls[tokenID] = ttl
	return true, nil
}

func (b *memoryBlacklist) Exists(ctx context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	_, ok := b.entries[tokenID]
	return ok, nil
}

type memoryCutoffs struct {
	mu      sync.Mutex
	cutoffs map[string]*time.Time
	err     error
}

func newMemoryCutoffs() *memoryCutoffs {
	return &memoryCutoffs{cutoffs: map[string]*time.Time{}}
}

func (c *memoryCutoffs) set(userID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cutoffs[userID] = &at
}

func (c *memoryCutoffs) TokensValidFrom(ctx context.Context, userID string) (*time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.cutoffs[userID], nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "socialqueue",
		Audience:   "socialqueue:users",
		Leeway:     5 * time.Second,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func newTestManager(t *testing.T) (*TokenManager, *memoryBlacklist, *memoryCutoffs, *testClock) {
	t.Helper()
	blacklist := newMemoryBlacklist()
	cutoffs := newMemoryCutoffs()
	clock := newTestClock()
	manager := NewTokenManager(testTokenConfig(), blacklist, cutoffs).WithClock(clock.Now)
	return manager, blacklist, cutoffs, clock
}

func TestTokenRoundtrip(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	for _, tokenType := range []TokenType{TokenTypeAccess, TokenTypeRefresh} {
		signed, err := manager.Create("user-1", tokenType)
		require.NoError(t, err)

		claims, err := manager.Verify(ctx, signed, tokenType)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, tokenType, claims.TokenType)
		require.NotEmpty(t, claims.ID)
	}
}

func TestTokenUniqueIDs(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)
	second, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	a, err := manager.Verify(ctx, first, TokenTypeAccess)
	require.NoError(t, err)
	b, err := manager.Verify(ctx, second, TokenTypeAccess)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}

func TestTokenTypeMismatch(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	access, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	_, err = manager.Verify(ctx, access, TokenTypeRefresh)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))

	refresh, err := manager.Create("user-1", TokenTypeRefresh)
	require.NoError(t, err)

	_, err = manager.Verify(ctx, refresh, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))
}

func TestTokenExpiry(t *testing.T) {
	manager, _, _, clock := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeTokenExpired))
}

func TestTokenTamperedAndMalformed(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	_, err = manager.Verify(ctx, signed+"x", TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))

	_, err = manager.Verify(ctx, "not.a.token", TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))

	_, err = manager.Verify(ctx, "", TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))
}

func TestTokenWrongSecret(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	otherCfg := testTokenConfig()
	otherCfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	other := NewTokenManager(otherCfg, newMemoryBlacklist(), newMemoryCutoffs())

	signed, err := other.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))
}

func TestTokenRevoke(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, signed, "logout"))

	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))

	// Revoking again is a no-op success.
	require.NoError(t, manager.Revoke(ctx, signed, "logout"))
}

func TestTokenRevokeOnce(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeRefresh)
	require.NoError(t, err)

	require.NoError(t, manager.RevokeOnce(ctx, signed, "rotated"))

	err = manager.RevokeOnce(ctx, signed, "rotated")
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))
}

func TestTokenRevokeExpiredIsNoop(t *testing.T) {
	manager, blacklist, _, clock := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	require.NoError(t, manager.Revoke(ctx, signed, "logout"))
	require.Empty(t, blacklist.entries)
}

func TestTokenRevokeInsideLeewayWindow(t *testing.T) {
	manager, blacklist, _, clock := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeRefresh)
	require.NoError(t, err)

	// Just past natural expiry but still inside the acceptance leeway, so
	// the token verifies and revoking it must still write a record.
	clock.Advance(7*24*time.Hour + 2*time.Second)
	_, err = manager.Verify(ctx, signed, TokenTypeRefresh)
	require.NoError(t, err)

	require.NoError(t, manager.RevokeOnce(ctx, signed, "rotated"))
	require.Len(t, blacklist.entries, 1)

	err = manager.RevokeOnce(ctx, signed, "rotated")
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))

	_, err = manager.Verify(ctx, signed, TokenTypeRefresh)
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))
}

func TestTokenRevokeRecordCoversLeeway(t *testing.T) {
	manager, blacklist, _, clock := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	claims, err := manager.Verify(ctx, signed, TokenTypeAccess)
	require.NoError(t, err)

	// The record must live until exp plus leeway, not just until exp.
	require.NoError(t, manager.Revoke(ctx, signed, "logout"))
	require.Equal(t, time.Second+5*time.Second, blacklist.ttls[claims.ID])

	clock.Advance(3 * time.Second)
	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))
}

func TestTokenRevokeMalformed(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	err := manager.Revoke(ctx, "garbage", "logout")
	require.True(t, apperr.Is(err, apperr.CodeInvalidToken))
}

func TestTokenCutoffInvalidation(t *testing.T) {
	manager, _, cutoffs, clock := newTestManager(t)
	ctx := context.Background()

	old, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	cutoffs.set("user-1", clock.Now())

	_, err = manager.Verify(ctx, old, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeTokenRevoked))

	// Tokens issued at or after the cutoff stay valid.
	clock.Advance(time.Second)
	fresh, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)
	_, err = manager.Verify(ctx, fresh, TokenTypeAccess)
	require.NoError(t, err)
}

func TestTokenStoreFailuresAreFatal(t *testing.T) {
	manager, blacklist, cutoffs, _ := newTestManager(t)
	ctx := context.Background()

	signed, err := manager.Create("user-1", TokenTypeAccess)
	require.NoError(t, err)

	blacklist.err = errors.New("store down")
	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInternal))

	err = manager.Revoke(ctx, signed, "logout")
	require.True(t, apperr.Is(err, apperr.CodeInternal))

	blacklist.err = nil
	cutoffs.err = errors.New("db down")
	_, err = manager.Verify(ctx, signed, TokenTypeAccess)
	require.True(t, apperr.Is(err, apperr.CodeInternal))
}
