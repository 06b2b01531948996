// Package security implements the session-security engine: password-hash
// lifecycle and signed-token issuance, verification and revocation.
package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"socialqueue/internal/apperr"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the typed claim set embedded in every token the service issues.
type Claims struct {
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Blacklist is the revocation store. Add is first-writer-wins: it returns
// false when the key was already present, which is what arbitrates two
// concurrent rotations of the same refresh token.
type Blacklist interface {
	Add(ctx context.Context, tokenID, reason string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, tokenID string) (bool, error)
}

// CutoffSource resolves a subject's tokens-valid-from instant. Tokens issued
// before that instant are revoked in bulk without enumerating token ids.
// A missing subject yields (nil, nil); subject existence is the caller's
// concern, not the verifier's.
type CutoffSource interface {
	TokensValidFrom(ctx context.Context, userID string) (*time.Time, error)
}

type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager creates, verifies and revokes signed session tokens. The
// token plus the blacklist is the whole session; there is no separate
// session record.
type TokenManager struct {
	cfg       TokenConfig
	blacklist Blacklist
	cutoffs   CutoffSource
	now       func() time.Time
}

func NewTokenManager(cfg TokenConfig, blacklist Blacklist, cutoffs CutoffSource) *TokenManager {
	return &TokenManager{
		cfg:       cfg,
		blacklist: blacklist,
		cutoffs:   cutoffs,
		now:       time.Now,
	}
}

// WithClock overrides the manager's clock. Test hook.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) ttlFor(tokenType TokenType) time.Duration {
	if tokenType == TokenTypeRefresh {
		return m.cfg.RefreshTTL
	}
	return m.cfg.AccessTTL
}

func (m *TokenManager) Create(subject string, tokenType TokenType) (string, error) {
	now := m.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings{m.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttlFor(tokenType))),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Verify runs the full check sequence: signature, expiry, type, blacklist,
// per-subject cutoff. The cheap local checks run before any store round-trip.
func (m *TokenManager) Verify(ctx context.Context, tokenString string, expected TokenType) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.InvalidToken("token cannot be empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return m.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience),
		jwt.WithLeeway(m.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed):
			return nil, apperr.InvalidToken("")
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperr.TokenExpired()
		default:
			return nil, apperr.InvalidToken("")
		}
	}
	if !token.Valid {
		return nil, apperr.InvalidToken("")
	}

	if claims.TokenType != expected {
		return nil, apperr.InvalidToken(fmt.Sprintf("expected %s token, got %s", expected, claims.TokenType))
	}
	if claims.ID == "" {
		return nil, apperr.InvalidToken("token is missing the jti claim")
	}
	if claims.Subject == "" {
		return nil, apperr.InvalidToken("token is missing the sub claim")
	}

	revoked, err := m.blacklist.Exists(ctx, claims.ID)
	if err != nil {
		// Fail secure: if the revocation store cannot answer, the token is
		// not accepted.
		return nil, apperr.Internal(fmt.Errorf("revocation check: %w", err))
	}
	if revoked {
		return nil, apperr.TokenRevoked()
	}

	cutoff, err := m.cutoffs.TokensValidFrom(ctx, claims.Subject)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("token cutoff check: %w", err))
	}
	if cutoff != nil && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(*cutoff) {
		return nil, apperr.TokenRevoked()
	}

	return claims, nil
}

// Revoke blacklists a well-formed token for the remainder of its natural
// lifetime. An already-expired or already-revoked token is a no-op success;
// an unconfirmed store write is an error and callers must treat the token
// as possibly still live.
func (m *TokenManager) Revoke(ctx context.Context, tokenString, reason string) error {
	_, err := m.revoke(ctx, tokenString, reason)
	return err
}

// RevokeOnce is Revoke with one-time-use semantics: if the token was already
// blacklisted it fails with a token-revoked error. The refresh flow relies
// on this so that two rotations of the same token have exactly one winner.
func (m *TokenManager) RevokeOnce(ctx context.Context, tokenString, reason string) error {
	added, err := m.revoke(ctx, tokenString, reason)
	if err != nil {
		return err
	}
	if !added {
		return apperr.TokenRevoked()
	}
	return nil
}

func (m *TokenManager) revoke(ctx context.Context, tokenString, reason string) (bool, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return false, apperr.InvalidToken("")
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return false, apperr.InvalidToken("token is missing jti or exp")
	}

	// Verification accepts tokens up to exp plus leeway, so the revocation
	// record must outlive that same horizon or a revoked token would verify
	// again at the tail of its life.
	remaining := claims.ExpiresAt.Time.Add(m.cfg.Leeway).Sub(m.now().UTC())
	if remaining <= 0 {
		return true, nil
	}

	added, err := m.blacklist.Add(ctx, claims.ID, reason, remaining)
	if err != nil {
		return false, apperr.Internal(fmt.Errorf("revoke token: %w", err))
	}

	return added, nil
}
