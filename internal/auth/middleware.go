package auth

import (
	"context"
	"net/http"
	"strings"

	"socialqueue/internal/apperr"
	"socialqueue/internal/observability"
	"socialqueue/internal/security"
	"socialqueue/internal/user"
	"socialqueue/internal/web"
)

type tokenCtxKey struct{}

// TokenFromContext returns the raw bearer token the middleware accepted.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenCtxKey{}).(string)
	return token, ok
}

// Middleware guards authenticated routes. It runs the full token check
// sequence, loads the subject and attaches both to the request context.
// Bursts of invalid tokens count against the client's failure counter, and
// a locked-out client is rejected before any token parsing.
type Middleware struct {
	tokens  *security.TokenManager
	users   UserStore
	limiter *RateLimitService
	logger  *observability.Logger
}

func NewMiddleware(tokens *security.TokenManager, users UserStore, limiter *RateLimitService, logger *observability.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, limiter: limiter, logger: logger}
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientID := observability.ClientIP(r)

		limited, err := m.limiter.IsAuthRateLimited(ctx, clientID)
		if err != nil {
			web.WriteError(w, apperr.Internal(err))
			return
		}
		if limited {
			web.WriteError(w, apperr.RateLimited(m.limiter.Window()))
			return
		}

		tokenString, ok := bearerToken(r)
		if !ok {
			web.WriteError(w, apperr.InvalidToken("missing or malformed authorization header"))
			return
		}

		claims, err := m.tokens.Verify(ctx, tokenString, security.TokenTypeAccess)
		if err != nil {
			if code := apperr.CodeOf(err); code != apperr.CodeInternal {
				if recordErr := m.limiter.RecordFailedAuthAttempt(ctx, clientID); recordErr != nil {
					m.logger.Error("record_failed_auth_attempt_failed", map[string]any{"error": recordErr.Error()})
				}
			}
			web.WriteError(w, err)
			return
		}

		u, err := m.users.Get(ctx, claims.Subject)
		if err != nil {
			// Post-auth specificity: the caller proved identity, a vanished
			// account is a plain not-found.
			web.WriteError(w, err)
			return
		}

		if clearErr := m.limiter.ClearFailedAuthAttempts(ctx, clientID); clearErr != nil {
			m.logger.Error("clear_failed_auth_attempts_failed", map[string]any{"error": clearErr.Error()})
		}

		ctx = user.NewContext(ctx, u)
		ctx = context.WithValue(ctx, tokenCtxKey{}, tokenString)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
