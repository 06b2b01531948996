package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"socialqueue/internal/security"
	"socialqueue/internal/user"
)

func newTestMiddleware(t *testing.T, f *authFixture) *Middleware {
	t.Helper()
	return NewMiddleware(f.tokens, f.users, NewRateLimitService(f.counter, 3, 5*time.Minute), f.svc.logger)
}

func authedRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestRequireAuthPassesUserAndToken(t *testing.T) {
	f := newAuthFixture(t, 3)
	f.addUser(t, "user-1", "ada@example.com", "Sup3rSecret!")
	mw := newTestMiddleware(t, f)

	access, err := f.tokens.Create("user-1", security.TokenTypeAccess)
	require.NoError(t, err)

	var gotUser *user.User
	var gotToken string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = user.FromContext(r.Context())
		gotToken, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, authedRequest(access))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotUser)
	require.Equal(t, "user-1", gotUser.ID)
	require.Equal(t, access, gotToken)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	f := newAuthFixture(t, 3)
	mw := newTestMiddleware(t, f)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, authedRequest(""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r := authedRequest("")
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	mw.RequireAuth(next).ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsRefreshToken(t *testing.T) {
	f := newAuthFixture(t, 3)
	f.addUser(t, "user-1", "ada@example.com", "Sup3rSecret!")
	mw := newTestMiddleware(t, f)

	refresh, err := f.tokens.Create("user-1", security.TokenTypeRefresh)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, authedRequest(refresh))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthLocksOutInvalidTokenBursts(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, 3)
	f.addUser(t, "user-1", "ada@example.com", "Sup3rSecret!")
	mw := newTestMiddleware(t, f)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		mw.RequireAuth(next).ServeHTTP(rec, authedRequest("not-a-token"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	attempts, err := f.counter.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.EqualValues(t, 3, attempts)

	// Locked out now, even with a valid token.
	access, err := f.tokens.Create("user-1", security.TokenTypeAccess)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, authedRequest(access))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRequireAuthClearsCounterOnSuccess(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, 3)
	f.addUser(t, "user-1", "ada@example.com", "Sup3rSecret!")
	mw := newTestMiddleware(t, f)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, authedRequest("not-a-token"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	access, err := f.tokens.Create("user-1", security.TokenTypeAccess)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	mw.RequireAuth(next).ServeHTTP(rec, authedRequest(access))
	require.Equal(t, http.StatusOK, rec.Code)

	attempts, err := f.counter.Get(ctx, "192.0.2.1")
	require.NoError(t, err)
	require.EqualValues(t, 0, attempts)
}
