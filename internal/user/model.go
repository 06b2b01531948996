package user

import (
	"context"
	"time"
)

type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	HashedPassword  string     `json:"-"`
	TokensValidFrom *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ctxKey struct{}

// NewContext attaches the authenticated user to a request context.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user attached by the auth middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok
}
