package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"socialqueue/internal/apperr"
)

// Repository owns durable User records. Storage faults never leak raw: every
// unexpected driver error is wrapped as an internal error at this boundary.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	var u User
	var validFrom sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, hashed_password, tokens_valid_from_utc, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.HashedPassword, &validFrom, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, dbErr("query user by id", err)
	}
	if validFrom.Valid {
		value := validFrom.Time.UTC()
		u.TokensValidFrom = &value
	}

	return &u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var validFrom sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, hashed_password, tokens_valid_from_utc, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&u.ID, &u.Email, &u.HashedPassword, &validFrom, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, dbErr("query user by email", err)
	}
	if validFrom.Valid {
		value := validFrom.Time.UTC()
		u.TokensValidFrom = &value
	}

	return &u, nil
}

func (r *Repository) Create(ctx context.Context, email, hashedPassword string) (*User, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, dbErr("generate uuid v7", err)
	}

	now := time.Now().UTC()
	u := User{
		ID:             id.String(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, u.ID, u.Email, u.HashedPassword, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("a user with this email already exists")
		}
		return nil, dbErr("insert user", err)
	}

	return &u, nil
}

func (r *Repository) UpdateHashedPassword(ctx context.Context, id, hashedPassword string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET hashed_password = $2, updated_at = $3
		WHERE id = $1
	`, id, hashedPassword, time.Now().UTC())
	if err != nil {
		return dbErr("update hashed password", err)
	}
	return noRowsAsNotFound(res)
}

// SetTokensValidFrom stamps the global token cutoff: every token issued
// before this instant stops verifying.
func (r *Repository) SetTokensValidFrom(ctx context.Context, id string, validFrom time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET tokens_valid_from_utc = $2, updated_at = $2
		WHERE id = $1
	`, id, validFrom.UTC())
	if err != nil {
		return dbErr("set tokens valid from", err)
	}
	return noRowsAsNotFound(res)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return dbErr("delete user", err)
	}
	return noRowsAsNotFound(res)
}

// TokensValidFrom resolves the per-user token cutoff for verification.
// A missing user resolves to no cutoff; the verifier does not decide
// whether the subject still exists.
func (r *Repository) TokensValidFrom(ctx context.Context, id string) (*time.Time, error) {
	var validFrom sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT tokens_valid_from_utc FROM users WHERE id = $1
	`, id).Scan(&validFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr("query tokens valid from", err)
	}
	if !validFrom.Valid {
		return nil, nil
	}

	value := validFrom.Time.UTC()
	return &value, nil
}

func noRowsAsNotFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return dbErr("rows affected", err)
	}
	if affected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func dbErr(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
