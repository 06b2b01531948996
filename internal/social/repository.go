package social

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

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, a Account) (*Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, dbErr("generate uuid v7", err)
	}

	a.ID = id.String()
	a.CreatedAt = time.Now().UTC()

	var expiresAt any
	if a.TokenExpiresAt != nil {
		expiresAt = a.TokenExpiresAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO socials (id, user_id, platform, platform_user_id, access_token, refresh_token, token_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.UserID, a.Platform, a.PlatformUserID, a.AccessToken, a.RefreshToken, expiresAt, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(fmt.Sprintf("a %s account is already linked", a.Platform))
		}
		return nil, dbErr("insert social account", err)
	}

	return &a, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Account, error) {
	var a Account
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, platform, platform_user_id, access_token, refresh_token, token_expires_at, created_at
		FROM socials
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Platform, &a.PlatformUserID, &a.AccessToken, &a.RefreshToken, &expiresAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("social account")
		}
		return nil, dbErr("query social account", err)
	}
	if expiresAt.Valid {
		value := expiresAt.Time.UTC()
		a.TokenExpiresAt = &value
	}

	return &a, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, platform, platform_user_id, access_token, refresh_token, token_expires_at, created_at
		FROM socials
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, dbErr("query social accounts", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var a Account
		var expiresAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.Platform, &a.PlatformUserID, &a.AccessToken, &a.RefreshToken, &expiresAt, &a.CreatedAt); err != nil {
			return nil, dbErr("scan social account", err)
		}
		if expiresAt.Valid {
			value := expiresAt.Time.UTC()
			a.TokenExpiresAt = &value
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate social accounts", err)
	}

	return accounts, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM socials WHERE id = $1`, id)
	if err != nil {
		return dbErr("delete social account", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return dbErr("rows affected", err)
	}
	if affected == 0 {
		return apperr.NotFound("social account")
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
