package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"socialqueue/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, userID, content string, scheduledAt *time.Time) (*Post, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, dbErr("generate uuid v7", err)
	}

	now := time.Now().UTC()
	p := Post{
		ID:          id.String(),
		UserID:      userID,
		Content:     content,
		Status:      StatusScheduled,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, content, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, p.ID, p.UserID, p.Content, p.Status, nullableTime(p.ScheduledAt), now)
	if err != nil {
		return nil, dbErr("insert post", err)
	}

	return &p, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Post, error) {
	var p Post
	var scheduledAt, publishedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, status, scheduled_at, published_at, created_at, updated_at
		FROM posts
		WHERE id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.Content, &p.Status, &scheduledAt, &publishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("post")
		}
		return nil, dbErr("query post", err)
	}

	p.ScheduledAt = timePtr(scheduledAt)
	p.PublishedAt = timePtr(publishedAt)
	return &p, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, content, status, scheduled_at, published_at, created_at, updated_at
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, dbErr("query posts", err)
	}
	defer rows.Close()

	posts := make([]Post, 0)
	for rows.Next() {
		var p Post
		var scheduledAt, publishedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.Status, &scheduledAt, &publishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, dbErr("scan post", err)
		}
		p.ScheduledAt = timePtr(scheduledAt)
		p.PublishedAt = timePtr(publishedAt)
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate posts", err)
	}

	return posts, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return dbErr("delete post", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return dbErr("rows affected", err)
	}
	if affected == 0 {
		return apperr.NotFound("post")
	}

	return nil
}

// PruneFinished batch-deletes published and failed posts whose last update
// is older than cutoff.
func (r *Repository) PruneFinished(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM posts
			WHERE status IN ($1, $2) AND updated_at < $3
			ORDER BY updated_at ASC
			LIMIT $4
		)
		DELETE FROM posts p
		USING stale
		WHERE p.id = stale.id
	`, StatusPublished, StatusFailed, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, dbErr("prune finished posts", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, dbErr("prune rows affected", err)
	}

	return affected, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time.UTC()
	return &value
}

func dbErr(op string, err error) error {
	return apperr.Internal(fmt.Errorf("%s: %w", op, err))
}
