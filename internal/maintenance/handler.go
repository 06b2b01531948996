// Package maintenance exposes the cron-triggered cleanup endpoint. Token
// revocation records and failed-auth counters expire on their own in redis;
// the only thing left to prune is finished post records.
package maintenance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"socialqueue/internal/observability"
	"socialqueue/internal/web"
)

type PostPruner interface {
	PruneFinished(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type CleanupHandler struct {
	posts      PostPruner
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(posts PostPruner, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &CleanupHandler{
		posts:      posts,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		web.WriteErrorMessage(w, http.StatusNotFound, "not found")
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		web.WriteErrorMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cutoff := time.Now().UTC().Add(-h.retention)
	deleted, err := h.posts.PruneFinished(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("post_cleanup_failed", map[string]any{"error": err.Error()})
		web.WriteErrorMessage(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	h.logger.Info("post_cleanup_completed", map[string]any{"deleted_posts": deleted})

	web.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"deleted_posts": deleted,
	})
}
