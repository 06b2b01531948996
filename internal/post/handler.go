package post

import (
	"net/http"
	"strings"
	"time"

	"socialqueue/internal/apperr"
	"socialqueue/internal/observability"
	"socialqueue/internal/queue"
	"socialqueue/internal/user"
	"socialqueue/internal/web"
)

const maxContentLength = 10000

type Handler struct {
	repo      *Repository
	publisher queue.Publisher
	logger    *observability.Logger
}

func NewHandler(repo *Repository, publisher queue.Publisher, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, publisher: publisher, logger: logger}
}

type createRequest struct {
	Content     string `json:"content"`
	ScheduledAt string `json:"scheduled_at"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	var body createRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Content = strings.TrimSpace(body.Content)
	if body.Content == "" || len(body.Content) > maxContentLength {
		web.WriteError(w, apperr.Validation("content must be between 1 and 10000 characters"))
		return
	}

	var scheduledAt *time.Time
	if strings.TrimSpace(body.ScheduledAt) != "" {
		parsed, err := time.Parse(time.RFC3339, body.ScheduledAt)
		if err != nil {
			web.WriteError(w, apperr.Validation("scheduled_at must be an RFC 3339 timestamp"))
			return
		}
		utc := parsed.UTC()
		scheduledAt = &utc
	}

	p, err := h.repo.Create(r.Context(), current.ID, body.Content, scheduledAt)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	// The record is durable either way; the worker reconciles from the posts
	// table if the broker hand-off fails.
	event := queue.PostScheduled{PostID: p.ID, UserID: p.UserID, ScheduledAt: p.ScheduledAt}
	if err := h.publisher.PublishPostScheduled(r.Context(), event); err != nil {
		h.logger.Warn("post_enqueue_failed", map[string]any{"post_id": p.ID, "error": err.Error()})
	}

	web.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	posts, err := h.repo.ListByUser(r.Context(), current.ID)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, posts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ownedPost(r)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.ownedPost(r)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	if err := h.repo.Delete(r.Context(), p.ID); err != nil {
		web.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ownedPost(r *http.Request) (*Post, error) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		return nil, apperr.InvalidToken("")
	}

	p, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if p.UserID != current.ID {
		return nil, apperr.NotAuthorized("you are not authorized to access this post")
	}

	return p, nil
}
