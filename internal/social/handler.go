package social

import (
	"net/http"
	"strings"
	"time"

	"socialqueue/internal/apperr"
	"socialqueue/internal/user"
	"socialqueue/internal/web"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type linkRequest struct {
	Platform       string `json:"platform"`
	PlatformUserID string `json:"platform_user_id"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	TokenExpiresAt string `json:"token_expires_at"`
}

func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	var body linkRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	platform := Platform(strings.ToLower(strings.TrimSpace(body.Platform)))
	if !platform.Valid() {
		web.WriteError(w, apperr.Validation("platform must be one of linkedin, twitter, instagram"))
		return
	}
	if strings.TrimSpace(body.PlatformUserID) == "" || body.AccessToken == "" || body.RefreshToken == "" {
		web.WriteError(w, apperr.Validation("platform_user_id, access_token and refresh_token are required"))
		return
	}

	account := Account{
		UserID:         current.ID,
		Platform:       platform,
		PlatformUserID: strings.TrimSpace(body.PlatformUserID),
		AccessToken:    body.AccessToken,
		RefreshToken:   body.RefreshToken,
	}
	if strings.TrimSpace(body.TokenExpiresAt) != "" {
		parsed, err := time.Parse(time.RFC3339, body.TokenExpiresAt)
		if err != nil {
			web.WriteError(w, apperr.Validation("token_expires_at must be an RFC 3339 timestamp"))
			return
		}
		utc := parsed.UTC()
		account.TokenExpiresAt = &utc
	}

	created, err := h.repo.Create(r.Context(), account)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	accounts, err := h.repo.ListByUser(r.Context(), current.ID)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) Unlink(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	account, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteError(w, err)
		return
	}
	if account.UserID != current.ID {
		web.WriteError(w, apperr.NotAuthorized("you are not authorized to unlink this account"))
		return
	}

	if err := h.repo.Delete(r.Context(), account.ID); err != nil {
		web.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
