package auth

import (
	"net/http"
	"strings"

	"socialqueue/internal/apperr"
	"socialqueue/internal/observability"
	"socialqueue/internal/user"
	"socialqueue/internal/web"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	pair, err := h.service.Login(r.Context(), body.Email, body.Password, observability.ClientIP(r))
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	pair, err := h.service.Refresh(r.Context(), strings.TrimSpace(body.RefreshToken))
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, pair)
}

// Logout runs behind the auth middleware: the access token comes from the
// request context, the refresh token from the body.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	accessToken, _ := TokenFromContext(r.Context())
	if err := h.service.Logout(r.Context(), accessToken, strings.TrimSpace(body.RefreshToken)); err != nil {
		web.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll invalidates every outstanding token for the caller.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	current, ok := user.FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	if err := h.service.RevokeAllUserTokens(r.Context(), current.ID); err != nil {
		web.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
