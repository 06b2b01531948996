package user

import (
	"net/http"

	"socialqueue/internal/apperr"
	"socialqueue/internal/web"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := web.DecodeJSON(w, r, &body); err != nil {
		web.WriteErrorMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	u, err := h.service.Create(r.Context(), body.Email, body.Password)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	web.WriteJSON(w, http.StatusOK, current)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	current, ok := FromContext(r.Context())
	if !ok {
		web.WriteError(w, apperr.InvalidToken(""))
		return
	}

	if err := h.service.Delete(r.Context(), current.ID, current); err != nil {
		web.WriteError(w, err)
		return
	}

	web.WriteJSON(w, http.StatusOK, map[string]string{"message": "user deleted successfully"})
}
