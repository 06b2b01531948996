package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"socialqueue/internal/apperr"
)

func TestDecodeJSONStrict(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"ada@example.com"}`))
	var p payload
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &p))
	require.Equal(t, "ada@example.com", p.Email)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","extra":true}`))
	require.Error(t, DecodeJSON(httptest.NewRecorder(), r, &p))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	require.Error(t, DecodeJSON(httptest.NewRecorder(), r, &p))
}

func TestWriteErrorTaxonomy(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.NotFound("post"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "post not found", body["error"])
	require.Equal(t, string(apperr.CodeNotFound), body["code"])
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperr.RateLimited(90*time.Second))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "90", rec.Header().Get("Retry-After"))
}
