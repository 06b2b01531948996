// Package web holds the small JSON request/response helpers shared by every
// handler package.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"

	"socialqueue/internal/apperr"
)

const maxJSONBodyBytes = 1 << 20

// DecodeJSON reads a bounded, strict JSON body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteError maps a taxonomy error onto the wire. Internal errors are
// reported to Sentry and surface only their generic public message.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperr.AsError(err)

	if appErr.Code == apperr.CodeInternal {
		sentry.CaptureException(err)
	}
	if appErr.RetryAfter > 0 {
		retryAfter := int(appErr.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	WriteJSON(w, appErr.Status, map[string]string{
		"error": appErr.Message,
		"code":  string(appErr.Code),
	})
}
