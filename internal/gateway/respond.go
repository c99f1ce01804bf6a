package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/security"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Client-facing messages. Raw errors never reach clients.
const (
	msgNotFound       = "session not found"
	msgUnavailable    = "the service is temporarily unavailable, please try again later"
	msgSessionLimit   = "too many active sessions, please try again later"
	msgInternal       = "internal error"
	msgEmptyMessage   = "message must not be empty"
	msgInvalidRequest = "invalid request body"
)

// errorStatus maps a domain error onto an HTTP status and a safe message.
// fallback, when set, is the user-facing reply the router already chose.
func errorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, session.ErrLimitReached):
		return http.StatusServiceUnavailable, msgSessionLimit
	case errors.Is(err, store.ErrUnavailable):
		if fallback != "" {
			return http.StatusServiceUnavailable, fallback
		}
		return http.StatusServiceUnavailable, msgUnavailable
	case errors.Is(err, router.ErrEmptyUtterance):
		return http.StatusBadRequest, msgEmptyMessage
	case errors.Is(err, security.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge, "message is too long"
	case errors.Is(err, security.ErrInvalidText),
		errors.Is(err, security.ErrInvalidJSON),
		errors.Is(err, security.ErrJSONTooDeep):
		return http.StatusBadRequest, msgInvalidRequest
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
