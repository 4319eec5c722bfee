package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"newsdesk/internal/domain"
)

const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeNotFound       = "NOT_FOUND"
	codeCooldown       = "SYNC_COOLDOWN"
	codeAlreadyRunning = "SYNC_ALREADY_RUNNING"
	codeSyncFailed     = "SYNC_FAILED"
	codeInternal       = "INTERNAL_ERROR"
	codeUnavailable    = "SERVICE_UNAVAILABLE"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Meta    any       `json:"meta,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, envelope{
		Success: false,
		Message: message,
		Error:   &apiError{Code: code, Details: details},
	})
}

// writeServiceError maps a domain error onto a status and error code.
// Unclassified errors are logged and reported without their text.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		writeError(w, http.StatusTooManyRequests, codeCooldown, cooldown.Error(), map[string]any{
			"remainingSeconds": cooldown.RemainingSeconds(),
			"lastSyncAt":       cooldown.LastCompletedAt,
		})
	case errors.Is(err, domain.ErrSyncAlreadyRunning):
		writeError(w, http.StatusConflict, codeAlreadyRunning, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found", nil)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}
