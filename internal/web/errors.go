package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical details and request ID, then
// returned to the client as a user-facing message with a suggested action
// and a stable code from loader.MapError.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/flatload/internal/flatfile"
	"github.com/JonMunkholm/flatload/internal/loader"
	"github.com/JonMunkholm/flatload/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile       = errors.New("no file uploaded")
	errInvalidParam = errors.New("invalid parameter")
	errFileTooLarge = errors.New("file too large")
)

// statusFor picks the HTTP status for an error returned by the loader or
// by request parsing.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, loader.ErrLoadNotFound), errors.Is(err, loader.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, errLoadRunning):
		return http.StatusConflict
	case errors.Is(err, loader.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errNoFile),
		errors.Is(err, errInvalidParam),
		errors.Is(err, loader.ErrUnknownFormat),
		errors.Is(err, loader.ErrInvalidChar),
		errors.Is(err, loader.ErrUnknownColumn),
		errors.Is(err, loader.ErrDuplicateColumn),
		errors.Is(err, loader.ErrNoTargetColumns),
		errors.Is(err, loader.ErrWidths),
		errors.Is(err, loader.ErrHeaderMatch),
		errors.Is(err, flatfile.ErrNoRowDelimiter),
		errors.Is(err, flatfile.ErrCarriageReturn),
		errors.Is(err, flatfile.ErrFixedQuoting),
		errors.Is(err, flatfile.ErrDelimiterConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message with the status
// from statusFor.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := loader.MapError(err)

	logger := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	respondErrorJSON(w, userMsg, status)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg loader.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
