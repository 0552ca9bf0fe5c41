package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - logged with its technical details and the request ID
//   - mapped to a status code by statusFor
//   - returned as a user-friendly message with an action and support code
//
// API clients get JSON; browsers asking for HTML get the ErrorAlert fragment.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
	"github.com/JonMunkholm/excel-analytics/internal/core"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
	"github.com/JonMunkholm/excel-analytics/internal/logging"
	webmw "github.com/JonMunkholm/excel-analytics/internal/web/middleware"
	"github.com/JonMunkholm/excel-analytics/internal/web/templates"
)

var (
	errNoFile        = errors.New("no file uploaded")
	errRateLimited   = errors.New("rate limit exceeded")
	errRouteNotFound = errors.New("route not found")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Action    string   `json:"action,omitempty"`
	Code      string   `json:"code"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrFileMissing):
		return http.StatusNotFound
	case errors.Is(err, webmw.ErrNoToken),
		errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrAccountDisabled),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrEmailTaken),
		errors.Is(err, core.ErrSelfDelete),
		errors.Is(err, core.ErrInvalidChart),
		errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, errNoFile),
		errors.As(err, &maxBytes),
		ingest.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail reports err with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs the technical error and writes the user-facing one in
// the format the client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "60")
	}

	if wantsJSON(r) {
		respondErrorJSON(w, ErrorResponse{
			Error:     userMsg.Message,
			Message:   userMsg.Message,
			Action:    userMsg.Action,
			Code:      userMsg.Code,
			Details:   validationDetails(err),
			RequestID: middleware.GetReqID(r.Context()),
		}, statusCode)
	} else {
		renderErrorPartial(w, r, userMsg, statusCode)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, resp ErrorResponse, statusCode int) {
	resp.Success = false
	writeJSON(w, statusCode, resp)
}

// renderErrorPartial renders the HTML alert fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

// wantsJSON reports whether the client should get a JSON error. Only
// non-API requests that explicitly accept HTML get the fragment.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return !strings.Contains(accept, "text/html")
}
