package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, 0), or passes an explicit status
//  3. Status is derived from the error's sentinel when not given
//  4. Technical error is logged with the request id for correlation
//  5. User message from core.MapError is written as JSON, or as plain
//     text for page requests

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/logging"
)

// errBadRequest marks an unreadable request body or parameter.
var errBadRequest = errors.New("invalid request body")

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

func newErrorResponse(err error) ErrorResponse {
	msg := core.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	return resp
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusTooManyRequests
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidField),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrInvalidFormat),
		errors.Is(err, core.ErrInvalidSession),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch core.MapError(err).Code {
	case "DB001", "DB002":
		return http.StatusConflict
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002", "FILE003", "FILE005", "FILE006", "VAL004":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message. A zero status
// is derived from err.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	resp := newErrorResponse(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	}
	if status >= 500 {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if status == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", "5")
	}

	if !wantsJSON(r) {
		http.Error(w, resp.Message+" ("+resp.Code+"). "+resp.Action, status)
		return
	}
	writeJSONStatus(w, status, resp)
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// writeJSON encodes v as a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSONBody(w, v)
}

// writeJSONBody logs encoding errors since headers are already sent.
func writeJSONBody(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// maxJSONBody bounds request bodies of the JSON API.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
