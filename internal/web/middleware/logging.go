// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/logging"
)

// Logger logs one structured line per request.
//
// Log fields:
//   - method, path, status
//   - bytes: response body size
//   - duration_ms: request processing time
//   - ip: client IP as resolved by ClientIP
//   - user: signed-in username, when the request carried a session
//
// The request id is added by logging.FromContext.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// WrapResponseWriter keeps http.Flusher for SSE and streamed exports.
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		// Handlers further down add the actor to a derived request; the
		// holder lets this middleware see it after the fact.
		holder := &actorHolder{}
		next.ServeHTTP(ww, r.WithContext(withActorHolder(r.Context(), holder)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", core.GetIPAddressFromContext(r.Context()),
		}
		if holder.actor != nil {
			attrs = append(attrs, "user", holder.actor.Username)
		}

		logger := logging.FromContext(r.Context())
		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	})
}
