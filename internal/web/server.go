// Package web provides the HTTP server, JSON API and portal pages of the
// resident registry.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/config"
	"github.com/JonMunkholm/residents/internal/core"
	webmw "github.com/JonMunkholm/residents/internal/web/middleware"
)

// Server is the HTTP server for the resident registry.
type Server struct {
	service *core.Service
	cfg     *config.Config
	tokens  *auth.TokenManager
	cookie  auth.CookieOptions
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server. Call Close when done to stop the rate
// limiter cleanup goroutines.
func NewServer(service *core.Service, tokens *auth.TokenManager, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		tokens:  tokens,
		cookie: auth.CookieOptions{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.SecureCookie,
		},
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.ClientIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}

	s.router.Use(s.tokens.Session(s.cfg.Auth.CookieName))
	s.router.Use(webmw.LoadActor(s.service.ActorByID))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	var login func(http.Handler) http.Handler = passThrough
	if s.cfg.Rate.Enabled {
		login = s.newRateLimiter(s.cfg.Rate.LoginLimit, time.Minute).middleware
	}

	s.router.Get("/healthz", s.handleHealth)

	// Streaming routes run without the request timeout: an export or an
	// SSE subscription may legitimately outlive it.
	s.router.Group(func(r chi.Router) {
		r.Use(webmw.RequireRole())
		r.Get("/api/export/residents.{format}", s.handleExport)
		r.Get("/api/export/progress/{session}/stream", s.handleProgressStream)
		r.With(webmw.RequireRole(core.RoleAdmin)).Post("/api/import", s.handleImport)
	})

	s.router.Group(func(r chi.Router) {
		if d := s.cfg.Server.RequestTimeout; d > 0 {
			r.Use(middleware.Timeout(d))
		}

		// Pages
		r.Get("/login", s.handleLoginPage)
		r.With(login).Post("/login", s.handleLoginForm)
		r.Post("/logout", s.handleLogoutForm)
		r.Group(func(r chi.Router) {
			r.Use(s.requirePageActor)
			r.Get("/", s.handlePortal)
			r.Get("/residents", s.handleResidentsPage)
			r.With(s.requirePageRole(core.RoleAdmin)).Get("/imports", s.handleImportsPage)
			r.With(s.requirePageRole(core.RoleAdmin)).Get("/users", s.handleUsersPage)
		})

		r.With(login).Post("/api/auth/login", s.handleLogin)
		r.Post("/api/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(webmw.RequireRole())

			r.Get("/api/me", s.handleMe)

			r.Get("/api/residents", s.handleListResidents)
			r.Get("/api/residents/{id}", s.handleGetResident)
			r.Patch("/api/residents/{id}", s.handleUpdateResident)
			r.Get("/api/residents/{id}/history", s.handleResidentHistory)

			r.Get("/api/export/progress/{session}", s.handleProgress)

			r.Get("/api/settings/cutoff", s.handleGetCutoff)
			r.Get("/api/analytics/summary", s.handleSummary)
			r.Get("/api/analytics/breakdown", s.handleBreakdown)
		})

		r.Group(func(r chi.Router) {
			r.Use(webmw.RequireRole(core.RoleAdmin))

			r.Get("/api/import/logs", s.handleImportLogs)

			r.Get("/api/users", s.handleListUsers)
			r.Post("/api/users", s.handleCreateUser)
			r.Patch("/api/users/{id}", s.handleUpdateUser)

			r.Put("/api/settings/cutoff", s.handleSetCutoff)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout, // 0 keeps exports and SSE open
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.stop()
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func passThrough(next http.Handler) http.Handler { return next }

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	db := "ok"
	if err := s.service.Ping(ctx); err != nil {
		slog.Warn("health: database unreachable", "error", err)
		status = http.StatusServiceUnavailable
		db = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSONBody(w, map[string]any{
		"status":   db,
		"database": db,
		"jobs":     s.service.Limiter().Status(),
	})
}
