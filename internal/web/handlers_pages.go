package web

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/web/pages"
)

// requirePageActor redirects anonymous page requests to the login form.
func (s *Server) requirePageActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := core.ActorFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePageRole renders a 403 page for actors without one of roles.
func (s *Server) requirePageRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !actorOf(r).HasRole(roles...) {
				s.renderPageError(w, r, core.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// renderPage renders c into a buffer so a failed render can still be
// answered with an error status.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderPageError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	if status >= 500 {
		respondError(w, r, err, status)
		return
	}
	actor := actorOf(r)
	s.renderPage(w, r, status, pages.Layout("Error", &actor, pages.ErrorAlert(msg.Message, msg.Action, msg.Code)))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.ActorFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderPage(w, r, http.StatusOK, pages.Login("", ""))
}

// handleLoginForm signs in from the HTML form and redirects to the portal.
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, pages.Login("The form could not be read", ""))
		return
	}
	username := r.PostFormValue("username")

	if _, _, err := s.signIn(r.Context(), w, username, r.PostFormValue("password")); err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			s.renderPage(w, r, http.StatusUnauthorized, pages.Login(core.MapError(err).Message, username))
			return
		}
		respondError(w, r, err, 0)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, s.cookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handlePortal renders the dashboard for the actor's role.
func (s *Server) handlePortal(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	ctx := r.Context()

	q, err := residentQuery(r)
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	sum, err := s.service.Summary(ctx, actor, q.Filter())
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}

	by := "mandal"
	if !actor.IsAdmin() {
		by = "secretariat"
	}
	breakdown, err := s.service.Breakdown(ctx, actor, by, q.Filter())
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, pages.Portal(actor, sum, breakdown))
}

func (s *Server) handleResidentsPage(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	q, err := residentQuery(r)
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	page, err := s.service.ListResidents(r.Context(), actor, q)
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, pages.Residents(actor, page, q))
}

func (s *Server) handleImportsPage(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	logs, err := s.service.ImportLogs(r.Context(), actor, 50)
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, pages.Imports(actor, logs))
}

func (s *Server) handleUsersPage(w http.ResponseWriter, r *http.Request) {
	actor := actorOf(r)
	users, err := s.service.ListUsers(r.Context(), actor)
	if err != nil {
		s.renderPageError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, pages.Users(actor, users))
}
