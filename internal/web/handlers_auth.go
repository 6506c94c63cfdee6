package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/logging"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User      core.Actor `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// signIn checks credentials and sets the session cookie.
func (s *Server) signIn(ctx context.Context, w http.ResponseWriter, username, password string) (core.Actor, time.Time, error) {
	actor, err := s.service.Authenticate(ctx, username, password)
	if err != nil {
		logging.FromContext(ctx).Warn("login failed",
			"username", username,
			"ip", core.GetIPAddressFromContext(ctx),
		)
		return core.Actor{}, time.Time{}, err
	}

	token, expires, err := s.tokens.Issue(actor.UserID, actor.Username, actor.Role)
	if err != nil {
		return core.Actor{}, time.Time{}, err
	}
	auth.SetSessionCookie(w, s.cookie, token, expires)

	logging.FromContext(ctx).Info("login", "user", actor.Username, "role", actor.Role)
	return actor, expires, nil
}

// handleLogin signs a user in and sets the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	actor, expires, err := s.signIn(r.Context(), w, req.Username, req.Password)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, loginResponse{User: actor, ExpiresAt: expires})
}

// handleLogout clears the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, s.cookie)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the signed-in user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, actorOf(r))
}
