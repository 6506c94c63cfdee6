package web

import (
	"net/http"

	"github.com/JonMunkholm/residents/internal/core"
)

// handleListUsers lists every account.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListUsers(r.Context(), actorOf(r))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{"users": users})
}

// handleCreateUser adds an account.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req core.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	u, err := s.service.CreateUser(r.Context(), actorOf(r), req)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSONStatus(w, http.StatusCreated, u)
}

// handleUpdateUser changes role, secretariats, active flag, name or
// password of an account.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	var req core.UserUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	u, err := s.service.UpdateUser(r.Context(), actorOf(r), id, req)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, u)
}

type cutoffBody struct {
	Cutoff string `json:"cutoff"` // YYYY-MM-DD, empty when unset
}

// handleGetCutoff returns the cutoff date.
func (s *Server) handleGetCutoff(w http.ResponseWriter, r *http.Request) {
	cutoff, err := s.service.CutoffDate(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	var body cutoffBody
	if cutoff != nil {
		body.Cutoff = cutoff.Format(core.CutoffLayout)
	}
	writeJSON(w, body)
}

// handleSetCutoff stores the cutoff date; an empty value clears it.
func (s *Server) handleSetCutoff(w http.ResponseWriter, r *http.Request) {
	var req cutoffBody
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}
	cutoff, err := core.ParseCutoff(req.Cutoff)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if err := s.service.SetCutoffDate(r.Context(), actorOf(r), cutoff); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, req)
}

// handleSummary returns totals for the residents in the actor's scope.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q, err := residentQuery(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	sum, err := s.service.Summary(r.Context(), actorOf(r), q.Filter())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, sum)
}

// handleBreakdown returns totals grouped by ?by=district|mandal|secretariat|phc.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	q, err := residentQuery(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	by := r.URL.Query().Get("by")
	if by == "" {
		by = "mandal"
	}
	b, err := s.service.Breakdown(r.Context(), actorOf(r), by, q.Filter())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, b)
}
