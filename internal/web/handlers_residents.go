package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListResidents returns one page of residents in the actor's scope.
func (s *Server) handleListResidents(w http.ResponseWriter, r *http.Request) {
	q, err := residentQuery(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	page, err := s.service.ListResidents(r.Context(), actorOf(r), q)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, page)
}

// handleGetResident returns one resident.
func (s *Server) handleGetResident(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.GetResident(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, res)
}

type fieldUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// handleUpdateResident changes one editable field.
func (s *Server) handleUpdateResident(w http.ResponseWriter, r *http.Request) {
	var req fieldUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	upd, err := s.service.UpdateResidentField(r.Context(), actorOf(r), chi.URLParam(r, "id"), req.Field, req.Value)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, upd)
}

// handleResidentHistory returns the edit log of one resident, newest first.
func (s *Server) handleResidentHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := s.service.ResidentHistory(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{"entries": logs})
}
