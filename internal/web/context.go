package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/residents/internal/core"
)

// actorOf returns the signed-in actor. Routes behind RequireRole always
// have one; elsewhere the zero Actor has no role and no scope.
func actorOf(r *http.Request) core.Actor {
	a, _ := core.ActorFromContext(r.Context())
	return a
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBool accepts 1/true/yes/on.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// residentQuery reads listing filters shared by the residents API, the
// export and analytics: mandal, secretariat, phc, q (search) and
// updated_from (YYYY-MM-DD).
func residentQuery(r *http.Request) (core.ResidentQuery, error) {
	q := r.URL.Query()
	rq := core.ResidentQuery{
		Mandal:      q.Get("mandal"),
		Secretariat: q.Get("secretariat"),
		PHC:         q.Get("phc"),
		Search:      q.Get("q"),
		Page:        parseIntParam(r, "page", 1),
		PageSize:    parseIntParam(r, "page_size", core.DefaultPageSize),
	}
	if v := strings.TrimSpace(q.Get("updated_from")); v != "" {
		t, err := time.Parse(core.CutoffLayout, v)
		if err != nil {
			return rq, &core.ValidationError{Field: "updated_from", Value: v, Msg: "invalid date, use YYYY-MM-DD"}
		}
		rq.UpdatedFrom = &t
	}
	return rq, nil
}

// idParam parses a numeric URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Value: chi.URLParam(r, name), Msg: "must be a positive number"}
	}
	return id, nil
}
