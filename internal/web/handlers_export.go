package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/logging"
)

// handleExport streams residents as CSV or XLSX.
//
// Query: the residentQuery filters, session (progress session id, optional)
// and unmasked=1 (admins only). The session id is echoed in the
// X-Export-Session header so a client that did not supply one can still
// follow progress.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := residentQuery(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	req := core.ExportRequest{
		Format:    chi.URLParam(r, "format"),
		SessionID: r.URL.Query().Get("session"),
		Filter:    q.Filter(),
		Unmasked:  parseBool(r.URL.Query().Get("unmasked")),
	}

	job, err := s.service.PrepareExport(r.Context(), actorOf(r), req)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	h := w.Header()
	h.Set("Content-Type", job.ContentType())
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, job.Filename()))
	h.Set("X-Export-Session", job.SessionID())
	h.Set("X-Total-Count", strconv.FormatInt(job.Total(), 10))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Headers are sent; failures can only be logged and reported through
	// the progress session.
	written, err := job.Run(r.Context(), flushWriter{w})
	if err != nil {
		logging.FromContext(r.Context()).Error("export aborted",
			"export_session", job.SessionID(),
			"written", written,
			"error", err,
		)
	}
}

// flushWriter exposes the ResponseWriter's Flush to the export encoder,
// which flushes after every batch.
type flushWriter struct {
	w http.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) { return f.w.Write(p) }

func (f flushWriter) Flush() {
	_ = http.NewResponseController(f.w).Flush()
}

// handleProgress returns the latest progress frame of a session.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Progress(r.Context(), actorOf(r), chi.URLParam(r, "session"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, p)
}

// handleProgressStream streams progress frames via Server-Sent Events.
// The event id is the completion percentage; a reconnecting client passes
// lastEventId (or the Last-Event-ID header) to skip frames it has seen.
//
// The stream may be opened before the export request has created the
// session; the subscription waits for the first frame. A session that never
// appears ends the stream with an error event.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")

	lastEventID := -1
	last := r.URL.Query().Get("lastEventId")
	if last == "" {
		last = r.Header.Get("Last-Event-ID")
	}
	if n, err := strconv.Atoi(last); err == nil {
		lastEventID = n
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames, err := s.service.SubscribeProgress(ctx, actorOf(r), sessionID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(ctx).Warn("sse: streaming not supported", "error", err)
		return
	}

	seen := false
	for {
		select {
		case p, ok := <-frames:
			if !ok {
				if seen || ctx.Err() != nil {
					fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				} else {
					data, _ := json.Marshal(newErrorResponse(core.ErrNotFound))
					fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
				}
				_ = rc.Flush()
				return
			}
			seen = true

			pct := p.Percent()
			if pct <= lastEventID && !p.Status.Terminal() {
				continue
			}

			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", pct, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}
