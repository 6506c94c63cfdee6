package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/residents/internal/core"
)

// importResponse is the body of POST /api/import. A run that failed part
// way carries both the counts so far and the error.
type importResponse struct {
	*core.ImportResult
	Error *ErrorResponse `json:"error,omitempty"`
}

// handleImport runs a bulk import from the multipart fields health and
// demographic (either or both), mode (add, update, upsert; default add)
// and an optional progress session.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	// Two files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("file too large: %w", err), 0)
			return
		}
		respondError(w, r, errors.Join(errBadRequest, err), 0)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := core.ImportRequest{
		Mode:      r.FormValue("mode"),
		SessionID: r.FormValue("session"),
	}
	if req.Mode == "" {
		req.Mode = core.ModeAdd
	}

	var err error
	if req.Health, err = formFile(r, core.SourceHealth, maxSize); err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer closeImportFile(req.Health)
	if req.Demographic, err = formFile(r, core.SourceDemographic, maxSize); err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer closeImportFile(req.Demographic)

	result, err := s.service.Import(r.Context(), actorOf(r), req)
	if err != nil {
		if result == nil {
			respondError(w, r, err, 0)
			return
		}
		resp := newErrorResponse(err)
		writeJSONStatus(w, http.StatusUnprocessableEntity, importResponse{ImportResult: result, Error: &resp})
		return
	}
	writeJSON(w, importResponse{ImportResult: result})
}

// formFile opens an optional upload field. A missing field returns nil.
func formFile(r *http.Request, field string, maxSize int64) (*core.ImportFile, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(errBadRequest, err)
	}
	if header.Size > maxSize {
		file.Close()
		return nil, fmt.Errorf("%s file too large: %d bytes exceeds limit of %d", field, header.Size, maxSize)
	}
	return &core.ImportFile{Name: header.Filename, Reader: file}, nil
}

func closeImportFile(f *core.ImportFile) {
	if f == nil {
		return
	}
	if c, ok := f.Reader.(io.Closer); ok {
		c.Close()
	}
}

// handleImportLogs lists recent import runs.
func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.service.ImportLogs(r.Context(), actorOf(r), parseIntParam(r, "limit", 50))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{"logs": logs})
}
