package core

// export.go streams residents to CSV or XLSX in keyset-paginated batches.
//
// An export is two steps so the web layer can still answer with a JSON
// error before any file bytes are written:
//
//  1. PrepareExport checks permissions, takes a job slot, counts the
//     matching residents and publishes the first progress frame.
//  2. ExportJob.Run fetches batches of ExportBatchSize ordered by
//     resident_id, encodes each row, and updates progress after every batch.
//
// Progress lives in the progress store under the session id so a second
// connection can poll it or follow it over SSE. A poller going away has no
// effect on the export; the export stops only when its own request ends.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/residents/internal/database"
	"github.com/JonMunkholm/residents/internal/logging"
	"github.com/JonMunkholm/residents/internal/progress"
)

// ExportRequest describes one export.
type ExportRequest struct {
	Format    string
	SessionID string // optional; generated when empty
	Filter    database.ResidentFilter
	Unmasked  bool // admins only
}

// ExportJob is a prepared export holding a job slot until Run or Cancel.
type ExportJob struct {
	svc     *Service
	actor   Actor
	req     ExportRequest
	filter  database.ResidentFilter
	total   int64
	batches int
	tracker *progress.Tracker
	log     *slog.Logger
	started time.Time
	enc     rowEncoder

	release sync.Once
}

// PrepareExport validates req, waits for a job slot and counts the rows.
// On success the caller must call Run or Cancel.
func (s *Service) PrepareExport(ctx context.Context, actor Actor, req ExportRequest) (*ExportJob, error) {
	if req.Format != FormatCSV && req.Format != FormatXLSX {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, req.Format)
	}
	if req.SessionID == "" {
		req.SessionID = NewSessionID()
	} else if !ValidSessionID(req.SessionID) {
		return nil, ErrInvalidSession
	}
	if req.Unmasked && !actor.IsAdmin() {
		return nil, fmt.Errorf("unmasked export: %w", ErrForbidden)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	job := &ExportJob{
		svc:     s,
		actor:   actor,
		req:     req,
		filter:  actor.Scope(req.Filter),
		tracker: s.tracker(req.SessionID, actor),
		started: s.now(),
		log: logging.WithFields(ctx,
			"export_session", req.SessionID,
			"format", req.Format,
			"user", actor.Username,
		),
	}

	job.tracker.Init(ctx, "counting residents")

	total, err := s.store.CountResidents(ctx, job.filter)
	if err != nil {
		job.tracker.Fail(ctx, "failed to count residents")
		job.done()
		return nil, fmt.Errorf("export count: %w", err)
	}
	job.total = total
	job.batches = progress.BatchCount(total, s.opts.ExportBatchSize)
	job.tracker.Start(ctx, total, job.batches)

	job.log.Info("export prepared", "total_records", total, "batches", job.batches)
	return job, nil
}

// SessionID returns the progress session id.
func (j *ExportJob) SessionID() string { return j.req.SessionID }

// Total returns the number of residents the export will write.
func (j *ExportJob) Total() int64 { return j.total }

// ContentType returns the MIME type of the export.
func (j *ExportJob) ContentType() string {
	if j.req.Format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename returns a download name such as residents_20240131_150405.csv.
func (j *ExportJob) Filename() string {
	return fmt.Sprintf("residents_%s.%s", j.started.Format("20060102_150405"), j.req.Format)
}

func (j *ExportJob) done() {
	j.release.Do(j.svc.limiter.Release)
}

// Cancel gives up a prepared export without writing anything.
func (j *ExportJob) Cancel(ctx context.Context, reason string) {
	j.tracker.Fail(ctx, reason)
	j.done()
}

// Run writes the export to w and returns the number of rows written.
// If w implements Flush() it is flushed after every CSV batch.
func (j *ExportJob) Run(ctx context.Context, w io.Writer) (int64, error) {
	defer j.done()

	ctx, cancel := context.WithTimeout(ctx, j.svc.opts.ExportTimeout)
	defer cancel()

	written, err := j.run(ctx, w)
	if err != nil {
		msg := "export failed"
		if ctx.Err() != nil {
			msg = "export cancelled"
		}
		j.tracker.Fail(ctx, msg)
		j.log.Error("export failed", "error", err, "written", written)
		return written, err
	}

	j.tracker.Complete(ctx, written, fmt.Sprintf("exported %d residents", written))
	j.log.Info("export completed",
		"written", written,
		"duration_ms", time.Since(j.started).Milliseconds(),
	)
	return written, nil
}

func (j *ExportJob) run(ctx context.Context, w io.Writer) (written int64, err error) {
	enc, err := newEncoder(j.req.Format, w)
	if err != nil {
		return 0, err
	}
	j.enc = enc
	defer func() {
		if err != nil {
			enc.Abort()
		}
	}()

	masked := !j.req.Unmasked
	meta := ExportMeta{
		Title:       "Resident Export",
		GeneratedAt: j.started,
		GeneratedBy: j.actor.Username,
		Filters:     j.req.Filter.Describe(),
		Records:     j.total,
		Masked:      masked,
	}
	if err := enc.Begin(meta); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	var (
		after string
		batch int
		size  = j.svc.opts.ExportBatchSize
	)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		rows, err := j.svc.store.ResidentsAfter(ctx, j.filter, after, size)
		if err != nil {
			return written, fmt.Errorf("fetch batch %d: %w", batch+1, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, r := range rows {
			if err := enc.WriteRow(exportRow(r, masked)); err != nil {
				return written, fmt.Errorf("write row: %w", err)
			}
			written++
		}
		if err := enc.EndBatch(); err != nil {
			return written, fmt.Errorf("flush batch %d: %w", batch+1, err)
		}

		batch++
		after = rows[len(rows)-1].ResidentID
		j.tracker.Batch(ctx, batch, written)

		if len(rows) < size {
			break
		}
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("finish export: %w", err)
	}
	return written, nil
}
