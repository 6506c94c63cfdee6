package core

// import.go loads health and demographic files into the residents table.
//
// Flow:
//  1. Both files are parsed concurrently into per-source lookup tables
//     keyed by resident id.
//  2. The tables are merged field by field; the demographic value wins
//     where both sources carry one and the health value fills gaps.
//  3. Every merged record is validated and written according to the mode.
//     Bad rows are counted and reported; they never abort the run.
//
// Each run is recorded in import_logs: created "running", finished
// "completed" or "failed" with its counts and the first ErrorLimit problems.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/residents/internal/database"
	"github.com/JonMunkholm/residents/internal/logging"
)

// Source keys of the two import files.
const (
	SourceHealth      = "health"
	SourceDemographic = "demographic"
)

// ImportFile is one uploaded source file.
type ImportFile struct {
	Name   string
	Reader io.Reader
}

// ImportRequest describes one import run. At least one file is required.
type ImportRequest struct {
	Mode        string
	Health      *ImportFile
	Demographic *ImportFile
	SessionID   string // optional progress session
}

// ImportResult summarizes an import run.
type ImportResult struct {
	ID              uuid.UUID `json:"id"`
	Mode            string    `json:"mode"`
	SessionID       string    `json:"session,omitempty"`
	Total           int       `json:"total"`
	Inserted        int       `json:"inserted"`
	Updated         int       `json:"updated"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	Duplicates      int       `json:"duplicates"`
	Errors          []string  `json:"errors"`
	ErrorsTruncated bool      `json:"errorsTruncated"`
	DurationMs      int64     `json:"durationMs"`
}

// errorList keeps the first limit messages and counts the rest.
type errorList struct {
	limit     int
	items     []string
	truncated bool
}

var newlineReplacer = strings.NewReplacer("\r\n", "; ", "\n", "; ")

func (l *errorList) add(msg string) {
	if len(l.items) >= l.limit {
		l.truncated = true
		return
	}
	l.items = append(l.items, newlineReplacer.Replace(msg))
}

// Import runs an import for an admin.
func (s *Service) Import(ctx context.Context, actor Actor, req ImportRequest) (*ImportResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("import: %w", ErrForbidden)
	}
	if !ValidMode(req.Mode) {
		return nil, fmt.Errorf("%w: %q (use add, update or upsert)", ErrInvalidMode, req.Mode)
	}
	if req.Health == nil && req.Demographic == nil {
		return nil, ErrNoFiles
	}
	if req.SessionID != "" && !ValidSessionID(req.SessionID) {
		return nil, ErrInvalidSession
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ImportTimeout)
	defer cancel()

	started := s.now()
	entry := database.ImportLog{
		ID:        uuid.New(),
		Mode:      req.Mode,
		Status:    database.ImportRunning,
		StartedAt: started,
	}
	if actor.UserID > 0 {
		uid := actor.UserID
		entry.CreatedBy = &uid
	}
	if req.Health != nil {
		entry.HealthFile = req.Health.Name
	}
	if req.Demographic != nil {
		entry.DemographicFile = req.Demographic.Name
	}

	log := logging.WithFields(ctx,
		"import_id", entry.ID.String(),
		"mode", req.Mode,
		"user", actor.Username,
	)

	if err := s.store.CreateImportLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	log.Info("import started", "health_file", entry.HealthFile, "demographic_file", entry.DemographicFile)

	result := &ImportResult{ID: entry.ID, Mode: req.Mode, SessionID: req.SessionID}
	errs := &errorList{limit: s.opts.ImportErrorLimit}

	runErr := s.runImport(ctx, actor, req, result, errs)

	result.Errors = errs.items
	if result.Errors == nil {
		result.Errors = []string{}
	}
	result.ErrorsTruncated = errs.truncated
	result.DurationMs = s.now().Sub(started).Milliseconds()

	entry.Status = database.ImportCompleted
	if runErr != nil {
		entry.Status = database.ImportFailed
		// The technical error goes to the log only.
		m := MapError(runErr)
		result.Errors = append(result.Errors, fmt.Sprintf("%s (%s)", m.Message, m.Code))
	}
	entry.TotalRecords = int32(result.Total)
	entry.Inserted = int32(result.Inserted)
	entry.Updated = int32(result.Updated)
	entry.Skipped = int32(result.Skipped)
	entry.Failed = int32(result.Failed)
	entry.Errors = result.Errors
	finished := s.now()
	entry.FinishedAt = &finished

	// The log is closed even when the request that started the run is gone.
	if err := s.store.FinishImportLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("failed to finish import log", "error", err)
	}

	if runErr != nil {
		log.Error("import failed", "error", runErr, "inserted", result.Inserted, "updated", result.Updated)
		return result, runErr
	}

	log.Info("import completed",
		"total", result.Total,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (s *Service) runImport(ctx context.Context, actor Actor, req ImportRequest, result *ImportResult, errs *errorList) error {
	track := req.SessionID != ""
	tracker := s.tracker(req.SessionID, actor)
	if track {
		tracker.Init(ctx, "reading files")
	}
	fail := func(err error) error {
		if track {
			tracker.Fail(ctx, MapError(err).Message)
		}
		return err
	}

	sources, err := parseSources(ctx, req)
	if err != nil {
		return fail(err)
	}

	var unkeyed int
	for _, src := range sources {
		result.Duplicates += src.Duplicates
		unkeyed += len(src.Problems)
		for _, p := range src.Problems {
			errs.add(p)
		}
	}

	records := Merge(sources...)
	result.Total = len(records) + unkeyed
	result.Failed = unkeyed

	if track {
		tracker.Start(ctx, int64(len(records)), 1)
	}

	for i, rec := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if track && i > 0 {
				tracker.Batch(ctx, 1, int64(i))
			}
		}

		id := rec.Get(FieldResidentID)
		p, err := BuildResident(rec)
		if err != nil {
			result.Failed++
			errs.add(fmt.Sprintf("resident %s: %v", id, err))
			continue
		}

		if err := s.applyMode(ctx, req.Mode, p, result); err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			result.Failed++
			errs.add(fmt.Sprintf("resident %s: %s", id, MapError(err).Message))
			logging.FromContext(ctx).Warn("import row failed", "resident_id", id, "error", err)
		}
	}

	if track {
		tracker.Complete(ctx, int64(len(records)),
			fmt.Sprintf("imported: %d inserted, %d updated, %d skipped, %d failed",
				result.Inserted, result.Updated, result.Skipped, result.Failed))
	}
	return nil
}

func (s *Service) applyMode(ctx context.Context, mode string, p database.ResidentParams, result *ImportResult) error {
	switch mode {
	case ModeAdd:
		ok, err := s.store.InsertResident(ctx, p)
		if err != nil {
			return err
		}
		if ok {
			result.Inserted++
		} else {
			result.Skipped++
		}
	case ModeUpdate:
		ok, err := s.store.UpdateResident(ctx, p)
		if err != nil {
			return err
		}
		if ok {
			result.Updated++
		} else {
			result.Skipped++
		}
	case ModeUpsert:
		outcome, err := s.store.UpsertResident(ctx, p)
		if err != nil {
			return err
		}
		switch outcome {
		case database.Inserted:
			result.Inserted++
		case database.Updated:
			result.Updated++
		default:
			result.Skipped++
		}
	}
	return nil
}

// parseSources reads the provided files concurrently.
func parseSources(ctx context.Context, req ImportRequest) ([]*SourceData, error) {
	type job struct {
		key  string
		file *ImportFile
	}
	var jobs []job
	if req.Health != nil {
		jobs = append(jobs, job{SourceHealth, req.Health})
	}
	if req.Demographic != nil {
		jobs = append(jobs, job{SourceDemographic, req.Demographic})
	}

	out := make([]*SourceData, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			def, ok := Get(j.key)
			if !ok {
				return fmt.Errorf("import source %q is not registered", j.key)
			}
			data, err := parseFile(gctx, def, j.file)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseFile(ctx context.Context, def SourceDefinition, f *ImportFile) (data *SourceData, err error) {
	t, err := OpenTable(f.Name, f.Reader)
	if err != nil {
		return nil, fmt.Errorf("%s file: %w", def.Key, err)
	}
	defer func() {
		err = errors.Join(err, t.Close())
	}()
	return ParseSource(ctx, def, t)
}

// ImportLogs returns the most recent import runs for admins.
func (s *Service) ImportLogs(ctx context.Context, actor Actor, limit int) ([]database.ImportLog, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("import logs: %w", ErrForbidden)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListImportLogs(ctx, limit)
}

// importDeadline is how long a run may stay "running" before maintenance
// marks it failed.
func (s *Service) importDeadline() time.Duration {
	return 2 * s.opts.ImportTimeout
}
