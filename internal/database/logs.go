package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// InsertUpdateLog appends one field-edit audit row.
func (q *Queries) InsertUpdateLog(ctx context.Context, l UpdateLog) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO update_logs (resident_id, field, old_value, new_value, user_id)
		VALUES ($1, $2, $3, $4, $5)`,
		l.ResidentID, l.Field, l.OldValue, l.NewValue, l.UserID,
	)
	if err != nil {
		return fmt.Errorf("insert update log: %w", err)
	}
	return nil
}

// ListUpdateLogs returns the newest edits of a resident first.
func (q *Queries) ListUpdateLogs(ctx context.Context, residentID string, limit int) ([]UpdateLog, error) {
	rows, err := q.db.Query(ctx,
		`SELECT l.id, l.resident_id, l.field, l.old_value, l.new_value, l.user_id, u.username, l.created_at
		FROM update_logs l LEFT JOIN users u ON u.id = l.user_id
		WHERE l.resident_id = $1 ORDER BY l.created_at DESC, l.id DESC LIMIT $2`,
		residentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list update logs: %w", err)
	}
	defer rows.Close()

	logs := make([]UpdateLog, 0)
	for rows.Next() {
		var l UpdateLog
		if err := rows.Scan(&l.ID, &l.ResidentID, &l.Field, &l.OldValue, &l.NewValue,
			&l.UserID, &l.Username, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// CreateImportLog records the start of an import run with status running.
func (q *Queries) CreateImportLog(ctx context.Context, l ImportLog) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO import_logs (id, mode, status, health_file, demographic_file, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pgUUID(l.ID), l.Mode, ImportRunning, l.HealthFile, l.DemographicFile, l.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("create import log: %w", err)
	}
	return nil
}

// FinishImportLog stores the final counts and status of a run.
func (q *Queries) FinishImportLog(ctx context.Context, l ImportLog) error {
	errs := l.Errors
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode import errors: %w", err)
	}

	tag, err := q.db.Exec(ctx,
		`UPDATE import_logs SET status = $2, total_records = $3, inserted = $4, updated = $5,
			skipped = $6, failed = $7, errors = $8, finished_at = now()
		WHERE id = $1`,
		pgUUID(l.ID), l.Status, l.TotalRecords, l.Inserted, l.Updated, l.Skipped, l.Failed, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("finish import log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImportLogs returns the most recent runs first.
func (q *Queries) ListImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, mode, status, health_file, demographic_file, total_records, inserted, updated,
			skipped, failed, errors, created_by, started_at, finished_at
		FROM import_logs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	defer rows.Close()

	logs := make([]ImportLog, 0)
	for rows.Next() {
		var (
			l      ImportLog
			id     pgtype.UUID
			errRaw []byte
		)
		if err := rows.Scan(&id, &l.Mode, &l.Status, &l.HealthFile, &l.DemographicFile,
			&l.TotalRecords, &l.Inserted, &l.Updated, &l.Skipped, &l.Failed, &errRaw,
			&l.CreatedBy, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, err
		}
		l.ID = uuid.UUID(id.Bytes)
		if len(errRaw) > 0 {
			if err := json.Unmarshal(errRaw, &l.Errors); err != nil {
				l.Errors = []string{"(unreadable error list)"}
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// FailStaleImportLogs marks runs still "running" since before cutoff as
// failed. Runs orphaned by a restart end up here.
func (q *Queries) FailStaleImportLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE import_logs SET status = $1, finished_at = now(),
			errors = errors || '["import interrupted before completion"]'::jsonb
		WHERE status = $2 AND started_at < $3`,
		ImportFailed, ImportRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale import logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeImportLogs deletes finished runs older than cutoff.
func (q *Queries) PurgeImportLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx,
		"DELETE FROM import_logs WHERE status <> $1 AND started_at < $2",
		ImportRunning, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge import logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
