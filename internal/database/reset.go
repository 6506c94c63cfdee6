package database

import "context"

// ResetResidents deletes every resident and its update history.
func (q *Queries) ResetResidents(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `TRUNCATE update_logs, residents`)
	return err
}

// ResetImportLogs deletes every import run record.
func (q *Queries) ResetImportLogs(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `TRUNCATE import_logs`)
	return err
}

// ResetSettings deletes all system settings, including the cutoff date.
func (q *Queries) ResetSettings(ctx context.Context) error {
	_, err := q.db.Exec(ctx, `DELETE FROM system_settings`)
	return err
}
