package database

import (
	"context"
	"fmt"
)

// SettingCutoffDate is the system_settings key of the global cutoff date.
const SettingCutoffDate = "cutoff_date"

// GetSetting returns a setting value or ErrNotFound.
func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := q.db.QueryRow(ctx, "SELECT value FROM system_settings WHERE key = $1", key).Scan(&value); err != nil {
		return "", notFound(err)
	}
	return value, nil
}

// SetSetting creates or replaces a setting.
func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO system_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a setting. Missing keys are not an error.
func (q *Queries) DeleteSetting(ctx context.Context, key string) error {
	if _, err := q.db.Exec(ctx, "DELETE FROM system_settings WHERE key = $1", key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
