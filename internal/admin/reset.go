// Package admin provides destructive maintenance operations for the
// residentadm tool.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// Resetter is the part of the query layer the resets use.
// *database.Queries satisfies it.
type Resetter interface {
	ResetResidents(ctx context.Context) error
	ResetImportLogs(ctx context.Context) error
	ResetSettings(ctx context.Context) error
}

// ResetDbs handles database reset operations.
type ResetDbs struct {
	DB Resetter
}

type dbResetFn struct {
	name string
	fn   func(ctx context.Context) error
}

// ResetData deletes residents, their update history and import logs.
// Users and settings are kept.
func (r *ResetDbs) ResetData(ctx context.Context) error {
	return r.runResets(ctx, []dbResetFn{
		{"residents", r.DB.ResetResidents},
		{"import logs", r.DB.ResetImportLogs},
	})
}

// ResetAll is ResetData plus system settings.
// This is a destructive operation - use with caution.
func (r *ResetDbs) ResetAll(ctx context.Context) error {
	return r.runResets(ctx, []dbResetFn{
		{"residents", r.DB.ResetResidents},
		{"import logs", r.DB.ResetImportLogs},
		{"settings", r.DB.ResetSettings},
	})
}

func (r *ResetDbs) runResets(ctx context.Context, resets []dbResetFn) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	for _, reset := range resets {
		if err := reset.fn(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", reset.name, err)
		}
		slog.Info("reset complete", "table", reset.name)
	}
	return nil
}
