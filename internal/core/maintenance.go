package core

// maintenance.go runs periodic housekeeping on import_logs:
//  1. Runs left "running" past the import deadline (for example after a
//     restart mid-import) are marked failed.
//  2. Finished runs older than the retention window are deleted.
//
// Failures are logged and retried on the next tick; they never stop the
// server.

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig holds configuration for the maintenance loop.
// Zero values take the defaults.
type MaintenanceConfig struct {
	Interval  time.Duration // how often to run (default: 1h)
	Retention time.Duration // how long finished import logs are kept (default: 90 days)
}

func (c MaintenanceConfig) withDefaults() MaintenanceConfig {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	return c
}

// MaintenanceResult reports one maintenance pass.
type MaintenanceResult struct {
	Failed int64 // stale runs marked failed
	Purged int64 // old runs deleted
}

// StartMaintenance runs maintenance immediately and then every Interval
// until ctx is cancelled.
func (s *Service) StartMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	cfg = cfg.withDefaults()
	slog.Info("maintenance started",
		"interval", cfg.Interval.String(),
		"retention", cfg.Retention.String(),
	)

	s.RunMaintenance(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance stopped")
			return
		case <-ticker.C:
			s.RunMaintenance(ctx, cfg)
		}
	}
}

// RunMaintenance performs one pass.
func (s *Service) RunMaintenance(ctx context.Context, cfg MaintenanceConfig) MaintenanceResult {
	cfg = cfg.withDefaults()
	start := time.Now()
	now := s.now()

	var res MaintenanceResult
	var err error

	res.Failed, err = s.store.FailStaleImportLogs(ctx, now.Add(-s.importDeadline()))
	if err != nil {
		slog.Error("failing stale import logs failed", "error", err)
	} else if res.Failed > 0 {
		slog.Warn("marked stale import runs failed", "count", res.Failed)
	}

	res.Purged, err = s.store.PurgeImportLogs(ctx, now.Add(-cfg.Retention))
	if err != nil {
		slog.Error("purging import logs failed", "error", err)
	} else if res.Purged > 0 {
		slog.Info("purged old import logs", "count", res.Purged)
	}

	slog.Debug("maintenance completed", "duration_ms", time.Since(start).Milliseconds())
	return res
}
