package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/config"
	"github.com/JonMunkholm/residents/internal/core"
	_ "github.com/JonMunkholm/residents/internal/core/sources" // Register import sources
	"github.com/JonMunkholm/residents/internal/database"
	"github.com/JonMunkholm/residents/internal/logging"
	"github.com/JonMunkholm/residents/internal/progress"
	"github.com/JonMunkholm/residents/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"progress_backend", cfg.Export.ProgressBackend,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("schema applied")
	}

	progressStore, closeProgress, err := openProgressStore(ctx, cfg.Export)
	if err != nil {
		slog.Error("failed to open progress store", "error", err)
		os.Exit(1)
	}
	defer closeProgress()

	limiter := core.NewJobLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	service := core.NewService(database.NewStore(pool), progressStore, limiter, core.Options{
		ExportBatchSize:  cfg.Export.BatchSize,
		ExportTimeout:    cfg.Export.Timeout,
		ImportErrorLimit: cfg.Import.ErrorLimit,
		ImportTimeout:    cfg.Import.Timeout,
	})

	slog.Info("import sources registered", "count", len(core.All()))

	if cfg.Auth.UsersFile != "" {
		seeds, err := auth.LoadSeedFile(cfg.Auth.UsersFile)
		if err != nil {
			slog.Error("failed to load users file", "path", cfg.Auth.UsersFile, "error", err)
			os.Exit(1)
		}
		created, err := service.SeedUsers(ctx, seeds)
		if err != nil {
			slog.Error("failed to seed users", "error", err)
			os.Exit(1)
		}
		slog.Info("users seeded", "created", created, "in_file", len(seeds))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	server := web.NewServer(service, tokens, cfg)
	defer server.Close()

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartMaintenance(jobCtx, core.MaintenanceConfig{
		Interval:  cfg.Import.MaintenanceInterval,
		Retention: cfg.Import.LogRetention,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active exports and imports to complete (with timeout)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for jobs to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("jobs did not complete in time", "error", err)
			} else {
				slog.Info("all jobs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		return
	}
	cancelJobs()
	slog.Info("server stopped")
}

// openProgressStore returns the configured progress backend and a function
// releasing it.
func openProgressStore(ctx context.Context, cfg config.ExportConfig) (progress.Store, func(), error) {
	if strings.EqualFold(cfg.ProgressBackend, "redis") {
		client, err := progress.NewRedisClient(ctx, progress.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("progress store: redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return progress.NewRedisStore(client, cfg.ProgressTTL), func() { _ = client.Close() }, nil
	}

	store := progress.NewMemoryStore(cfg.ProgressTTL)
	slog.Info("progress store: memory")
	return store, func() { _ = store.Close() }, nil
}
