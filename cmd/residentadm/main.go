// Command residentadm administers the resident registry database: schema,
// accounts, the cutoff date, offline imports and exports, and resets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/residents/internal/core"
	_ "github.com/JonMunkholm/residents/internal/core/sources" // Register import sources
	"github.com/JonMunkholm/residents/internal/database"
	"github.com/JonMunkholm/residents/internal/logging"
	"github.com/JonMunkholm/residents/internal/progress"
)

var (
	databaseURL string
	logLevel    string
)

// systemActor is the admin identity of CLI operations. It has no user id,
// so audit rows it writes carry no user.
var systemActor = core.Actor{Username: "residentadm", Role: core.RoleAdmin}

var rootCmd = &cobra.Command{
	Use:   "residentadm",
	Short: "Administer the resident registry",
	Long: `residentadm runs administrative tasks against the registry database.

The database is taken from --database-url or DATABASE_URL (a .env file in
the working directory is read first).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		migrateCmd,
		seedUsersCmd,
		createUserCmd,
		setPasswordCmd,
		setCutoffCmd,
		importCmd,
		exportCmd,
		maintenanceCmd,
		resetCmd,
	)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// backend is an open database with a service on top.
type backend struct {
	pool     *pgxpool.Pool
	store    *database.Store
	progress *progress.MemoryStore
	service  *core.Service
}

func (b *backend) Close() {
	_ = b.progress.Close()
	b.pool.Close()
}

func openBackend(ctx context.Context) (*backend, error) {
	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("no database: set --database-url or DATABASE_URL")
	}

	pool, err := database.Connect(ctx, database.PoolConfig{URL: url, MaxConns: 4})
	if err != nil {
		return nil, err
	}
	slog.Debug("connected to database")

	store := database.NewStore(pool)
	ps := progress.NewMemoryStore(0)
	return &backend{
		pool:     pool,
		store:    store,
		progress: ps,
		service:  core.NewService(store, ps, core.NewJobLimiter(1, 0), core.Options{}),
	}, nil
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}
