package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/residents/internal/admin"
	"github.com/JonMunkholm/residents/internal/core"
	"github.com/JonMunkholm/residents/internal/database"
)

var (
	importMode        string
	importHealth      string
	importDemographic string

	exportFormat      string
	exportOut         string
	exportMandal      string
	exportSecretariat string
	exportUnmasked    bool

	cutoffClear bool

	maintenanceRetention time.Duration

	resetAll     bool
	resetConfirm bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import health and demographic files",
	Long: `Merges a health file and a demographic file on resident_id and writes the
result using the chosen mode (add, update or upsert). Either file may be
omitted. CSV and XLSX are accepted.`,
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export residents to CSV or XLSX",
	RunE:  runExport,
}

var setCutoffCmd = &cobra.Command{
	Use:   "set-cutoff [YYYY-MM-DD]",
	Short: "Set or clear the update cutoff date",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSetCutoff,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Fail stale import runs and purge old import logs",
	RunE:  runMaintenance,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete residents, update logs and import logs",
	Long: `Deletes all resident data and import history. With --all the system
settings are cleared as well. User accounts are kept.`,
	RunE: runReset,
}

func init() {
	importCmd.Flags().StringVar(&importMode, "mode", core.ModeUpsert, "write mode: add, update, upsert")
	importCmd.Flags().StringVar(&importHealth, "health", "", "health file (.csv or .xlsx)")
	importCmd.Flags().StringVar(&importDemographic, "demographic", "", "demographic file (.csv or .xlsx)")

	exportCmd.Flags().StringVar(&exportFormat, "format", core.FormatCSV, "csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default residents_<time>.<format>)")
	exportCmd.Flags().StringVar(&exportMandal, "mandal", "", "only this mandal")
	exportCmd.Flags().StringVar(&exportSecretariat, "secretariat", "", "only this secretariat")
	exportCmd.Flags().BoolVar(&exportUnmasked, "unmasked", false, "write full UIDs")

	setCutoffCmd.Flags().BoolVar(&cutoffClear, "clear", false, "remove the cutoff date")

	maintenanceCmd.Flags().DurationVar(&maintenanceRetention, "retention", 0, "keep finished import logs this long (default 90 days)")

	resetCmd.Flags().BoolVar(&resetAll, "all", false, "also clear system settings")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm deletion")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		if err := database.Migrate(ctx, b.pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	})
}

func openImportFile(path string) (*core.ImportFile, io.Closer, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &core.ImportFile{Name: filepath.Base(path), Reader: f}, f, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if importHealth == "" && importDemographic == "" {
		return fmt.Errorf("nothing to import: pass --health and/or --demographic")
	}

	req := core.ImportRequest{Mode: importMode}
	for _, in := range []struct {
		path string
		dst  **core.ImportFile
	}{
		{importHealth, &req.Health},
		{importDemographic, &req.Demographic},
	} {
		file, closer, err := openImportFile(in.path)
		if err != nil {
			return err
		}
		if closer != nil {
			defer closer.Close()
		}
		*in.dst = file
	}

	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		res, err := b.service.Import(ctx, systemActor, req)
		if res != nil {
			printImportResult(cmd.OutOrStdout(), res)
		}
		return err
	})
}

func printImportResult(w io.Writer, res *core.ImportResult) {
	fmt.Fprintf(w, "mode %s: %d records, %d inserted, %d updated, %d skipped, %d failed, %d duplicates (%dms)\n",
		res.Mode, res.Total, res.Inserted, res.Updated, res.Skipped, res.Failed, res.Duplicates, res.DurationMs)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if res.ErrorsTruncated {
		fmt.Fprintln(w, "  (further errors omitted)")
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(exportFormat)
	if format != core.FormatCSV && format != core.FormatXLSX {
		return fmt.Errorf("unknown format %q (want csv or xlsx)", exportFormat)
	}

	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		job, err := b.service.PrepareExport(ctx, systemActor, core.ExportRequest{
			Format:   format,
			Unmasked: exportUnmasked,
			Filter: database.ResidentFilter{
				Mandal:      exportMandal,
				Secretariat: exportSecretariat,
			},
		})
		if err != nil {
			return err
		}

		path := exportOut
		if path == "" {
			path = job.Filename()
		}
		f, err := os.Create(path)
		if err != nil {
			job.Cancel(ctx, "could not create output file")
			return err
		}
		defer f.Close()

		n, err := job.Run(ctx, f)
		if err != nil {
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d residents to %s\n", n, path)
		return nil
	})
}

// cutoffArg resolves the set-cutoff arguments to a date, or nil to clear.
func cutoffArg(args []string, clearDate bool) (*time.Time, error) {
	switch {
	case clearDate && len(args) > 0:
		return nil, fmt.Errorf("pass a date or --clear, not both")
	case clearDate:
		return nil, nil
	case len(args) == 0:
		return nil, fmt.Errorf("missing date (YYYY-MM-DD) or --clear")
	}
	return core.ParseCutoff(args[0])
}

func runSetCutoff(cmd *cobra.Command, args []string) error {
	date, err := cutoffArg(args, cutoffClear)
	if err != nil {
		return err
	}
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		if err := b.service.SetCutoffDate(ctx, systemActor, date); err != nil {
			return err
		}
		if date == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "cutoff date cleared")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "cutoff date set to %s\n", date.Format(core.CutoffLayout))
		}
		return nil
	})
}

func runMaintenance(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		res := b.service.RunMaintenance(ctx, core.MaintenanceConfig{Retention: maintenanceRetention})
		fmt.Fprintf(cmd.OutOrStdout(), "%d stale imports failed, %d old import logs purged\n", res.Failed, res.Purged)
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return fmt.Errorf("refusing to delete data without --yes")
	}
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		r := admin.ResetDbs{DB: b.store.Queries}
		var err error
		if resetAll {
			err = r.ResetAll(ctx)
		} else {
			err = r.ResetData(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "data reset")
		return nil
	})
}
