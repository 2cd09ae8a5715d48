// ABOUTME: CLI command for copying entries between storage backends.
// ABOUTME: Migrates from the configured backend into another, keeping entry IDs.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/config"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateTo      string
	migrateToDir   string
	migrateToDSN   string
	migrateToRedis string
	migrateDryRun  bool
	migrateForce   bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy entries to another storage backend",
	Long: `Copy every entry from the current backend into another one.

The source is whatever --backend/--data-dir (or the config file) selects.
The destination is given with --to and, for file backends, --to-data-dir
(default: the same data directory). Entry IDs are preserved, so the
destination must not already hold any of the same IDs or days.

USAGE:

  biomarkers migrate --to markdown --dry-run   # Preview
  biomarkers migrate --to markdown             # sqlite -> markdown files
  biomarkers --backend badger migrate --to sqlite --to-data-dir ~/bk
  biomarkers migrate --to postgres --to-postgres-dsn postgres://localhost/bio

AFTER MIGRATION:

  Point "backend" in ~/.config/biomarkers/config.json at the new backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		dst := *cfg
		dst.Backend = migrateTo
		if migrateToDir != "" {
			dst.DataDir = migrateToDir
		}
		if migrateToDSN != "" {
			dst.PostgresDSN = migrateToDSN
		}
		if migrateToRedis != "" {
			dst.RedisAddr = migrateToRedis
		}
		if err := dst.Validate(); err != nil {
			return err
		}
		if dst.GetBackend() == cfg.GetBackend() && dst.StoragePath() == cfg.StoragePath() &&
			dst.PostgresDSN == cfg.PostgresDSN && dst.RedisAddr == cfg.RedisAddr {
			return fmt.Errorf("source and destination are the same %s store", dst.GetBackend())
		}

		if path := dst.StoragePath(); path != "" && !migrateForce {
			inUse, err := pathInUse(path)
			if err != nil {
				return err
			}
			if inUse {
				return fmt.Errorf("destination %s already has data (use --force to merge into it)", path)
			}
		}

		entries, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if migrateDryRun {
			color.New(color.FgYellow).Fprintln(out, "Dry run mode - no changes will be made")
			fmt.Fprintf(out, "Would copy %d entries from %s to %s\n", len(entries), cfg.GetBackend(), dst.GetBackend())
			return nil
		}

		target, err := dst.OpenStorage(ctx)
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", dst.GetBackend(), err)
		}
		defer target.Close()

		summary, err := storage.MigrateData(ctx, repo, target)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		appLog.Info("migration complete", "from", cfg.GetBackend(), "to", dst.GetBackend(), "entries", summary.Entries)
		fmt.Fprintln(out, color.GreenString("✓ Migrated %d entries from %s to %s", summary.Entries, cfg.GetBackend(), dst.GetBackend()))
		if p := dst.StoragePath(); p != "" {
			fmt.Fprintf(out, "  %s\n", color.New(color.Faint).Sprint(p))
		}
		return nil
	},
}

// pathInUse reports whether a backend path already holds data: an existing
// file, or a non-empty directory.
func pathInUse(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return true, nil
	}
	return storage.IsDirNonEmpty(path)
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "destination backend ("+strings.Join(config.Backends, ", ")+")")
	migrateCmd.Flags().StringVar(&migrateToDir, "to-data-dir", "", "destination data directory")
	migrateCmd.Flags().StringVar(&migrateToDSN, "to-postgres-dsn", "", "destination Postgres connection string")
	migrateCmd.Flags().StringVar(&migrateToRedis, "to-redis-addr", "", "destination Redis address")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "write into a destination that already has data")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
