// ABOUTME: Root Cobra command for the biomarkers CLI.
// ABOUTME: Loads config, sets up logging, and opens storage before each command runs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/harperreed/biomarkers/internal/config"
	"github.com/harperreed/biomarkers/internal/logging"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	repo   storage.Repository
	appLog *logging.Logger
	loc    *time.Location
)

var (
	flagBackend   string
	flagDataDir   string
	flagTimezone  string
	flagLogLevel  string
	flagLogFormat string
)

// noStorage lists commands that run without opening a repository.
var noStorage = map[string]bool{
	"help":          true,
	"completion":    true,
	"names":         true,
	"install-skill": true,
}

var rootCmd = &cobra.Command{
	Use:   "biomarkers",
	Short: "Daily biomarker tracker",
	Long: `Biomarkers records one entry per day with fourteen self-reported scores,
each an integer from 1 to 10.

WHAT IT TRACKS:

  Body        sleep, sexDrive
  Digestion   bloating, gas, dailyPoop, overallDigestion
  Physical    strength, stamina, articulation
  Mind        mood, energy, mindSharpness, creativity, inspiration

QUICK START:

  $ biomarkers add --all 6 sleep=8 mood=7     # Log today, unspecified scores = 6
  $ biomarkers add --date 2024-06-01 --all 5  # Log a past day
  $ biomarkers list                            # Recent entries
  $ biomarkers show 2024-06-01                 # One day in detail
  $ biomarkers serve                           # HTTP API on :5000

STORAGE BACKENDS:

  sqlite (default), badger, markdown, memory, postgres, redis.
  Select with --backend or "backend" in ~/.config/biomarkers/config.json.
  Environment variables BIOMARKERS_BACKEND, BIOMARKERS_DATA_DIR,
  BIOMARKERS_TIMEZONE, BIOMARKERS_LOG_LEVEL, BIOMARKERS_POSTGRES_DSN and
  BIOMARKERS_REDIS_ADDR override the file.

MCP INTEGRATION:

  Run 'biomarkers mcp' to start the Model Context Protocol server for use
  with Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "biomarkers": { "command": "biomarkers", "args": ["mcp"] }
    }
  }`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noStorage[cmd.Name()] {
			return nil
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlags(c)
		if err := c.Validate(); err != nil {
			return err
		}

		level, _ := c.GetLogLevel()
		l, err := logging.Setup(os.Stderr, flagLogFormat, level)
		if err != nil {
			return err
		}

		zone, _ := c.Location()

		r, err := c.OpenStorage(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", c.GetBackend(), err)
		}

		cfg, appLog, loc, repo = c, l, zone, r
		appLog.Debug("storage opened", "backend", c.GetBackend(), "data_dir", c.GetDataDir())
		return nil
	},
}

// closeRepo runs after every Execute, including failed ones, so stores that
// hold file locks are always released.
func closeRepo() {
	if repo == nil {
		return
	}
	if err := repo.Close(); err != nil && appLog != nil {
		appLog.Error("failed to close storage", "err", err)
	}
	repo = nil
}

// applyFlags overrides config values with any persistent flags given.
func applyFlags(c *config.Config) {
	if flagBackend != "" {
		c.Backend = flagBackend
	}
	if flagDataDir != "" {
		c.DataDir = flagDataDir
	}
	if flagTimezone != "" {
		c.Timezone = flagTimezone
	}
	if flagLogLevel != "" {
		c.LogLevel = flagLogLevel
	}
}

func init() {
	cobra.OnFinalize(closeRepo)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBackend, "backend", "", "storage backend (sqlite, badger, markdown, memory, postgres, redis)")
	pf.StringVar(&flagDataDir, "data-dir", "", "data directory (default ~/.local/share/biomarkers)")
	pf.StringVar(&flagTimezone, "timezone", "", "IANA zone deciding which day is today (default system zone)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", logging.FormatJSON, "log format (json, text)")
}
