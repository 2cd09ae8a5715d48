// ABOUTME: CLI command for starting the MCP server.
// ABOUTME: Runs a stdio-based MCP server for Claude integration.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/biomarkers/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to read and record your daily entries
through a standardized protocol. The server communicates via stdin/stdout;
logs go to stderr.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "biomarkers": {
        "command": "biomarkers",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  add_entry           Record a day's fourteen scores
  list_entries        List recent entries
  get_entry           Get an entry by ID
  find_entry_by_date  Get the entry for a day
  delete_entry        Delete an entry by ID
  get_series          Chart series for selected biomarkers

AVAILABLE RESOURCES:

  biomarkers://recent   Last 7 entries
  biomarkers://today    Today's entry, if recorded
  biomarkers://names    Biomarker names, labels and score range`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(repo, mcp.WithLocation(loc))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		appLog.Info("mcp server starting", "backend", cfg.GetBackend())
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
