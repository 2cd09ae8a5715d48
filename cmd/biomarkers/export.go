// ABOUTME: CLI commands for exporting and importing biomarker entries.
// ABOUTME: Supports JSON, YAML, and Markdown export formats and JSON import.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportNames  string
	exportSince  string
)

var exportCmd = &cobra.Command{
	Use:   "export <format>",
	Short: "Export entries",
	Long: `Export entries in various formats.

FORMATS:

  json       Full JSON export (suitable for backup/restore)
  yaml       YAML export (human-readable)
  markdown   Markdown table (for documentation/sharing)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --names        Biomarkers to include as columns (markdown only, default all)
  --since        Only include days on or after this date (markdown only)

EXAMPLES:

  biomarkers export json                          # Export all data as JSON
  biomarkers export json -o backup.json           # Save to file
  biomarkers export yaml                          # Export as YAML
  biomarkers export markdown --names sleep,mood   # Two column table
  biomarkers export markdown --since 2024-01-01   # 2024 onward`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"json", "yaml", "markdown"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := args[0]
		ctx := cmd.Context()

		var data []byte
		var err error

		switch format {
		case "json":
			data, err = storage.ExportJSON(ctx, repo)
		case "yaml":
			data, err = storage.ExportYAML(ctx, repo)
		case "markdown":
			names := models.AllBiomarkers
			if exportNames != "" {
				names, err = models.ParseBiomarkers(exportNames)
				if err != nil {
					return err
				}
			}
			var since models.CalendarDay
			if exportSince != "" {
				since, err = models.ParseDay(exportSince, loc)
				if err != nil {
					return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
				}
			}
			var md string
			md, err = storage.ExportMarkdown(ctx, repo, names, since)
			data = []byte(md)
		default:
			return fmt.Errorf("unknown format: %s (use json, yaml, or markdown)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Fprintln(out, color.GreenString("✓ Exported to %s", exportOutput))
		} else {
			fmt.Fprintln(out, string(data))
		}

		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import entries from JSON",
	Long: `Import entries from a JSON backup file.

Accepts the output of 'biomarkers export json' or a bare array of entries.
Entries keep their IDs. The import is rejected as a whole if any ID or day
already exists.

EXAMPLES:

  biomarkers import backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		n, err := storage.ImportJSON(cmd.Context(), repo, data)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓ Imported %d entries from %s", n, filename))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportNames, "names", "", "biomarkers to include (markdown only)")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "only include days since date (YYYY-MM-DD)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
