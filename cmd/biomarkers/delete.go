// ABOUTME: CLI command for deleting an entry.
// ABOUTME: Deletes by numeric ID after confirming the entry exists.
package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete an entry",
	Long: `Delete an entry by its ID.

The ID is shown in the first column of 'biomarkers list' output. Once an
entry is deleted its day is free again, but its ID is never reused.

EXAMPLES:

  biomarkers delete 12
  biomarkers rm 12

CAUTION:

  This permanently deletes the entry. There is no undo.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		e, err := repo.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}
		if e == nil {
			return fmt.Errorf("%w: %d", storage.ErrNotFound, id)
		}

		if err := repo.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.YellowString("✗ Deleted entry for %s", e.Date))
		fmt.Fprintf(out, "  %s\n", color.New(color.Faint).Sprintf("#%d", e.ID))
		return nil
	},
}

// parseID accepts positive decimal integers only.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID: %q", s)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
