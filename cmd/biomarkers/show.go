// ABOUTME: CLI command for showing one entry in detail.
// ABOUTME: Accepts an entry ID or a date and prints every score with a bar.
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id|date>",
	Short: "Show an entry",
	Long: `Show one entry by ID or by date.

EXAMPLES:

  biomarkers show 12
  biomarkers show 2024-06-01
  biomarkers show today`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := lookupEntry(cmd, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint(e.Date), color.New(color.Faint).Sprintf("#%d", e.ID))
		for _, b := range models.AllBiomarkers {
			v := e.Score(b)
			fmt.Fprintf(out, "  %s %2d %s\n", padRight(b.Label(), 18), v, scoreBar(v))
		}
		return nil
	},
}

// lookupEntry resolves an id, a date, or "today".
func lookupEntry(cmd *cobra.Command, arg string) (*models.Entry, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		e, err := repo.Get(cmd.Context(), id)
		if err != nil {
			return nil, fmt.Errorf("failed to get entry: %w", err)
		}
		if e == nil {
			return nil, fmt.Errorf("%w: %d", storage.ErrNotFound, id)
		}
		return e, nil
	}

	day := models.Today(loc)
	if arg != "today" {
		d, err := models.ParseDay(arg, loc)
		if err != nil {
			return nil, fmt.Errorf("expected an entry ID or date, got %q", arg)
		}
		day = d
	}
	e, err := repo.FindByDate(cmd.Context(), day)
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w for %s", storage.ErrNotFound, day)
	}
	return e, nil
}

// scoreBar draws v out of MaxScore, colored by how good the score is.
func scoreBar(v int) string {
	bar := strings.Repeat("█", v) + strings.Repeat("·", models.MaxScore-v)
	switch {
	case v >= 7:
		return color.GreenString(bar)
	case v >= 4:
		return color.YellowString(bar)
	default:
		return color.RedString(bar)
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
}
