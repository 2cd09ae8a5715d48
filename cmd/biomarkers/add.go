// ABOUTME: CLI command for adding a day's biomarker entry.
// ABOUTME: Parses name=score pairs, fills gaps from --all, and rejects duplicate days.
package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/spf13/cobra"
)

var (
	addDate string
	addAll  int
)

var addCmd = &cobra.Command{
	Use:     "add [name=score ...]",
	Aliases: []string{"a"},
	Short:   "Add a day's entry",
	Long: `Add the entry for one day. Every biomarker needs a score from 1 to 10;
give them as name=score pairs, and use --all to fill the ones you leave out.

Only one entry is allowed per day. The day defaults to today and may not be
in the future.

Examples:
  biomarkers add --all 5
  biomarkers add --all 6 sleep=8 mood=7 energy=4
  biomarkers add --date 2024-06-01 --all 5 gas=2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		today := models.Today(loc)
		day := today
		if addDate != "" {
			d, err := models.ParseDay(addDate, loc)
			if err != nil {
				return fmt.Errorf("invalid date: %s", addDate)
			}
			day = d
		}

		m, err := parseScores(args, addAll)
		if err != nil {
			return err
		}
		if err := models.ValidateEntry(day, m, today); err != nil {
			return err
		}

		e, err := repo.Create(cmd.Context(), day, m)
		if errors.Is(err, storage.ErrDuplicateDate) {
			return fmt.Errorf("an entry already exists for %s", day)
		}
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, color.GreenString("✓ Added entry for %s", e.Date))
		fmt.Fprintf(out, "  %s %s\n", color.New(color.Faint).Sprintf("#%d", e.ID), formatScores(e))
		return nil
	},
}

// parseScores reads name=score pairs. Biomarkers not named get fill; a fill
// of 0 leaves them missing so validation reports them.
func parseScores(args []string, fill int) (models.Measurements, error) {
	m := make(models.Measurements, len(models.AllBiomarkers))
	if fill != 0 {
		for _, b := range models.AllBiomarkers {
			m[b] = fill
		}
	}

	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=score, got %q", arg)
		}
		name = strings.TrimSpace(name)
		if !models.IsValidBiomarker(name) {
			return nil, fmt.Errorf("unknown biomarker: %s", name)
		}
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		m[models.Biomarker(name)] = v
	}
	return m, nil
}

// formatScores renders name=score pairs in canonical order.
func formatScores(e *models.Entry) string {
	parts := make([]string, 0, len(models.AllBiomarkers))
	for _, b := range models.AllBiomarkers {
		parts = append(parts, fmt.Sprintf("%s=%d", b, e.Score(b)))
	}
	return strings.Join(parts, " ")
}

func init() {
	addCmd.Flags().StringVar(&addDate, "date", "", "day of the entry (YYYY-MM-DD, default today)")
	addCmd.Flags().IntVar(&addAll, "all", 0, "score for every biomarker not given explicitly")
	rootCmd.AddCommand(addCmd)
}
