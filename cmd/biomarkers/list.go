// ABOUTME: CLI command for listing biomarker entries.
// ABOUTME: Shows recent days newest first as a score table.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/spf13/cobra"
)

var (
	listSince string
	listLimit int
	listNames string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List entries",
	Long: `List recent entries, newest first.

OUTPUT FORMAT:

  Each line shows: ID  DATE  one column per biomarker

  Use the ID with 'biomarkers show' or 'biomarkers delete'.

FILTERING:

  --since     only days on or after this date (YYYY-MM-DD)
  --names     comma separated biomarkers to show (default all), e.g.
              sleep,mood,energy

EXAMPLES:

  biomarkers list                         # Last 20 entries
  biomarkers list -n 7 --names sleep,mood # Last week, two columns
  biomarkers list --since 2024-01-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := models.AllBiomarkers
		if listNames != "" {
			parsed, err := models.ParseBiomarkers(listNames)
			if err != nil {
				return err
			}
			names = parsed
		}

		var since models.CalendarDay
		if listSince != "" {
			d, err := models.ParseDay(listSince, loc)
			if err != nil {
				return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", listSince)
			}
			since = d
		}

		entries, err := repo.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		out := cmd.OutOrStdout()
		recent := recentEntries(entries, since, listLimit)
		if len(recent) == 0 {
			fmt.Fprintln(out, "No entries found.")
			return nil
		}

		faint := color.New(color.Faint)
		header := []string{padRight("ID", 6), padRight("DATE", 11)}
		for _, b := range names {
			header = append(header, padRight(truncate(string(b), columnWidth-1), columnWidth))
		}
		fmt.Fprintln(out, faint.Sprint(strings.TrimRight(strings.Join(header, ""), " ")))

		for _, e := range recent {
			row := []string{
				faint.Sprint(padRight(fmt.Sprintf("#%d", e.ID), 6)),
				padRight(e.Date.String(), 11),
			}
			for _, b := range names {
				row = append(row, padRight(fmt.Sprint(e.Score(b)), columnWidth))
			}
			fmt.Fprintln(out, strings.TrimRight(strings.Join(row, ""), " "))
		}

		return nil
	},
}

// columnWidth is the width of each score column in list output.
const columnWidth = 9

// recentEntries returns up to limit entries on or after since, newest
// first. entries must be ascending by date. A limit <= 0 means no limit.
func recentEntries(entries []*models.Entry, since models.CalendarDay, limit int) []*models.Entry {
	var out []*models.Entry
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if entries[i].Date.Before(since) {
			break
		}
		out = append(out, entries[i])
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "only entries on or after date (YYYY-MM-DD)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of results")
	listCmd.Flags().StringVar(&listNames, "names", "", "comma separated biomarkers to show")
	rootCmd.AddCommand(listCmd)
}
