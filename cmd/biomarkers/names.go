// ABOUTME: CLI command listing biomarker names and labels.
// ABOUTME: Runs without opening storage.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/biomarkers/internal/models"
	"github.com/spf13/cobra"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "List biomarker names",
	Long: `List every biomarker name accepted by add, list --names and export --names,
with its display label. Scores are integers from 1 to 10.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		faint := color.New(color.Faint)
		for _, b := range models.AllBiomarkers {
			fmt.Fprintf(out, "%s %s\n", padRight(string(b), 18), faint.Sprint(b.Label()))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(namesCmd)
}
