// ABOUTME: Column lists and row scanning shared by the SQL backends.
// ABOUTME: Builds DDL and SELECT lists from the canonical biomarker order.
package storage

import (
	"fmt"
	"strings"

	"github.com/harperreed/biomarkers/internal/models"
)

// entriesTable is the table name used by SQLite and Postgres.
const entriesTable = "biomarker_entries"

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// biomarkerColumns returns the score columns in canonical order.
func biomarkerColumns() []string {
	cols := make([]string, len(models.AllBiomarkers))
	for i, b := range models.AllBiomarkers {
		cols[i] = b.Column()
	}
	return cols
}

// selectList returns "id, <dateExpr>, sleep, ..." for SELECT statements.
func selectList(dateExpr string) string {
	return "id, " + dateExpr + ", " + strings.Join(biomarkerColumns(), ", ")
}

// scoreColumnsDDL returns the column definitions for every biomarker,
// each constrained to the score bounds.
func scoreColumnsDDL() string {
	var sb strings.Builder
	for _, col := range biomarkerColumns() {
		fmt.Fprintf(&sb, "\t\t%s INTEGER NOT NULL CHECK (%s BETWEEN %d AND %d),\n",
			col, col, models.MinScore, models.MaxScore)
	}
	return sb.String()
}

// placeholders returns n bind markers produced by mark(i) joined by commas.
func placeholders(n int, mark func(i int) string) string {
	out := make([]string, n)
	for i := range out {
		out[i] = mark(i + 1)
	}
	return strings.Join(out, ", ")
}

// scoreArgs returns the measurement values in column order.
func scoreArgs(m models.Measurements) []any {
	args := make([]any, len(models.AllBiomarkers))
	for i, b := range models.AllBiomarkers {
		args[i] = m[b]
	}
	return args
}

// scanEntry reads one row produced by selectList.
func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		id     int64
		date   string
		scores = make([]int, len(models.AllBiomarkers))
	)
	dest := make([]any, 0, len(scores)+2)
	dest = append(dest, &id, &date)
	for i := range scores {
		dest = append(dest, &scores[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var day models.CalendarDay
	if err := day.UnmarshalText([]byte(date)); err != nil {
		return nil, fmt.Errorf("scan entry %d: %w", id, err)
	}

	m := make(models.Measurements, len(scores))
	for i, b := range models.AllBiomarkers {
		m[b] = scores[i]
	}
	return &models.Entry{ID: id, Date: day, Measurements: m}, nil
}
