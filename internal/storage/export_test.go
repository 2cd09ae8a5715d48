// ABOUTME: Tests for export and import functionality.
// ABOUTME: Verifies JSON, YAML, and Markdown export formats.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/harperreed/biomarkers/internal/models"
	"gopkg.in/yaml.v3"
)

func seedExport(t *testing.T, repo Repository) {
	t.Helper()
	mustCreate(t, repo, "2024-02-20", 6)
	mustCreate(t, repo, "2024-01-10", 4)
}

func TestExportJSON(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedExport(t, db)

	data, err := ExportJSON(context.Background(), db)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var export ExportData
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if export.Version != ExportVersion {
		t.Errorf("Expected version %s, got %s", ExportVersion, export.Version)
	}
	if export.Tool != "biomarkers" {
		t.Errorf("Expected tool biomarkers, got %s", export.Tool)
	}
	if export.ExportedAt.IsZero() {
		t.Error("Expected exported_at to be set")
	}
	if len(export.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(export.Entries))
	}
	if export.Entries[0].Date.String() != "2024-01-10" {
		t.Errorf("Expected entries in date order, first is %s", export.Entries[0].Date)
	}
	if !strings.Contains(string(data), `"sexDrive": 4`) {
		t.Errorf("Expected flat biomarker fields in export:\n%s", data)
	}
}

func TestExportYAML(t *testing.T) {
	repo := NewMemoryStore()
	seedExport(t, repo)

	data, err := ExportYAML(context.Background(), repo)
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}

	var parsed struct {
		Version string           `yaml:"version"`
		Tool    string           `yaml:"tool"`
		Entries []map[string]any `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}
	if parsed.Version != ExportVersion || parsed.Tool != "biomarkers" {
		t.Errorf("unexpected header: %+v", parsed)
	}
	if len(parsed.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(parsed.Entries))
	}
	if parsed.Entries[0]["date"] != "2024-01-10" {
		t.Errorf("first date = %v", parsed.Entries[0]["date"])
	}
	if parsed.Entries[1]["mood"] != 6 {
		t.Errorf("second mood = %v", parsed.Entries[1]["mood"])
	}

	// Fields keep canonical order.
	s := string(data)
	if strings.Index(s, "sleep:") > strings.Index(s, "inspiration:") {
		t.Errorf("biomarkers out of order:\n%s", s)
	}
}

func TestExportMarkdown(t *testing.T) {
	repo := NewMemoryStore()
	seedExport(t, repo)

	md, err := ExportMarkdown(context.Background(), repo, nil, models.CalendarDay{})
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}

	if !strings.Contains(md, "# Biomarkers Export") {
		t.Error("Expected title in markdown")
	}
	if !strings.Contains(md, "| Date | Sleep | Sex Drive |") {
		t.Errorf("Expected header row with every label:\n%s", md)
	}
	if !strings.Contains(md, "| 2024-01-10 | 4 |") {
		t.Errorf("Expected row for 2024-01-10:\n%s", md)
	}
	if strings.Index(md, "2024-01-10") > strings.Index(md, "2024-02-20") {
		t.Error("Expected rows in date order")
	}
}

func TestExportMarkdownWithSinceAndNames(t *testing.T) {
	repo := NewMemoryStore()
	seedExport(t, repo)

	names := []models.Biomarker{models.BiomarkerMood}
	md, err := ExportMarkdown(context.Background(), repo, names, models.MustParseDay("2024-02-01"))
	if err != nil {
		t.Fatalf("ExportMarkdown failed: %v", err)
	}

	if strings.Contains(md, "2024-01-10") {
		t.Error("Expected entries before since to be excluded")
	}
	if !strings.Contains(md, "| Date | Mood |\n") {
		t.Errorf("Expected single Mood column:\n%s", md)
	}
	if !strings.Contains(md, "| 2024-02-20 | 6 |\n") {
		t.Errorf("Expected 2024-02-20 row:\n%s", md)
	}
}

func TestImportJSON(t *testing.T) {
	src := NewMemoryStore()
	seedExport(t, src)
	data, err := ExportJSON(context.Background(), src)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	dst := setupTestDB(t)
	defer dst.Close()

	n, err := ImportJSON(context.Background(), dst, data)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 imported, got %d", n)
	}

	got, err := dst.FindByDate(context.Background(), models.MustParseDay("2024-02-20"))
	if err != nil || got == nil {
		t.Fatalf("FindByDate = %v, %v", got, err)
	}
	if got.ID != 1 || got.Score(models.BiomarkerEnergy) != 6 {
		t.Errorf("imported entry mismatch: %+v", got)
	}

	// Importing the same export again conflicts.
	if _, err := ImportJSON(context.Background(), dst, data); !errors.Is(err, ErrDuplicateID) && !errors.Is(err, ErrDuplicateDate) {
		t.Errorf("Expected duplicate error on re-import, got %v", err)
	}
}

func TestImportJSONBareArray(t *testing.T) {
	repo := NewMemoryStore()
	e := &models.Entry{ID: 3, Date: models.MustParseDay("2024-03-03"), Measurements: models.UniformMeasurements(7)}
	data, _ := json.Marshal([]*models.Entry{e})

	n, err := ImportJSON(context.Background(), repo, data)
	if err != nil || n != 1 {
		t.Fatalf("ImportJSON = %d, %v", n, err)
	}
}

func TestImportJSONRejectsBadInput(t *testing.T) {
	repo := NewMemoryStore()

	if _, err := ImportJSON(context.Background(), repo, []byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if _, err := ImportJSON(context.Background(), repo, []byte(`{"version":"9.9","entries":[]}`)); err == nil {
		t.Error("Expected error for unknown version")
	}
	incomplete := `{"version":"1.0","entries":[{"id":1,"date":"2024-01-01","sleep":5}]}`
	if _, err := ImportJSON(context.Background(), repo, []byte(incomplete)); err == nil {
		t.Error("Expected error for entry missing biomarkers")
	}
}
