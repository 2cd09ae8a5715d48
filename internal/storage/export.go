// ABOUTME: Export and import functionality for biomarker entries.
// ABOUTME: Supports JSON, YAML, and Markdown export formats over any Repository.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/biomarkers/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is written into every export and checked on import.
const ExportVersion = "1.0"

// ExportData represents the full export format for biomarker entries.
type ExportData struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Tool       string          `json:"tool"`
	Entries    []*models.Entry `json:"entries"`
}

// GetAllData retrieves all entries for export.
func GetAllData(ctx context.Context, repo Repository) (*ExportData, error) {
	entries, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Tool:       "biomarkers",
		Entries:    entries,
	}, nil
}

// ExportJSON exports all entries as indented JSON.
func ExportJSON(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := GetAllData(ctx, repo)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all entries as YAML with fields in canonical order.
func ExportYAML(ctx context.Context, repo Repository) ([]byte, error) {
	data, err := GetAllData(ctx, repo)
	if err != nil {
		return nil, err
	}

	list := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range data.Entries {
		list.Content = append(list.Content, entryNode(e))
	}
	scalar := func(v string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Value: v} }
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("version"), {Kind: yaml.ScalarNode, Tag: "!!str", Value: data.Version},
		scalar("exported_at"), scalar(data.ExportedAt.Format(time.RFC3339)),
		scalar("tool"), scalar(data.Tool),
		scalar("entries"), list,
	}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportMarkdown renders entries on or after since as a table with one
// column per biomarker in names. Empty names selects all biomarkers; a zero
// since selects every entry.
func ExportMarkdown(ctx context.Context, repo Repository, names []models.Biomarker, since models.CalendarDay) (string, error) {
	entries, err := repo.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}
	if len(names) == 0 {
		names = models.AllBiomarkers
	}

	var sb strings.Builder
	now := time.Now()

	sb.WriteString(fmt.Sprintf("# Biomarkers Export - %s\n\n", now.Format(models.DayLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	sb.WriteString("| Date |")
	for _, b := range names {
		sb.WriteString(" " + b.Label() + " |")
	}
	sb.WriteString("\n|------|")
	sb.WriteString(strings.Repeat("---|", len(names)))
	sb.WriteString("\n")

	for _, e := range entries {
		if !since.IsZero() && e.Date.Before(since) {
			continue
		}
		sb.WriteString("| " + e.Date.String() + " |")
		for _, b := range names {
			sb.WriteString(fmt.Sprintf(" %d |", e.Score(b)))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ImportJSON restores entries from an ExportJSON document or from a bare
// JSON array of entries.
func ImportJSON(ctx context.Context, repo Repository, data []byte) (int, error) {
	var entries []*models.Entry

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return 0, fmt.Errorf("unmarshal JSON: %w", err)
		}
	} else {
		var exportData ExportData
		if err := json.Unmarshal(trimmed, &exportData); err != nil {
			return 0, fmt.Errorf("unmarshal JSON: %w", err)
		}
		if exportData.Version != "" && exportData.Version != ExportVersion {
			return 0, fmt.Errorf("unsupported export version %q", exportData.Version)
		}
		entries = exportData.Entries
	}

	if err := repo.Import(ctx, entries); err != nil {
		return 0, fmt.Errorf("import entries: %w", err)
	}
	return len(entries), nil
}
