// ABOUTME: MCP tool implementations for biomarker entries.
// ABOUTME: Provides add, list, lookup, delete and chart series operations.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/harperreed/biomarkers/internal/models"
	"github.com/harperreed/biomarkers/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultListLimit caps list_entries when no limit is given.
const defaultListLimit = 30

func (s *Server) registerTools() {
	// add_entry
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_entry",
		Description: "Record one day's biomarker scores (all fourteen, each 1-10). Only one entry per day is allowed.",
	}, s.handleAddEntry)

	// list_entries
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_entries",
		Description: "List recent entries, newest first, optionally only those on or after a date",
	}, s.handleListEntries)

	// get_entry
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_entry",
		Description: "Get an entry by ID",
	}, s.handleGetEntry)

	// find_entry_by_date
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_entry_by_date",
		Description: "Get the entry recorded for a calendar day",
	}, s.handleFindEntryByDate)

	// delete_entry
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_entry",
		Description: "Delete an entry by ID",
	}, s.handleDeleteEntry)

	// get_series
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_series",
		Description: "Get the chronological history of selected biomarkers (default sleep, mood, energy)",
	}, s.handleGetSeries)
}

// Tool input/output types

type addEntryInput struct {
	Date   string         `json:"date,omitempty" jsonschema:"Calendar day (YYYY-MM-DD); defaults to today and may not be in the future"`
	Scores map[string]int `json:"scores" jsonschema:"Score 1-10 for every biomarker: sleep, sexDrive, bloating, gas, dailyPoop, overallDigestion, strength, stamina, articulation, mood, energy, mindSharpness, creativity, inspiration"`
}

type entryView struct {
	ID     int64          `json:"id"`
	Date   string         `json:"date"`
	Scores map[string]int `json:"scores"`
}

type entryOutput struct {
	Entry   entryView `json:"entry"`
	Message string    `json:"message"`
}

type listEntriesInput struct {
	Since string `json:"since,omitempty" jsonschema:"Only entries on or after this day (YYYY-MM-DD)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 30)"`
}

type listOutput struct {
	Entries []entryView `json:"entries"`
	Count   int         `json:"count"`
	Total   int         `json:"total"`
}

type idInput struct {
	ID int64 `json:"id" jsonschema:"Entry ID"`
}

type dateInput struct {
	Date string `json:"date" jsonschema:"Calendar day (YYYY-MM-DD)"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type getSeriesInput struct {
	Names []string `json:"names,omitempty" jsonschema:"Biomarker names; empty means sleep, mood and energy"`
	Since string   `json:"since,omitempty" jsonschema:"Only points on or after this day (YYYY-MM-DD)"`
}

type pointView struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

type seriesView struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Points []pointView `json:"points"`
}

type seriesOutput struct {
	Series []seriesView `json:"series"`
}

func toView(e *models.Entry) entryView {
	scores := make(map[string]int, len(e.Measurements))
	for b, v := range e.Measurements {
		scores[string(b)] = v
	}
	return entryView{ID: e.ID, Date: e.Date.String(), Scores: scores}
}

func (s *Server) today() models.CalendarDay {
	return models.TodayAt(s.now(), s.loc)
}

// parseOptionalDay parses s, returning the zero day for an empty string.
func (s *Server) parseOptionalDay(field, v string) (models.CalendarDay, error) {
	if strings.TrimSpace(v) == "" {
		return models.CalendarDay{}, nil
	}
	day, err := models.ParseDay(v, s.loc)
	if err != nil {
		return models.CalendarDay{}, fmt.Errorf("invalid %s: %q", field, v)
	}
	return day, nil
}

// Tool handlers

func (s *Server) handleAddEntry(ctx context.Context, req *mcp.CallToolRequest, input addEntryInput) (*mcp.CallToolResult, entryOutput, error) {
	today := s.today()
	day := today
	if input.Date != "" {
		d, err := models.ParseDay(input.Date, s.loc)
		if err != nil {
			return nil, entryOutput{}, fmt.Errorf("invalid date: %q", input.Date)
		}
		day = d
	}

	m, err := models.ParseMeasurements(input.Scores)
	if err != nil {
		return nil, entryOutput{}, err
	}
	if err := models.ValidateEntry(day, m, today); err != nil {
		return nil, entryOutput{}, err
	}

	e, err := s.repo.Create(ctx, day, m)
	if errors.Is(err, storage.ErrDuplicateDate) {
		return nil, entryOutput{}, fmt.Errorf("an entry already exists for %s", day)
	}
	if err != nil {
		return nil, entryOutput{}, fmt.Errorf("failed to create entry: %w", err)
	}

	return nil, entryOutput{
		Entry:   toView(e),
		Message: fmt.Sprintf("Added entry for %s (ID: %d)", e.Date, e.ID),
	}, nil
}

func (s *Server) handleListEntries(ctx context.Context, req *mcp.CallToolRequest, input listEntriesInput) (*mcp.CallToolResult, listOutput, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	since, err := s.parseOptionalDay("since", input.Since)
	if err != nil {
		return nil, listOutput{}, err
	}

	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, listOutput{}, fmt.Errorf("failed to list entries: %w", err)
	}

	out := listOutput{Entries: []entryView{}, Total: len(entries)}
	for i := len(entries) - 1; i >= 0 && len(out.Entries) < input.Limit; i-- {
		if entries[i].Date.Before(since) {
			break
		}
		out.Entries = append(out.Entries, toView(entries[i]))
	}
	out.Count = len(out.Entries)
	return nil, out, nil
}

func (s *Server) handleGetEntry(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, entryOutput, error) {
	e, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return nil, entryOutput{}, fmt.Errorf("failed to get entry: %w", err)
	}
	if e == nil {
		return nil, entryOutput{}, fmt.Errorf("%w: %d", storage.ErrNotFound, input.ID)
	}
	return nil, entryOutput{Entry: toView(e), Message: fmt.Sprintf("Entry %d for %s", e.ID, e.Date)}, nil
}

func (s *Server) handleFindEntryByDate(ctx context.Context, req *mcp.CallToolRequest, input dateInput) (*mcp.CallToolResult, entryOutput, error) {
	day, err := models.ParseDay(input.Date, s.loc)
	if err != nil {
		return nil, entryOutput{}, fmt.Errorf("invalid date: %q", input.Date)
	}
	e, err := s.repo.FindByDate(ctx, day)
	if err != nil {
		return nil, entryOutput{}, fmt.Errorf("failed to find entry: %w", err)
	}
	if e == nil {
		return nil, entryOutput{}, fmt.Errorf("%w for %s", storage.ErrNotFound, day)
	}
	return nil, entryOutput{Entry: toView(e), Message: fmt.Sprintf("Entry %d for %s", e.ID, e.Date)}, nil
}

func (s *Server) handleDeleteEntry(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	e, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to get entry: %w", err)
	}
	if e == nil {
		return nil, simpleOutput{}, fmt.Errorf("%w: %d", storage.ErrNotFound, input.ID)
	}
	if err := s.repo.Delete(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete entry: %w", err)
	}

	return nil, simpleOutput{
		Message: fmt.Sprintf("Deleted entry %d for %s", e.ID, e.Date),
	}, nil
}

func (s *Server) handleGetSeries(ctx context.Context, req *mcp.CallToolRequest, input getSeriesInput) (*mcp.CallToolResult, seriesOutput, error) {
	names, err := models.ParseBiomarkers(strings.Join(input.Names, ","))
	if err != nil {
		return nil, seriesOutput{}, err
	}
	since, err := s.parseOptionalDay("since", input.Since)
	if err != nil {
		return nil, seriesOutput{}, err
	}

	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, seriesOutput{}, fmt.Errorf("failed to list entries: %w", err)
	}
	start := sort.Search(len(entries), func(i int) bool { return !entries[i].Date.Before(since) })

	out := seriesOutput{Series: make([]seriesView, 0, len(names))}
	for _, series := range models.BuildSeries(entries[start:], names) {
		v := seriesView{Name: string(series.Name), Label: series.Label, Points: make([]pointView, 0, len(series.Points))}
		for _, p := range series.Points {
			v.Points = append(v.Points, pointView{Date: p.Date.String(), Value: p.Value})
		}
		out.Series = append(out.Series, v)
	}
	return nil, out, nil
}
