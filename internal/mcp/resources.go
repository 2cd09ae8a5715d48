// ABOUTME: MCP resource implementations for biomarker entries.
// ABOUTME: Provides biomarkers://recent, biomarkers://today, and biomarkers://names resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/biomarkers/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	RecentURI = "biomarkers://recent"
	TodayURI  = "biomarkers://today"
	NamesURI  = "biomarkers://names"
)

// recentCount is how many entries biomarkers://recent returns.
const recentCount = 7

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         RecentURI,
		Name:        "Recent Entries",
		Description: "The last 7 daily entries, newest first",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         TodayURI,
		Name:        "Today's Entry",
		Description: "Today's entry, or a note that nothing has been recorded yet",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         NamesURI,
		Name:        "Biomarker Names",
		Description: "Every biomarker with its label and score range",
		MIMEType:    "application/json",
	}, s.handleNamesResource)
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	recent := []entryView{}
	for i := len(entries) - 1; i >= 0 && len(recent) < recentCount; i-- {
		recent = append(recent, toView(entries[i]))
	}

	return jsonResource(RecentURI, map[string]any{
		"entries": recent,
		"total":   len(entries),
	})
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	today := s.today()
	e, err := s.repo.FindByDate(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to find today's entry: %w", err)
	}

	result := map[string]any{
		"date":     today.String(),
		"recorded": e != nil,
	}
	if e != nil {
		result["entry"] = toView(e)
	}
	return jsonResource(TodayURI, result)
}

func (s *Server) handleNamesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	names := make([]map[string]any, 0, len(models.AllBiomarkers))
	for _, b := range models.AllBiomarkers {
		names = append(names, map[string]any{
			"name":  string(b),
			"label": b.Label(),
			"min":   models.MinScore,
			"max":   models.MaxScore,
		})
	}
	return jsonResource(NamesURI, map[string]any{
		"biomarkers": names,
		"defaults":   models.DefaultChartBiomarkers,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
