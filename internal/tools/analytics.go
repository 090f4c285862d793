package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// AnalyticsSummaryTool handles the quiz_analytics_summary MCP tool.
type AnalyticsSummaryTool struct {
	source AnalyticsSource
}

// NewAnalyticsSummaryTool creates an AnalyticsSummaryTool over source.
func NewAnalyticsSummaryTool(source AnalyticsSource) *AnalyticsSummaryTool {
	return &AnalyticsSummaryTool{source: source}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyticsSummaryTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_analytics_summary",
		mcp.WithDescription(
			"Show the funnel report: lead totals, overall conversion and per-step "+
				"visits, completions, abandonments and average time spent.",
		),
	)
}

// Handle processes the quiz_analytics_summary tool call.
func (t *AnalyticsSummaryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := t.source.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading analytics: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Funnel Analytics\n\n")
	fmt.Fprintf(&sb, "**Leads:** %d\n", sum.TotalLeads)
	fmt.Fprintf(&sb, "**Completed:** %d\n", sum.CompletedFunnels)
	fmt.Fprintf(&sb, "**Conversion:** %.1f%%\n", sum.OverallConversionRate)
	fmt.Fprintf(&sb, "**Updated:** %s\n\n", sum.LastUpdated.Format("2006-01-02 15:04:05"))

	sb.WriteString("| # | Step | Visits | Completions | Abandonments | Conversion | Abandonment | Avg time (s) |\n")
	sb.WriteString("|---|------|--------|-------------|--------------|------------|-------------|--------------|\n")
	for _, s := range sum.StepAnalytics {
		fmt.Fprintf(&sb, "| %d | %s | %d | %d | %d | %.1f%% | %.1f%% | %.1f |\n",
			s.StepNumber, s.StepName, s.TotalVisits, s.Completions, s.Abandonments,
			s.ConversionRate, s.AbandonmentRate, s.AverageTimeSpent)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
