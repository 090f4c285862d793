// Package prompts holds the quiz's MCP prompts.
package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReportPrompt handles the quiz-report MCP prompt.
// It instructs the AI to review funnel health and the question bank.
type ReportPrompt struct{}

// NewReportPrompt creates a ReportPrompt.
func NewReportPrompt() *ReportPrompt {
	return &ReportPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReportPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("quiz-report",
		mcp.WithPromptDescription(
			"Review the quiz funnel: where visitors drop off, how many convert, "+
				"and whether the question bank has problems.",
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Optional area to dig into, e.g. a step name or \"questions\""),
		),
	)
}

// Handle processes the quiz-report prompt request.
func (p *ReportPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := "Please run `quiz_analytics_summary` and `quiz_questions_validate`.\n\n" +
		"Then:\n" +
		"1. Show the funnel as a compact table, highlighting the step with the highest abandonment rate\n" +
		"2. Report the overall conversion rate and how many leads reached the offer\n" +
		"3. List any question bank problems and how to fix them\n" +
		"4. Suggest one concrete change to try next"
	if focus := req.Params.Arguments["focus"]; focus != "" {
		text += "\n\nFocus especially on: " + focus
	}

	return &mcp.GetPromptResult{
		Description: "Quiz Funnel Report",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}
