// Package server wires the quiz's MCP components and creates the server
// instance. It is the composition root for the MCP surface: tools, prompts
// and resources receive their dependencies here and nothing else lives here.
package server

import (
	"errors"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/prompts"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/resources"
	"github.com/HendryAvila/divine-quiz/internal/settings"
	"github.com/HendryAvila/divine-quiz/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the services the MCP surface exposes. Analytics is optional;
// without it the analytics tool is not registered.
type Deps struct {
	Questions *questions.Repository
	Settings  *settings.Service
	Analytics *analytics.Recorder
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
func New(deps Deps) (*server.MCPServer, error) {
	if deps.Questions == nil || deps.Settings == nil {
		return nil, errors.New("server: questions and settings are required")
	}

	s := server.NewMCPServer(
		"divine-quiz",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register code & classifier tools ---

	codeTool := tools.NewComputeCodeTool()
	s.AddTool(codeTool.Definition(), codeTool.Handle)

	classifyTool := tools.NewClassifyTool()
	s.AddTool(classifyTool.Definition(), classifyTool.Handle)

	// --- Register question bank tools ---

	listTool := tools.NewQuestionsListTool(deps.Questions)
	s.AddTool(listTool.Definition(), listTool.Handle)

	toggleTool := tools.NewQuestionToggleTool(deps.Questions)
	s.AddTool(toggleTool.Definition(), toggleTool.Handle)

	validateTool := tools.NewQuestionsValidateTool(deps.Questions)
	s.AddTool(validateTool.Definition(), validateTool.Handle)

	restoreTool := tools.NewQuestionsRestoreTool(deps.Questions)
	s.AddTool(restoreTool.Definition(), restoreTool.Handle)

	exportTool := tools.NewQuestionsExportTool(deps.Questions)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	// --- Register analytics tools ---

	if deps.Analytics != nil {
		summaryTool := tools.NewAnalyticsSummaryTool(deps.Analytics)
		s.AddTool(summaryTool.Definition(), summaryTool.Handle)
	}

	// --- Register prompts ---

	reportPrompt := prompts.NewReportPrompt()
	s.AddPrompt(reportPrompt.Definition(), reportPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(deps.Questions, deps.Settings)
	s.AddResource(resourceHandler.ActiveQuestionsResource(), resourceHandler.HandleActiveQuestions)
	s.AddResource(resourceHandler.TransitionsResource(), resourceHandler.HandleTransitions)

	return s, nil
}

// serverInstructions tells the AI what the server is for.
func serverInstructions() string {
	return `You have access to the divine quiz operator tools.

The quiz is a linear funnel: visitors enter a birth date, color, name and
favorite number, receive a three-digit divine code, answer a short quiz
grouped in positive, neutral and negative blocks, and get a diagnosis
before the offer.

## Tools

- quiz_compute_code: derive a code from inputs, without a visitor session
- quiz_classify: see which diagnosis an answer set produces
- quiz_questions_list / quiz_question_toggle: inspect and switch questions
- quiz_questions_validate: check the bank; run it after any change
- quiz_questions_export / quiz_questions_restore: back up or roll back the bank
- quiz_analytics_summary: per-step funnel report

## Rules

- Every block type must keep at least one active question; toggles that
  break this are rejected, so explain the rejection instead of retrying.
- Restore swaps the bank with its backup. Export first if the current
  bank might still be wanted.
- Read quiz://questions/active for the exact quiz visitors see.`
}
