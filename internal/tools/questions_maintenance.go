package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ─── quiz_questions_validate ─────────────────────────────────────────────────

// QuestionsValidateTool handles the quiz_questions_validate MCP tool.
type QuestionsValidateTool struct {
	bank QuestionBank
}

// NewQuestionsValidateTool creates a QuestionsValidateTool over bank.
func NewQuestionsValidateTool(bank QuestionBank) *QuestionsValidateTool {
	return &QuestionsValidateTool{bank: bank}
}

// Definition returns the MCP tool definition for registration.
func (t *QuestionsValidateTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_questions_validate",
		mcp.WithDescription(
			"Run the full validator over the stored question bank and list every problem found.",
		),
	)
}

// Handle processes the quiz_questions_validate tool call.
func (t *QuestionsValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	verrs := t.bank.Validate(ctx)
	if len(verrs) == 0 {
		return mcp.NewToolResultText("✅ The question bank is valid."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("❌ %d problem(s) found:\n\n%s", len(verrs), validationList(verrs))), nil
}

// ─── quiz_questions_restore ──────────────────────────────────────────────────

// QuestionsRestoreTool handles the quiz_questions_restore MCP tool.
type QuestionsRestoreTool struct {
	bank QuestionBank
}

// NewQuestionsRestoreTool creates a QuestionsRestoreTool over bank.
func NewQuestionsRestoreTool(bank QuestionBank) *QuestionsRestoreTool {
	return &QuestionsRestoreTool{bank: bank}
}

// Definition returns the MCP tool definition for registration.
func (t *QuestionsRestoreTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_questions_restore",
		mcp.WithDescription(
			"Restore the question bank from its backup slot. The current bank becomes the new backup.",
		),
	)
}

// Handle processes the quiz_questions_restore tool call.
func (t *QuestionsRestoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ok, err := t.bank.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring questions: %w", err)
	}
	if !ok {
		return mcp.NewToolResultError("No backup available."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Restored %d question(s) from backup.", len(t.bank.Questions(ctx)))), nil
}

// ─── quiz_questions_export ───────────────────────────────────────────────────

// QuestionsExportTool handles the quiz_questions_export MCP tool.
type QuestionsExportTool struct {
	bank QuestionBank
}

// NewQuestionsExportTool creates a QuestionsExportTool over bank.
func NewQuestionsExportTool(bank QuestionBank) *QuestionsExportTool {
	return &QuestionsExportTool{bank: bank}
}

// Definition returns the MCP tool definition for registration.
func (t *QuestionsExportTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_questions_export",
		mcp.WithDescription(
			"Export the question bank as the JSON document the admin import accepts.",
		),
	)
}

// Handle processes the quiz_questions_export tool call.
func (t *QuestionsExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := t.bank.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting questions: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
