package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/mark3labs/mcp-go/mcp"
)

// QuestionToggleTool handles the quiz_question_toggle MCP tool.
// Flipping a question off is rejected when it would leave a block type
// with no active question.
type QuestionToggleTool struct {
	bank QuestionBank
}

// NewQuestionToggleTool creates a QuestionToggleTool over bank.
func NewQuestionToggleTool(bank QuestionBank) *QuestionToggleTool {
	return &QuestionToggleTool{bank: bank}
}

// Definition returns the MCP tool definition for registration.
func (t *QuestionToggleTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_question_toggle",
		mcp.WithDescription("Flip a question between active and inactive."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Question id, as shown by quiz_questions_list"),
		),
	)
}

// Handle processes the quiz_question_toggle tool call.
func (t *QuestionToggleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	q, verrs, err := t.bank.ToggleActive(ctx, id)
	if errors.Is(err, questions.ErrQuestionNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Question %q not found.", id)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggling question %s: %w", id, err)
	}
	if len(verrs) > 0 {
		return mcp.NewToolResultError("Toggle rejected, the bank would become invalid:\n\n" + validationList(verrs)), nil
	}

	state := "inactive"
	if q.IsActive {
		state = "active"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Question `%s` is now **%s**.", q.ID, state)), nil
}
