package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/mark3labs/mcp-go/mcp"
)

// QuestionsListTool handles the quiz_questions_list MCP tool.
type QuestionsListTool struct {
	bank QuestionBank
}

// NewQuestionsListTool creates a QuestionsListTool over bank.
func NewQuestionsListTool(bank QuestionBank) *QuestionsListTool {
	return &QuestionsListTool{bank: bank}
}

// Definition returns the MCP tool definition for registration.
func (t *QuestionsListTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_questions_list",
		mcp.WithDescription(
			"List the question bank. By default every question is shown in stored order; "+
				"with `active_only` only the live quiz is shown, in quiz order.",
		),
		mcp.WithBoolean("active_only",
			mcp.Description("Show only active questions, sorted by order"),
		),
	)
}

// Handle processes the quiz_questions_list tool call.
func (t *QuestionsListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := t.bank.Questions(ctx)
	if boolArg(req, "active_only", false) {
		list = questions.ActiveOf(list)
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("The question bank is empty."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Questions (%d)\n\n", len(list))
	sb.WriteString("| Order | ID | Type | Category | Active | Options | Question |\n")
	sb.WriteString("|-------|----|------|----------|--------|---------|----------|\n")
	for _, q := range list {
		active := "no"
		if q.IsActive {
			active = "yes"
		}
		fmt.Fprintf(&sb, "| %d | `%s` | %s | %s | %s | %d | %s |\n",
			q.Order, q.ID, q.Type, q.Category, active, len(q.Options),
			strings.ReplaceAll(q.Question, "|", `\|`))
	}
	return mcp.NewToolResultText(sb.String()), nil
}
