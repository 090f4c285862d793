package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/mark3labs/mcp-go/mcp"
)

// ComputeCodeTool handles the quiz_compute_code MCP tool.
// It derives a divine code without going through a funnel session.
type ComputeCodeTool struct{}

// NewComputeCodeTool creates a ComputeCodeTool.
func NewComputeCodeTool() *ComputeCodeTool {
	return &ComputeCodeTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ComputeCodeTool) Definition() mcp.Tool {
	colors := make([]string, 0, 8)
	for _, c := range divinecode.Colors() {
		colors = append(colors, string(c))
	}
	return mcp.NewTool("quiz_compute_code",
		mcp.WithDescription(
			"Compute the three-digit divine code for a birth date, color and favorite number. "+
				"Returns the code, its meaning and the rarity figure shown on the reveal step.",
		),
		mcp.WithNumber("day",
			mcp.Required(),
			mcp.Description("Birth day, 1-31"),
			mcp.MultipleOf(1),
		),
		mcp.WithNumber("month",
			mcp.Required(),
			mcp.Description("Birth month, 1-12"),
			mcp.MultipleOf(1),
		),
		mcp.WithNumber("year",
			mcp.Required(),
			mcp.Description("Birth year, 1900 through the current year"),
			mcp.MultipleOf(1),
		),
		mcp.WithString("color",
			mcp.Required(),
			mcp.Description("Selected color"),
			mcp.Enum(colors...),
		),
		mcp.WithNumber("favorite_number",
			mcp.Required(),
			mcp.Description("Favorite number, 1-9"),
			mcp.MultipleOf(1),
		),
	)
}

// Handle processes the quiz_compute_code tool call.
func (t *ComputeCodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	color, err := divinecode.ParseColor(req.GetString("color", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var birth divinecode.BirthDate
	var fav int
	for _, arg := range []struct {
		key string
		dst *int
	}{
		{"day", &birth.Day},
		{"month", &birth.Month},
		{"year", &birth.Year},
		{"favorite_number", &fav},
	} {
		n, err := requireWhole(req, arg.key)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		*arg.dst = n
	}

	if err := divinecode.ValidateInputs(birth, color, fav, timeNow()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid inputs: %v", err)), nil
	}

	code := divinecode.ComputeCode(birth, color, fav)
	response := fmt.Sprintf(
		"# Divine Code\n\n"+
			"**Code:** `%s`\n"+
			"**Meaning:** %s\n"+
			"**Rarity:** only %d%% of people share this code\n",
		code, divinecode.CodeMeaning(code), divinecode.Rarity(code),
	)
	return mcp.NewToolResultText(response), nil
}
