package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
	"github.com/mark3labs/mcp-go/mcp"
)

// ClassifyTool handles the quiz_classify MCP tool.
// It runs the answer classifier over an arbitrary answer set, which is
// how operators check what diagnosis a given path through the quiz yields.
type ClassifyTool struct{}

// NewClassifyTool creates a ClassifyTool.
func NewClassifyTool() *ClassifyTool {
	return &ClassifyTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ClassifyTool) Definition() mcp.Tool {
	return mcp.NewTool("quiz_classify",
		mcp.WithDescription(
			"Classify a set of quiz answers. Returns the dominant pain, diagnosis, "+
				"urgency level, emotional triggers and per-category counts.",
		),
		mcp.WithString("answers",
			mcp.Required(),
			mcp.Description(`JSON object mapping question id to the stored option value, e.g. {"q1":"family-pressure"}`),
		),
	)
}

// Handle processes the quiz_classify tool call.
func (t *ClassifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := strings.TrimSpace(req.GetString("answers", ""))
	if raw == "" {
		return mcp.NewToolResultError("answers is required"), nil
	}
	var answers map[string]string
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answers must be a JSON object of strings: %v", err)), nil
	}

	res := classifier.Classify(answers)

	var sb strings.Builder
	sb.WriteString("# Classification\n\n")
	fmt.Fprintf(&sb, "**Answers:** %d\n", len(answers))
	fmt.Fprintf(&sb, "**Diagnosis:** %s (`%s`)\n", res.Diagnosis.Label(), res.Diagnosis)
	fmt.Fprintf(&sb, "**Dominant pain:** `%s`\n", res.DominantPain)
	fmt.Fprintf(&sb, "**Urgency:** %.1f\n", res.UrgencyLevel)

	triggers := "none"
	if len(res.EmotionalTriggers) > 0 {
		names := make([]string, len(res.EmotionalTriggers))
		for i, tr := range res.EmotionalTriggers {
			names[i] = string(tr)
		}
		triggers = strings.Join(names, ", ")
	}
	fmt.Fprintf(&sb, "**Triggers:** %s\n\n", triggers)

	sb.WriteString("| Pain | Count |\n|------|-------|\n")
	for _, p := range classifier.PainCategories() {
		fmt.Fprintf(&sb, "| %s | %d |\n", p, res.PainCounts[p])
	}

	return mcp.NewToolResultText(sb.String()), nil
}
