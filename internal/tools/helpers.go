// Package tools implements the quiz's MCP tool handlers for operators.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Tools
// depend on the small interfaces below rather than on concrete stores.
package tools

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/mark3labs/mcp-go/mcp"
)

// timeNow is overridable in tests.
var timeNow = time.Now

// QuestionBank is the part of questions.Repository the tools use.
type QuestionBank interface {
	Questions(ctx context.Context) []questions.Question
	ToggleActive(ctx context.Context, id string) (questions.Question, []questions.ValidationError, error)
	Validate(ctx context.Context) []questions.ValidationError
	Restore(ctx context.Context) (bool, error)
	Export(ctx context.Context) ([]byte, error)
}

// AnalyticsSource is the part of analytics.Recorder the tools use.
type AnalyticsSource interface {
	Summary(ctx context.Context) (analytics.Summary, error)
}

// requireWhole reads a required numeric argument and rejects fractions,
// which mcp-go's RequireInt would truncate.
func requireWhole(req mcp.CallToolRequest, key string) (int, error) {
	v, err := req.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("argument %q must be a whole number, got %v", key, v)
	}
	return int(v), nil
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// validationList renders validation problems as a markdown bullet list.
func validationList(verrs []questions.ValidationError) string {
	var sb strings.Builder
	for _, e := range verrs {
		sb.WriteString("- `" + e.Field + "`: " + e.Message + "\n")
	}
	return sb.String()
}
