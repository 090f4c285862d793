package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, args map[string]string) string {
	t.Helper()
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = args
	res, err := NewReportPrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.Messages))
	}
	tc, ok := res.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Messages[0].Content)
	}
	return tc.Text
}

func TestReportPrompt_Definition(t *testing.T) {
	if got := NewReportPrompt().Definition().Name; got != "quiz-report" {
		t.Errorf("name = %q", got)
	}
}

func TestReportPrompt_Handle(t *testing.T) {
	text := promptText(t, nil)
	if !strings.Contains(text, "quiz_analytics_summary") {
		t.Error("prompt should point at the analytics tool")
	}
	if strings.Contains(text, "Focus especially") {
		t.Error("no focus line without a focus argument")
	}
}

func TestReportPrompt_Handle_Focus(t *testing.T) {
	text := promptText(t, map[string]string{"focus": "quiz"})
	if !strings.HasSuffix(text, "Focus especially on: quiz") {
		t.Errorf("got %q", text)
	}
}
