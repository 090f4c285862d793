package resources

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/settings"
	"github.com/mark3labs/mcp-go/mcp"
)

func read(t *testing.T, handle func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error), uri string) string {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	contents, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("read %s: %v", uri, err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T, want TextResourceContents", contents[0])
	}
	if tc.URI != uri || tc.MIMEType != "application/json" {
		t.Errorf("uri/mime = %s %s", tc.URI, tc.MIMEType)
	}
	return tc.Text
}

func TestActiveQuestions(t *testing.T) {
	store := kvstore.NewMemoryStore()
	repo := questions.NewRepository(store)
	ctx := context.Background()
	if _, verrs, err := repo.ToggleActive(ctx, "desire-main"); err != nil || len(verrs) > 0 {
		t.Fatalf("ToggleActive: %v %v", verrs, err)
	}

	h := NewHandler(repo, settings.NewService(store, nil))
	if got := h.ActiveQuestionsResource().URI; got != ActiveQuestionsURI {
		t.Errorf("URI = %q", got)
	}

	var list []questions.Question
	if err := json.Unmarshal([]byte(read(t, h.HandleActiveQuestions, ActiveQuestionsURI)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 7 {
		t.Fatalf("got %d active questions, want 7", len(list))
	}
	if list[0].ID != "future-vision" {
		t.Errorf("first active question = %s, want future-vision", list[0].ID)
	}
}

func TestTransitions(t *testing.T) {
	store := kvstore.NewMemoryStore()
	h := NewHandler(questions.NewRepository(store), settings.NewService(store, nil))

	var all map[string]settings.TransitionSettings
	if err := json.Unmarshal([]byte(read(t, h.HandleTransitions, TransitionsURI)), &all); err != nil {
		t.Fatal(err)
	}
	if _, ok := all[settings.KeyPositiveNeutral]; !ok {
		t.Error("defaults should include positive-neutral")
	}
}

type brokenTransitions struct{}

func (brokenTransitions) Transitions(context.Context) (map[string]settings.TransitionSettings, error) {
	return nil, errors.New("store down")
}

func TestTransitions_Error(t *testing.T) {
	h := NewHandler(nil, brokenTransitions{})
	text := read(t, h.HandleTransitions, TransitionsURI)
	if !strings.Contains(text, `"error": "store down"`) {
		t.Errorf("got %s", text)
	}
}
