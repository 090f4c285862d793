// Package resources implements the quiz's MCP resource handlers.
//
// Resources are read-only JSON views addressed by quiz:// URIs.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/settings"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	ActiveQuestionsURI = "quiz://questions/active"
	TransitionsURI     = "quiz://settings/transitions"
)

// QuestionSource yields the live quiz list.
type QuestionSource interface {
	Active(ctx context.Context) []questions.Question
}

// TransitionSource yields the effective block-transition copy.
type TransitionSource interface {
	Transitions(ctx context.Context) (map[string]settings.TransitionSettings, error)
}

// Handler manages the quiz resource endpoints.
type Handler struct {
	questions   QuestionSource
	transitions TransitionSource
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(q QuestionSource, t TransitionSource) *Handler {
	return &Handler{questions: q, transitions: t}
}

// ActiveQuestionsResource returns the MCP resource definition for the live quiz.
func (h *Handler) ActiveQuestionsResource() mcp.Resource {
	return mcp.NewResource(
		ActiveQuestionsURI,
		"Active Quiz Questions",
		mcp.WithResourceDescription("The questions visitors currently see, in quiz order"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActiveQuestions returns the active questions as JSON.
func (h *Handler) HandleActiveQuestions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.questions.Active(ctx))
}

// TransitionsResource returns the MCP resource definition for the transition copy.
func (h *Handler) TransitionsResource() mcp.Resource {
	return mcp.NewResource(
		TransitionsURI,
		"Block Transition Settings",
		mcp.WithResourceDescription("Effective copy and timing of the block-transition screens"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleTransitions returns the effective transition settings as JSON.
func (h *Handler) HandleTransitions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	all, err := h.transitions.Transitions(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, all)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, msg string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     fmt.Sprintf(`{"error": %q}`, msg),
		},
	}
}
