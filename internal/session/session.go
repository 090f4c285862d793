// Package session owns the live funnels: one sequencer per visitor, held
// in a bounded LRU, with the auto-advance timers and analytics wiring
// that the sequencer itself stays free of.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/autoadvance"
	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or closed sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotAtOffer is returned for a conversion before the offer step.
	ErrNotAtOffer = errors.New("session has not reached the offer")
)

// timeNow is a package-level clock, replaceable in tests.
var timeNow = time.Now

// Session is one visitor's funnel. Every field below mu is guarded by it.
type Session struct {
	ID        string
	LeadID    string
	CreatedAt time.Time

	mu        sync.Mutex
	seq       *funnel.Sequencer
	pending   *autoadvance.Task
	lastSeen  time.Time
	stepSince time.Time
	closed    bool

	// steps collects sequencer events until the current call flushes them.
	steps []funnel.StepEvent
	// pixel queues tracking events for the client's next read.
	pixel []analytics.PixelEvent
}

// View is what a client sees of a session.
type View struct {
	ID              string                 `json:"id"`
	LeadID          string                 `json:"leadId,omitempty"`
	Step            funnel.Step            `json:"step"`
	StepNumber      int                    `json:"stepNumber"`
	TotalSteps      int                    `json:"totalSteps"`
	State           funnel.State           `json:"state"`
	Profile         funnel.Profile         `json:"profile"`
	QuestionCount   int                    `json:"questionCount"`
	CurrentQuestion *questions.Question    `json:"currentQuestion,omitempty"`
	CodeMeaning     string                 `json:"codeMeaning,omitempty"`
	Rarity          int                    `json:"rarity,omitempty"`
	DiagnosisLabel  string                 `json:"diagnosisLabel,omitempty"`
	Transition      *TransitionView        `json:"transition,omitempty"`
	AutoAdvance     bool                   `json:"autoAdvance"`
	PixelEvents     []analytics.PixelEvent `json:"pixelEvents,omitempty"`
}

// TransitionView is the pending block-transition screen, copy rendered.
type TransitionView struct {
	From     questions.QuestionType      `json:"from"`
	To       questions.QuestionType      `json:"to"`
	Settings settings.TransitionSettings `json:"settings"`
}

// view builds the client view and drains queued pixel events.
// Caller holds s.mu.
func (s *Session) view(ctx context.Context, transitions TransitionSource) View {
	p := s.seq.Profile()
	v := View{
		ID:              s.ID,
		LeadID:          s.LeadID,
		Step:            s.seq.Step(),
		StepNumber:      s.seq.StepNumber(),
		TotalSteps:      s.seq.TotalSteps(),
		State:           s.seq.State(),
		Profile:         p,
		QuestionCount:   len(s.seq.Questions()),
		CurrentQuestion: s.seq.CurrentQuestion(),
		AutoAdvance:     s.pending != nil,
		PixelEvents:     s.pixel,
	}
	s.pixel = nil

	if p.DivineCode != "" {
		v.CodeMeaning = divinecode.CodeMeaning(p.DivineCode)
		v.Rarity = divinecode.Rarity(p.DivineCode)
	}
	if p.Diagnosis != "" {
		v.DiagnosisLabel = p.Diagnosis.Label()
	}
	if td, ok := s.seq.TransitionData(); ok && transitions != nil {
		ts, err := transitions.Transition(ctx, td.Key())
		if err == nil {
			v.Transition = &TransitionView{From: td.From, To: td.To, Settings: ts.Render(p.DivineCode)}
		}
	}
	return v
}

// cancelPending stops a scheduled auto-advance. Caller holds s.mu.
func (s *Session) cancelPending() {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
}
