// Package funnel implements the step sequencer: the linear state machine
// that walks a visitor from the landing page to the offer.
//
// The main chain is a fixed ordered list of steps. Two side effects hang
// off it: entering processing-code derives the divine code, and entering
// diagnosis classifies the quiz answers. Inside the quiz a detour step,
// block-transition, is inserted whenever two consecutive questions belong
// to different blocks; it is never reached by Advance.
//
// A Sequencer is owned by exactly one session and is not safe for
// concurrent use. Timers live outside: an auto-advance is just a call to
// Advance or CompleteBlockTransition.
package funnel

import (
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/HendryAvila/divine-quiz/internal/questions"
)

// Step identifies one screen of the funnel.
type Step string

const (
	StepLanding          Step = "landing"
	StepBirthdate        Step = "birthdate"
	StepColorSelection   Step = "color-selection"
	StepNameCapture      Step = "name-capture"
	StepFavoriteNumber   Step = "favorite-number"
	StepDestinyWheel     Step = "destiny-wheel"
	StepProcessingCode   Step = "processing-code"
	StepCodeReveal       Step = "code-reveal"
	StepQuiz             Step = "quiz"
	StepBlockTransition  Step = "block-transition"
	StepProcessingFinal  Step = "processing-final"
	StepDiagnosis        Step = "diagnosis"
	StepLiberationRitual Step = "liberation-ritual"
	StepWallBreaking     Step = "wall-breaking"
	StepOffer            Step = "offer"
)

// StepOrder is the full ordered step list, detour included.
// Step numbers shown to visitors are positions in this list.
var StepOrder = []Step{
	StepLanding,
	StepBirthdate,
	StepColorSelection,
	StepNameCapture,
	StepFavoriteNumber,
	StepDestinyWheel,
	StepProcessingCode,
	StepCodeReveal,
	StepQuiz,
	StepBlockTransition,
	StepProcessingFinal,
	StepDiagnosis,
	StepLiberationRitual,
	StepWallBreaking,
	StepOffer,
}

// validSteps is used for O(1) step validation.
var validSteps = func() map[Step]bool {
	m := make(map[Step]bool, len(StepOrder))
	for _, s := range StepOrder {
		m[s] = true
	}
	return m
}()

// ValidateStep checks if the given step is known.
func ValidateStep(s Step) error {
	if !validSteps[s] {
		return fmt.Errorf("invalid step %q", s)
	}
	return nil
}

// TotalSteps is the number of steps, detour included.
func TotalSteps() int {
	return len(StepOrder)
}

// StepNumberOf returns the 1-based position of s, or 0 if unknown.
func StepNumberOf(s Step) int {
	for i, x := range StepOrder {
		if x == s {
			return i + 1
		}
	}
	return 0
}

// nextInChain returns the step Advance moves to from s.
// The detour is skipped; the terminal step has no successor.
func nextInChain(s Step) (Step, bool) {
	n := StepNumberOf(s)
	if n == 0 || n >= len(StepOrder) {
		return "", false
	}
	next := StepOrder[n]
	if next == StepBlockTransition {
		next = StepOrder[n+1]
	}
	return next, true
}

// ─── Profile & state ─────────────────────────────────────────────────────────

// Profile accumulates one visitor's inputs. Fields fill in step order;
// DivineCode and Diagnosis are written once.
type Profile struct {
	BirthDate      *divinecode.BirthDate `json:"birthDate,omitempty"`
	Name           string                `json:"name,omitempty"`
	Color          divinecode.Color      `json:"selectedColor,omitempty"`
	FavoriteNumber int                   `json:"favoriteNumber,omitempty"`
	DivineCode     string                `json:"divineCode,omitempty"`
	Answers        map[string]string     `json:"answers"`
	Diagnosis      classifier.Diagnosis  `json:"diagnosis,omitempty"`
	Classification *classifier.Result    `json:"classification,omitempty"`
}

func (p Profile) clone() Profile {
	out := p
	if p.BirthDate != nil {
		b := *p.BirthDate
		out.BirthDate = &b
	}
	out.Answers = make(map[string]string, len(p.Answers))
	for k, v := range p.Answers {
		out.Answers[k] = v
	}
	if p.Classification != nil {
		c := *p.Classification
		c.EmotionalTriggers = append([]classifier.Trigger{}, c.EmotionalTriggers...)
		c.PainCounts = make(map[classifier.PainCategory]int, len(p.Classification.PainCounts))
		for k, v := range p.Classification.PainCounts {
			c.PainCounts[k] = v
		}
		out.Classification = &c
	}
	return out
}

// State is the sequencer's own position.
type State struct {
	CurrentStep          Step                    `json:"currentStep"`
	CurrentQuestionIndex int                     `json:"currentQuestionIndex"`
	PreviousBlockType    *questions.QuestionType `json:"previousBlockType,omitempty"`
}

// TransitionData names the two blocks a block-transition sits between.
type TransitionData struct {
	From questions.QuestionType `json:"from"`
	To   questions.QuestionType `json:"to"`
}

// Key is the settings key for this transition, e.g. "positive-neutral".
func (t TransitionData) Key() string {
	return string(t.From) + "-" + string(t.To)
}

// StepEvent is delivered to observers whenever the current step changes.
type StepEvent struct {
	From       Step          `json:"from"`
	To         Step          `json:"to"`
	StepNumber int           `json:"stepNumber"`
	At         time.Time     `json:"at"`
	TimeOnStep time.Duration `json:"timeOnStep"`
	// Completed is set when To is the terminal step.
	Completed bool `json:"completed"`
}

// StepObserver is notified synchronously after each step change.
type StepObserver func(StepEvent)

// ─── Errors ──────────────────────────────────────────────────────────────────

var (
	ErrTerminalStep           = errors.New("funnel: already at the final step")
	ErrBlockTransitionPending = errors.New("funnel: a block transition is pending")
	ErrNotInQuiz              = errors.New("funnel: not in the quiz step")
	ErrNotInBlockTransition   = errors.New("funnel: no block transition is pending")
	ErrQuizInProgress         = errors.New("funnel: quiz has unanswered questions")
	ErrNoNextQuestion         = errors.New("funnel: no next question")
	ErrUnknownQuestion        = errors.New("funnel: unknown question")
	ErrUnknownOption          = errors.New("funnel: value is not an option of the question")
	ErrAnswerOutOfTurn        = errors.New("funnel: answer is not for the current question")
	ErrMissingInput           = errors.New("funnel: required input missing")
	ErrInvalidInput           = errors.New("funnel: input out of range")
	ErrProfileLocked          = errors.New("funnel: inputs are locked once the code is computed")
)
