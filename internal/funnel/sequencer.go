package funnel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/HendryAvila/divine-quiz/internal/questions"
)

// QuestionSource supplies the live quiz list. *questions.Repository
// satisfies it.
type QuestionSource interface {
	Active(ctx context.Context) []questions.Question
}

// Sequencer drives one visitor through the funnel.
type Sequencer struct {
	source    QuestionSource
	observers []StepObserver

	profile   Profile
	state     State
	questions []questions.Question
	stepSince time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithObserver registers fn for step changes.
func WithObserver(fn StepObserver) Option {
	return func(s *Sequencer) { s.observers = append(s.observers, fn) }
}

// New returns a sequencer at the landing step with an empty profile.
func New(source QuestionSource, opts ...Option) *Sequencer {
	s := &Sequencer{
		source:    source,
		profile:   Profile{Answers: make(map[string]string)},
		state:     State{CurrentStep: StepLanding},
		stepSince: timeNow(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Step returns the current step.
func (s *Sequencer) Step() Step { return s.state.CurrentStep }

// State returns a copy of the sequencer position.
func (s *Sequencer) State() State {
	st := s.state
	if st.PreviousBlockType != nil {
		t := *st.PreviousBlockType
		st.PreviousBlockType = &t
	}
	return st
}

// Profile returns a copy of the accumulated profile.
func (s *Sequencer) Profile() Profile { return s.profile.clone() }

// StepNumber is the 1-based position of the current step.
func (s *Sequencer) StepNumber() int { return StepNumberOf(s.state.CurrentStep) }

// TotalSteps is the number of steps, detour included.
func (s *Sequencer) TotalSteps() int { return TotalSteps() }

// IsComplete reports whether the terminal step has been reached.
func (s *Sequencer) IsComplete() bool { return s.state.CurrentStep == StepOffer }

// Questions returns the quiz snapshot taken on entering the quiz.
func (s *Sequencer) Questions() []questions.Question {
	out := make([]questions.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// HasQuestions reports whether the quiz snapshot is non-empty. An empty
// quiz renders a "no questions" affordance whose only action is Advance.
func (s *Sequencer) HasQuestions() bool { return len(s.questions) > 0 }

// CurrentQuestion returns the question at the current index, or nil
// outside the quiz or when the quiz is empty.
func (s *Sequencer) CurrentQuestion() *questions.Question {
	if s.state.CurrentStep != StepQuiz && s.state.CurrentStep != StepBlockTransition {
		return nil
	}
	i := s.state.CurrentQuestionIndex
	if i < 0 || i >= len(s.questions) {
		return nil
	}
	q := s.questions[i]
	return &q
}

// TransitionData describes the pending block transition. ok is false
// outside the block-transition step.
func (s *Sequencer) TransitionData() (TransitionData, bool) {
	if s.state.CurrentStep != StepBlockTransition || s.state.PreviousBlockType == nil {
		return TransitionData{}, false
	}
	next := s.state.CurrentQuestionIndex + 1
	if next >= len(s.questions) {
		return TransitionData{}, false
	}
	return TransitionData{From: *s.state.PreviousBlockType, To: s.questions[next].Type}, true
}

// ─── Profile setters ─────────────────────────────────────────────────────────

func (s *Sequencer) checkUnlocked() error {
	if s.profile.DivineCode != "" {
		return ErrProfileLocked
	}
	return nil
}

// SetBirthDate stores the birth date after range checks.
func (s *Sequencer) SetBirthDate(b divinecode.BirthDate) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	if err := divinecode.ValidateBirthDate(b, timeNow()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	s.profile.BirthDate = &b
	return nil
}

// SetName stores the trimmed name.
func (s *Sequencer) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name", ErrMissingInput)
	}
	s.profile.Name = name
	return nil
}

// SetColor stores the selected color.
func (s *Sequencer) SetColor(c divinecode.Color) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: color %q", ErrInvalidInput, c)
	}
	s.profile.Color = c
	return nil
}

// SetFavoriteNumber stores the favorite number after range checks.
func (s *Sequencer) SetFavoriteNumber(n int) error {
	if err := s.checkUnlocked(); err != nil {
		return err
	}
	if err := divinecode.ValidateFavoriteNumber(n); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	s.profile.FavoriteNumber = n
	return nil
}

// ─── Main chain ──────────────────────────────────────────────────────────────

// CanAdvance reports why Advance would fail, or nil.
func (s *Sequencer) CanAdvance() error {
	switch cur := s.state.CurrentStep; cur {
	case StepOffer:
		return ErrTerminalStep
	case StepBlockTransition:
		return ErrBlockTransitionPending
	case StepBirthdate:
		if s.profile.BirthDate == nil {
			return fmt.Errorf("%w: birth date", ErrMissingInput)
		}
	case StepColorSelection:
		if s.profile.Color == "" {
			return fmt.Errorf("%w: color", ErrMissingInput)
		}
	case StepNameCapture:
		if s.profile.Name == "" {
			return fmt.Errorf("%w: name", ErrMissingInput)
		}
	case StepFavoriteNumber:
		if s.profile.FavoriteNumber == 0 {
			return fmt.Errorf("%w: favorite number", ErrMissingInput)
		}
	case StepQuiz:
		if len(s.questions) == 0 {
			return nil
		}
		if s.state.CurrentQuestionIndex < len(s.questions)-1 {
			return ErrQuizInProgress
		}
		// The last question must be answered before the quiz is left.
		last := s.questions[len(s.questions)-1]
		if _, ok := s.profile.Answers[last.ID]; !ok {
			return fmt.Errorf("%w: %s", ErrQuizInProgress, last.ID)
		}
	}
	return nil
}

// Advance moves to the next step of the main chain and runs the entry
// side effect of the step it lands on.
func (s *Sequencer) Advance(ctx context.Context) (Step, error) {
	if err := s.CanAdvance(); err != nil {
		return s.state.CurrentStep, err
	}
	next, ok := nextInChain(s.state.CurrentStep)
	if !ok {
		return s.state.CurrentStep, ErrTerminalStep
	}

	switch next {
	case StepQuiz:
		s.questions = s.source.Active(ctx)
		s.state.CurrentQuestionIndex = 0
		s.state.PreviousBlockType = nil
	case StepProcessingCode:
		s.computeCode()
	case StepDiagnosis:
		s.classify()
	}

	s.enter(next)
	return next, nil
}

func (s *Sequencer) computeCode() {
	if s.profile.DivineCode != "" {
		return
	}
	var b divinecode.BirthDate
	if s.profile.BirthDate != nil {
		b = *s.profile.BirthDate
	}
	s.profile.DivineCode = divinecode.ComputeCode(b, s.profile.Color, s.profile.FavoriteNumber)
}

// classify scores the answers with the tags stored on the snapshot's
// options; tokens are never re-parsed here.
func (s *Sequencer) classify() {
	if s.profile.Classification != nil {
		return
	}
	tagged := make([]classifier.Tags, 0, len(s.profile.Answers))
	for qid, value := range s.profile.Answers {
		if o, ok := s.option(qid, value); ok {
			tagged = append(tagged, o.Tags)
		}
	}
	res := classifier.ClassifyTagged(tagged)
	s.profile.Classification = &res
	s.profile.Diagnosis = res.Diagnosis
}

func (s *Sequencer) option(qid, value string) (questions.Option, bool) {
	for _, q := range s.questions {
		if q.ID == qid {
			return q.Option(value)
		}
	}
	return questions.Option{}, false
}

func (s *Sequencer) enter(next Step) {
	now := timeNow()
	ev := StepEvent{
		From:       s.state.CurrentStep,
		To:         next,
		StepNumber: StepNumberOf(next),
		At:         now,
		TimeOnStep: now.Sub(s.stepSince),
		Completed:  next == StepOffer,
	}
	s.state.CurrentStep = next
	s.stepSince = now
	for _, fn := range s.observers {
		fn(ev)
	}
}

// ─── Quiz ────────────────────────────────────────────────────────────────────

// RecordAnswer stores value as the answer to questionID without moving.
// Answers accumulate; re-answering overwrites but never removes.
func (s *Sequencer) RecordAnswer(questionID, value string) error {
	if s.state.CurrentStep != StepQuiz {
		return ErrNotInQuiz
	}
	if _, ok := s.option(questionID, value); !ok {
		for _, q := range s.questions {
			if q.ID == questionID {
				return fmt.Errorf("%w: %s=%s", ErrUnknownOption, questionID, value)
			}
		}
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.profile.Answers[questionID] = value
	return nil
}

// AdvanceQuestion moves to the next question without any block check.
func (s *Sequencer) AdvanceQuestion() error {
	if s.state.CurrentStep != StepQuiz {
		return ErrNotInQuiz
	}
	if s.state.CurrentQuestionIndex+1 >= len(s.questions) {
		return ErrNoNextQuestion
	}
	s.state.CurrentQuestionIndex++
	return nil
}

// NextAfterAnswer routes the quiz forward after an answer:
//
//   - last question, or an empty quiz: Advance leaves the quiz
//   - next question in another block: detour to block-transition
//   - otherwise: AdvanceQuestion
func (s *Sequencer) NextAfterAnswer(ctx context.Context) (Step, error) {
	if s.state.CurrentStep != StepQuiz {
		return s.state.CurrentStep, ErrNotInQuiz
	}
	i := s.state.CurrentQuestionIndex
	if i >= len(s.questions)-1 {
		return s.Advance(ctx)
	}

	cur, next := s.questions[i], s.questions[i+1]
	if cur.Type != next.Type {
		prev := cur.Type
		s.state.PreviousBlockType = &prev
		s.enter(StepBlockTransition)
		return StepBlockTransition, nil
	}
	if err := s.AdvanceQuestion(); err != nil {
		return s.state.CurrentStep, err
	}
	return StepQuiz, nil
}

// Answer records an answer to the current question and routes onward.
func (s *Sequencer) Answer(ctx context.Context, questionID, value string) (Step, error) {
	cur := s.CurrentQuestion()
	if s.state.CurrentStep != StepQuiz {
		return s.state.CurrentStep, ErrNotInQuiz
	}
	if cur == nil || cur.ID != questionID {
		return s.state.CurrentStep, fmt.Errorf("%w: %s", ErrAnswerOutOfTurn, questionID)
	}
	if err := s.RecordAnswer(questionID, value); err != nil {
		return s.state.CurrentStep, err
	}
	return s.NextAfterAnswer(ctx)
}

// CompleteBlockTransition returns to the quiz at the next question.
func (s *Sequencer) CompleteBlockTransition() error {
	if s.state.CurrentStep != StepBlockTransition {
		return ErrNotInBlockTransition
	}
	s.state.PreviousBlockType = nil
	s.state.CurrentQuestionIndex++
	s.enter(StepQuiz)
	return nil
}
