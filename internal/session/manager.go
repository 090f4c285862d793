package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/autoadvance"
	"github.com/HendryAvila/divine-quiz/internal/divinecode"
	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

var newSessionID = uuid.NewString

const (
	defaultMaxSessions          = 10000
	defaultTTL                  = 30 * time.Minute
	defaultProcessingCodeDelay  = 8500 * time.Millisecond
	defaultProcessingFinalDelay = 10 * time.Second
)

// Config bounds the session table and sets the processing-screen delays.
// A zero delay disables that auto-advance.
type Config struct {
	MaxSessions          int
	TTL                  time.Duration
	ProcessingCodeDelay  time.Duration
	ProcessingFinalDelay time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:          defaultMaxSessions,
		TTL:                  defaultTTL,
		ProcessingCodeDelay:  defaultProcessingCodeDelay,
		ProcessingFinalDelay: defaultProcessingFinalDelay,
	}
}

// TransitionSource resolves block-transition copy. *settings.Service
// satisfies it.
type TransitionSource interface {
	Transition(ctx context.Context, key string) (settings.TransitionSettings, error)
}

// Tracker receives funnel progress. *analytics.Recorder satisfies it.
type Tracker interface {
	InitializeLead(ctx context.Context, info analytics.LeadInfo) (analytics.Lead, []analytics.PixelEvent, error)
	TrackStepEntry(ctx context.Context, id string, step funnel.Step, timeOnPrevious time.Duration, responses map[string]string) ([]analytics.PixelEvent, error)
	TrackAbandonment(ctx context.Context, id string, timeOnStep time.Duration) ([]analytics.PixelEvent, error)
	TrackCompletion(ctx context.Context, id string, timeOnStep time.Duration) ([]analytics.PixelEvent, error)
	TrackConversion(ctx context.Context, id, kind string, data map[string]any) ([]analytics.PixelEvent, error)
}

// Manager creates, finds and expires sessions.
//
// Lock order: the LRU's lock is never requested while a session's mu is
// held, so eviction callbacks may take a session's mu.
type Manager struct {
	cfg         Config
	source      funnel.QuestionSource
	transitions TransitionSource
	tracker     Tracker
	metrics     *observability.Metrics
	logger      *logging.Logger

	scheduler *autoadvance.Scheduler
	sessions  *lru.Cache[string, *Session]
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces DefaultConfig. Zero size and TTL keep the defaults.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg.MaxSessions <= 0 {
			cfg.MaxSessions = defaultMaxSessions
		}
		if cfg.TTL <= 0 {
			cfg.TTL = defaultTTL
		}
		m.cfg = cfg
	}
}

// WithTransitions enables block-transition copy and auto-redirect.
func WithTransitions(t TransitionSource) Option {
	return func(m *Manager) { m.transitions = t }
}

// WithTracker reports progress to analytics.
func WithTracker(t Tracker) Option {
	return func(m *Manager) { m.tracker = t }
}

// WithMetrics mirrors session counts and diagnoses into Prometheus.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a manager serving questions from source.
func NewManager(source funnel.QuestionSource, opts ...Option) (*Manager, error) {
	m := &Manager{
		cfg:       DefaultConfig(),
		source:    source,
		logger:    logging.Nop(),
		scheduler: autoadvance.NewScheduler(),
	}
	for _, opt := range opts {
		opt(m)
	}

	cache, err := lru.NewWithEvict[string, *Session](m.cfg.MaxSessions, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	m.sessions = cache
	return m, nil
}

// onEvict runs for LRU overflow, Sweep and Remove alike. A session that
// had not finished is reported abandoned.
func (m *Manager) onEvict(id string, s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelPending()
	if !s.seq.IsComplete() {
		m.abandonLocked(context.Background(), s)
	}
	m.logger.Debug("session closed", "session_id", id)
}

// Len is the number of live sessions.
func (m *Manager) Len() int { return m.sessions.Len() }

// Stop cancels every pending auto-advance and waits for running ones.
func (m *Manager) Stop() { m.scheduler.Stop() }

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	cutoff := timeNow().Add(-m.cfg.TTL)
	n := 0
	for _, id := range m.sessions.Keys() {
		s, ok := m.sessions.Peek(id)
		if !ok {
			continue
		}
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle && m.sessions.Remove(id) {
			n++
		}
	}
	if n > 0 {
		m.metrics.SessionsActive(m.sessions.Len())
	}
	return n
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Create starts a funnel at the landing step.
func (m *Manager) Create(ctx context.Context, info analytics.LeadInfo) (View, error) {
	now := timeNow()
	s := &Session{ID: newSessionID(), CreatedAt: now, lastSeen: now, stepSince: now}
	s.seq = funnel.New(m.source, funnel.WithObserver(func(ev funnel.StepEvent) {
		s.steps = append(s.steps, ev)
		s.stepSince = ev.At
	}))

	if m.tracker != nil {
		lead, events, err := m.tracker.InitializeLead(ctx, info)
		if err != nil {
			m.logger.Warn("lead tracking unavailable", "session_id", s.ID, "error", err)
		} else {
			s.LeadID = lead.ID
			s.pixel = append(s.pixel, events...)
		}
	}

	s.mu.Lock()
	v := s.view(ctx, m.transitions)
	s.mu.Unlock()

	m.sessions.Add(s.ID, s)
	m.metrics.SessionsActive(m.sessions.Len())
	m.logger.Info("session created", "session_id", s.ID, "lead_id", s.LeadID)
	return v, nil
}

// lookup returns a live session or ErrSessionNotFound.
func (m *Manager) lookup(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Get returns the session's current view.
func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	return m.do(ctx, id, false, func(*funnel.Sequencer) error { return nil })
}

// Remove closes a session. Unfinished sessions are reported abandoned.
func (m *Manager) Remove(id string) bool {
	ok := m.sessions.Remove(id)
	if ok {
		m.metrics.SessionsActive(m.sessions.Len())
	}
	return ok
}

// do runs fn on the session's sequencer under its lock, then flushes step
// events and re-arms auto-advance. A manual call cancels a pending
// auto-advance first. The returned view reflects the state after fn even
// when fn fails.
func (m *Manager) do(ctx context.Context, id string, manual bool, fn func(*funnel.Sequencer) error) (View, error) {
	s, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.lastSeen = timeNow()
	if manual {
		s.cancelPending()
	}

	opErr := fn(s.seq)
	m.flushLocked(ctx, s)
	if manual {
		m.armLocked(ctx, s)
	}
	return s.view(ctx, m.transitions), opErr
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Advance moves along the main chain.
func (m *Manager) Advance(ctx context.Context, id string) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error {
		_, err := seq.Advance(ctx)
		return err
	})
}

// SetBirthDate records the visitor's birth date.
func (m *Manager) SetBirthDate(ctx context.Context, id string, b divinecode.BirthDate) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error { return seq.SetBirthDate(b) })
}

// SetName records the visitor's name.
func (m *Manager) SetName(ctx context.Context, id, name string) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error { return seq.SetName(name) })
}

// SetColor records the visitor's color.
func (m *Manager) SetColor(ctx context.Context, id string, c divinecode.Color) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error { return seq.SetColor(c) })
}

// SetFavoriteNumber records the visitor's favorite number.
func (m *Manager) SetFavoriteNumber(ctx context.Context, id string, n int) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error { return seq.SetFavoriteNumber(n) })
}

// Answer answers the current quiz question and routes onward.
func (m *Manager) Answer(ctx context.Context, id, questionID, value string) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error {
		_, err := seq.Answer(ctx, questionID, value)
		return err
	})
}

// CompleteBlockTransition leaves a block-transition screen early.
func (m *Manager) CompleteBlockTransition(ctx context.Context, id string) (View, error) {
	return m.do(ctx, id, true, func(seq *funnel.Sequencer) error { return seq.CompleteBlockTransition() })
}

// Abandon reports the visitor leaving on the current step. The session
// stays usable; returning to it clears the flag on the next step entry.
func (m *Manager) Abandon(ctx context.Context, id string) (View, error) {
	s, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.cancelPending()
	m.abandonLocked(ctx, s)
	return s.view(ctx, m.transitions), nil
}

// Convert records a conversion on the offer page.
func (m *Manager) Convert(ctx context.Context, id, kind string, data map[string]any) (View, error) {
	s, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !s.seq.IsComplete() {
		return s.view(ctx, m.transitions), ErrNotAtOffer
	}
	if m.tracker != nil && s.LeadID != "" {
		events, err := m.tracker.TrackConversion(ctx, s.LeadID, kind, data)
		if err != nil {
			return s.view(ctx, m.transitions), err
		}
		s.pixel = append(s.pixel, events...)
	} else {
		m.metrics.Converted(kind)
	}
	return s.view(ctx, m.transitions), nil
}

// ─── Internals ───────────────────────────────────────────────────────────────

// flushLocked forwards collected step events to analytics and metrics.
func (m *Manager) flushLocked(ctx context.Context, s *Session) {
	steps := s.steps
	s.steps = nil
	for _, ev := range steps {
		if ev.To == funnel.StepDiagnosis {
			m.metrics.Diagnosed(string(s.seq.Profile().Diagnosis))
		}
		if m.tracker == nil {
			m.metrics.StepEntered(string(ev.To))
			if ev.Completed {
				m.metrics.FunnelCompleted()
			}
			continue
		}
		if s.LeadID == "" {
			continue
		}

		events, err := m.tracker.TrackStepEntry(ctx, s.LeadID, ev.To, ev.TimeOnStep, s.seq.Profile().Answers)
		if err != nil {
			m.logger.Warn("step tracking failed", "session_id", s.ID, "step", ev.To, "error", err)
			continue
		}
		s.pixel = append(s.pixel, events...)

		if ev.Completed {
			events, err := m.tracker.TrackCompletion(ctx, s.LeadID, ev.TimeOnStep)
			if err != nil {
				m.logger.Warn("completion tracking failed", "session_id", s.ID, "error", err)
				continue
			}
			s.pixel = append(s.pixel, events...)
		}
	}
}

func (m *Manager) abandonLocked(ctx context.Context, s *Session) {
	if m.tracker == nil || s.LeadID == "" {
		m.metrics.Abandoned(string(s.seq.Step()))
		return
	}
	spent := timeNow().Sub(s.stepSince)
	events, err := m.tracker.TrackAbandonment(ctx, s.LeadID, spent)
	if err != nil {
		m.logger.Warn("abandonment tracking failed", "session_id", s.ID, "error", err)
		return
	}
	s.pixel = append(s.pixel, events...)
}

// armLocked schedules the auto-advance for the current step, if any.
func (m *Manager) armLocked(ctx context.Context, s *Session) {
	var (
		delay time.Duration
		act   func(*funnel.Sequencer) error
	)
	switch s.seq.Step() {
	case funnel.StepProcessingCode:
		delay = m.cfg.ProcessingCodeDelay
		act = advance
	case funnel.StepProcessingFinal:
		delay = m.cfg.ProcessingFinalDelay
		act = advance
	case funnel.StepBlockTransition:
		td, ok := s.seq.TransitionData()
		if !ok || m.transitions == nil {
			return
		}
		ts, err := m.transitions.Transition(ctx, td.Key())
		if err != nil || !ts.AutoRedirect {
			return
		}
		delay = ts.Delay()
		act = (*funnel.Sequencer).CompleteBlockTransition
	}
	if delay <= 0 || act == nil {
		return
	}

	var task *autoadvance.Task
	task = m.scheduler.Schedule(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.pending != task {
			return
		}
		s.pending = nil
		ctx := context.Background()
		if err := act(s.seq); err != nil {
			m.logger.Warn("auto-advance failed", "session_id", s.ID, "step", s.seq.Step(), "error", err)
			return
		}
		m.flushLocked(ctx, s)
		m.armLocked(ctx, s)
	})
	s.pending = task
}

func advance(seq *funnel.Sequencer) error {
	_, err := seq.Advance(context.Background())
	return err
}
