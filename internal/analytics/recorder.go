package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
)

// timeNow is a package-level clock, replaceable in tests.
var timeNow = time.Now

var newLeadID = func() string { return "lead-" + uuid.NewString() }

// Recorder persists leads and keeps a cached summary next to them.
// All methods are safe for concurrent use.
type Recorder struct {
	store   kvstore.Store
	logger  *logging.Logger
	metrics *observability.Metrics

	mu sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics mirrors tracked events into Prometheus.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder returns a recorder over store.
func NewRecorder(store kvstore.Store, opts ...Option) *Recorder {
	r := &Recorder{store: store, logger: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ─── Persistence ─────────────────────────────────────────────────────────────

// loadLocked reads the lead list. A malformed document is logged and
// treated as empty.
func (r *Recorder) loadLocked(ctx context.Context) ([]Lead, error) {
	raw, found, err := r.store.Get(ctx, kvstore.KeyLeads)
	if err != nil {
		return nil, fmt.Errorf("reading leads: %w", err)
	}
	if !found {
		return nil, nil
	}
	var leads []Lead
	if err := json.Unmarshal([]byte(raw), &leads); err != nil {
		r.logger.Warn("discarding malformed lead data", "error", err)
		return nil, nil
	}
	return leads, nil
}

// saveLocked writes the leads and refreshes the cached summary.
func (r *Recorder) saveLocked(ctx context.Context, leads []Lead) error {
	data, err := json.Marshal(leads)
	if err != nil {
		return fmt.Errorf("marshaling leads: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.KeyLeads, string(data)); err != nil {
		return fmt.Errorf("writing leads: %w", err)
	}

	summary, err := json.Marshal(summarize(leads, timeNow()))
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := r.store.Set(ctx, kvstore.KeyAnalytics, string(summary)); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// update applies fn to the lead with id and saves the list.
func (r *Recorder) update(ctx context.Context, id string, fn func(*Lead)) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	leads, err := r.loadLocked(ctx)
	if err != nil {
		return Lead{}, err
	}
	for i := range leads {
		if leads[i].ID != id {
			continue
		}
		fn(&leads[i])
		leads[i].Timestamp = timeNow().UTC()
		if err := r.saveLocked(ctx, leads); err != nil {
			return Lead{}, err
		}
		return leads[i].clone(), nil
	}
	return Lead{}, fmt.Errorf("%w: %s", ErrLeadNotFound, id)
}

// ─── Tracking ────────────────────────────────────────────────────────────────

// InitializeLead creates a lead sitting on the landing step.
func (r *Recorder) InitializeLead(ctx context.Context, info LeadInfo) (Lead, []PixelEvent, error) {
	now := timeNow().UTC()
	lead := Lead{
		ID:          newLeadID(),
		Timestamp:   now,
		UserAgent:   info.UserAgent,
		IP:          info.IP,
		CurrentStep: funnel.StepLanding,
		StepNumber:  funnel.StepNumberOf(funnel.StepLanding),
		Responses:   map[string]string{},
	}

	r.mu.Lock()
	leads, err := r.loadLocked(ctx)
	if err == nil {
		err = r.saveLocked(ctx, append(leads, lead))
	}
	r.mu.Unlock()
	if err != nil {
		return Lead{}, nil, err
	}

	r.metrics.StepEntered(string(funnel.StepLanding))
	r.logger.Debug("lead initialised", "lead_id", lead.ID)

	events := []PixelEvent{
		{Method: PixelTrack, Name: "Lead", Params: map[string]any{
			"content_name":     "Divine Quiz Start",
			"content_category": "Lead Generation",
			"lead_id":          lead.ID,
			"user_agent":       info.UserAgent,
		}},
		{Method: PixelTrackCustom, Name: "QuizStart", Params: map[string]any{
			"lead_id":    lead.ID,
			"start_time": now.Format(time.RFC3339),
			"user_agent": info.UserAgent,
		}},
	}
	return lead, events, nil
}

// TrackStepEntry moves the lead to step. timeOnPrevious is the time spent
// on the step being left. Re-entering the current step changes nothing.
func (r *Recorder) TrackStepEntry(ctx context.Context, id string, step funnel.Step, timeOnPrevious time.Duration, responses map[string]string) ([]PixelEvent, error) {
	if err := funnel.ValidateStep(step); err != nil {
		return nil, err
	}

	moved := false
	_, err := r.update(ctx, id, func(l *Lead) {
		if l.CurrentStep == step {
			return
		}
		moved = true
		l.CurrentStep = step
		l.StepNumber = funnel.StepNumberOf(step)
		l.TimeOnStep = timeOnPrevious.Milliseconds()
		l.Abandoned = false
		if responses != nil {
			l.Responses = make(map[string]string, len(responses))
			for k, v := range responses {
				l.Responses[k] = v
			}
		}
	})
	if err != nil || !moved {
		return nil, err
	}

	r.metrics.StepEntered(string(step))
	n := funnel.StepNumberOf(step)
	return []PixelEvent{
		{Method: PixelTrack, Name: "PageView", Params: map[string]any{
			"content_name":     "Step: " + string(step),
			"content_category": "Divine Quiz",
			"step_name":        string(step),
			"step_number":      n,
			"lead_id":          id,
		}},
		{Method: PixelTrackCustom, Name: "StepProgression", Params: map[string]any{
			"step_name":             string(step),
			"step_number":           n,
			"time_on_previous_step": timeOnPrevious.Milliseconds(),
			"lead_id":               id,
			"responses":             len(responses),
		}},
	}, nil
}

// TrackAbandonment marks the lead as having left on its current step.
func (r *Recorder) TrackAbandonment(ctx context.Context, id string, timeOnStep time.Duration) ([]PixelEvent, error) {
	first := false
	lead, err := r.update(ctx, id, func(l *Lead) {
		first = !l.Abandoned
		l.TimeOnStep = timeOnStep.Milliseconds()
		l.Abandoned = true
	})
	if err != nil {
		return nil, err
	}
	if first {
		r.metrics.Abandoned(string(lead.CurrentStep))
	}
	return []PixelEvent{
		{Method: PixelTrackCustom, Name: "StepAbandonment", Params: map[string]any{
			"step_name":    string(lead.CurrentStep),
			"step_number":  lead.StepNumber,
			"time_on_step": timeOnStep.Milliseconds(),
			"lead_id":      id,
		}},
	}, nil
}

// TrackCompletion marks the lead as having reached the offer.
func (r *Recorder) TrackCompletion(ctx context.Context, id string, timeOnStep time.Duration) ([]PixelEvent, error) {
	first := false
	lead, err := r.update(ctx, id, func(l *Lead) {
		first = !l.Completed
		l.TimeOnStep = timeOnStep.Milliseconds()
		l.Completed = true
		l.ConversionStep = string(funnel.StepOffer)
	})
	if err != nil {
		return nil, err
	}
	if first {
		r.metrics.FunnelCompleted()
	}
	return []PixelEvent{
		{Method: PixelTrack, Name: "CompleteRegistration", Params: map[string]any{
			"content_name":     "Divine Quiz Completion",
			"content_category": "Lead Generation",
			"lead_id":          id,
			"total_time":       timeOnStep.Milliseconds(),
		}},
		{Method: PixelTrackCustom, Name: "QuizCompletion", Params: map[string]any{
			"lead_id":         id,
			"completion_time": lead.Timestamp.Format(time.RFC3339),
			"total_steps":     funnel.TotalSteps(),
		}},
	}, nil
}

// TrackConversion records a conversion of the given kind on the offer page.
func (r *Recorder) TrackConversion(ctx context.Context, id, kind string, data map[string]any) ([]PixelEvent, error) {
	if kind == "" {
		return nil, fmt.Errorf("conversion type is required")
	}
	lead, err := r.update(ctx, id, func(l *Lead) {
		l.ConversionStep = kind
		l.ConversionData = make(map[string]any, len(data))
		for k, v := range data {
			l.ConversionData[k] = v
		}
	})
	if err != nil {
		return nil, err
	}
	r.metrics.Converted(kind)

	purchase := map[string]any{}
	for k, v := range data {
		purchase[k] = v
	}
	purchase["content_name"] = OfferName
	purchase["content_category"] = OfferCategory
	purchase["value"] = OfferValue
	purchase["currency"] = OfferCurrency
	purchase["lead_id"] = id
	purchase["conversion_type"] = kind

	return []PixelEvent{
		{Method: PixelTrack, Name: "Purchase", Params: purchase},
		{Method: PixelTrackCustom, Name: "DivineConversion", Params: map[string]any{
			"conversion_type": kind,
			"lead_id":         id,
			"conversion_data": lead.ConversionData,
			"timestamp":       lead.Timestamp.Format(time.RFC3339),
		}},
	}, nil
}

// ─── Reporting ───────────────────────────────────────────────────────────────

// Leads returns a copy of every stored lead.
func (r *Recorder) Leads(ctx context.Context) ([]Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	leads, err := r.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Lead, len(leads))
	for i, l := range leads {
		out[i] = l.clone()
	}
	return out, nil
}

// Summary returns the cached report, regenerating it when the cache is
// missing or unreadable.
func (r *Recorder) Summary(ctx context.Context) (Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, found, err := r.store.Get(ctx, kvstore.KeyAnalytics)
	if err != nil {
		return Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	if found {
		var s Summary
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			s.LeadData = nil
			return s, nil
		}
		r.logger.Warn("regenerating malformed analytics summary")
	}

	leads, err := r.loadLocked(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(leads, timeNow()), nil
}

// Export renders the summary together with every lead as indented JSON.
func (r *Recorder) Export(ctx context.Context) ([]byte, error) {
	r.mu.Lock()
	leads, err := r.loadLocked(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s := summarize(leads, timeNow())
	s.LeadData = leads
	if s.LeadData == nil {
		s.LeadData = []Lead{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}
	return data, nil
}

// Clear drops every lead and the cached summary.
func (r *Recorder) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(ctx, kvstore.KeyAnalytics); err != nil {
		return fmt.Errorf("clearing summary: %w", err)
	}
	if err := r.store.Delete(ctx, kvstore.KeyLeads); err != nil {
		return fmt.Errorf("clearing leads: %w", err)
	}
	return nil
}

// summarize builds the per-step report. A lead counts as a visit to every
// step up to its current one and as a completion of every step before it.
func summarize(leads []Lead, now time.Time) Summary {
	rows := make([]StepAnalytics, 0, len(funnel.StepOrder))
	for i, step := range funnel.StepOrder {
		n := i + 1
		row := StepAnalytics{StepName: step, StepNumber: n}

		var totalMs int64
		var atStep int
		for _, l := range leads {
			current := funnel.StepNumberOf(l.CurrentStep)
			if current >= n {
				row.TotalVisits++
			}
			if current > n {
				row.Completions++
			}
			if l.CurrentStep == step {
				atStep++
				totalMs += l.TimeOnStep
				if l.Abandoned {
					row.Abandonments++
				}
			}
		}
		row.ConversionRate = percent(row.Completions, row.TotalVisits)
		row.AbandonmentRate = percent(row.Abandonments, row.TotalVisits)
		if atStep > 0 {
			row.AverageTimeSpent = math.Round(float64(totalMs)/float64(atStep)/100) / 10
		}
		if step == funnel.StepQuiz {
			row.Responses = tallyResponses(leads)
		}
		rows = append(rows, row)
	}

	s := Summary{
		TotalLeads:    len(leads),
		StepAnalytics: rows,
		LastUpdated:   now.UTC(),
	}
	for _, l := range leads {
		if l.Completed {
			s.CompletedFunnels++
		}
	}
	s.OverallConversionRate = percent(s.CompletedFunnels, s.TotalLeads)
	return s
}

func tallyResponses(leads []Lead) map[string]int {
	out := map[string]int{}
	for _, l := range leads {
		for _, v := range l.Responses {
			out[v]++
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
