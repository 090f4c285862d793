package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/HendryAvila/divine-quiz/internal/funnel"
	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/observability"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func init() {
	timeNow = func() time.Time { return fixedNow }
}

func newRecorder(t *testing.T, opts ...Option) (*Recorder, *kvstore.MemoryStore) {
	t.Helper()
	n := 0
	orig := newLeadID
	newLeadID = func() string {
		n++
		return fmt.Sprintf("lead-%d", n)
	}
	t.Cleanup(func() { newLeadID = orig })

	store := kvstore.NewMemoryStore()
	return NewRecorder(store, opts...), store
}

func startLead(t *testing.T, r *Recorder) Lead {
	t.Helper()
	lead, _, err := r.InitializeLead(context.Background(), LeadInfo{UserAgent: "test-agent", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("InitializeLead: %v", err)
	}
	return lead
}

// --- Tracking ---

func TestInitializeLead(t *testing.T) {
	r, store := newRecorder(t)
	lead, events, err := r.InitializeLead(context.Background(), LeadInfo{UserAgent: "ua"})
	if err != nil {
		t.Fatalf("InitializeLead: %v", err)
	}

	if lead.ID != "lead-1" || lead.CurrentStep != funnel.StepLanding || lead.StepNumber != 1 {
		t.Errorf("lead = %+v", lead)
	}
	if !lead.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v", lead.Timestamp)
	}
	if len(events) != 2 || events[0].Name != "Lead" || events[1].Name != "QuizStart" {
		t.Errorf("events = %+v", events)
	}
	if events[1].Method != PixelTrackCustom {
		t.Errorf("QuizStart method = %q", events[1].Method)
	}
	if _, found, _ := store.Get(context.Background(), kvstore.KeyLeads); !found {
		t.Error("leads not persisted")
	}
	if _, found, _ := store.Get(context.Background(), kvstore.KeyAnalytics); !found {
		t.Error("summary not cached")
	}
}

func TestTrackStepEntry(t *testing.T) {
	r, _ := newRecorder(t)
	lead := startLead(t, r)
	ctx := context.Background()

	events, err := r.TrackStepEntry(ctx, lead.ID, funnel.StepQuiz, 1500*time.Millisecond, map[string]string{"q1": "faith"})
	if err != nil {
		t.Fatalf("TrackStepEntry: %v", err)
	}
	if len(events) != 2 || events[0].Name != "PageView" || events[1].Name != "StepProgression" {
		t.Fatalf("events = %+v", events)
	}
	if got := events[1].Params["time_on_previous_step"]; got != int64(1500) {
		t.Errorf("time_on_previous_step = %v", got)
	}
	if got := events[0].Params["step_number"]; got != 9 {
		t.Errorf("step_number = %v", got)
	}

	leads, _ := r.Leads(ctx)
	got := leads[0]
	if got.CurrentStep != funnel.StepQuiz || got.StepNumber != 9 || got.TimeOnStep != 1500 {
		t.Errorf("lead = %+v", got)
	}
	if got.Responses["q1"] != "faith" {
		t.Errorf("responses = %v", got.Responses)
	}
}

func TestTrackStepEntry_SameStepIsNoop(t *testing.T) {
	r, _ := newRecorder(t)
	lead := startLead(t, r)

	events, err := r.TrackStepEntry(context.Background(), lead.ID, funnel.StepLanding, time.Second, nil)
	if err != nil {
		t.Fatalf("TrackStepEntry: %v", err)
	}
	if events != nil {
		t.Errorf("events = %+v, want none", events)
	}
}

func TestTrackStepEntry_Errors(t *testing.T) {
	r, _ := newRecorder(t)
	lead := startLead(t, r)
	ctx := context.Background()

	if _, err := r.TrackStepEntry(ctx, "lead-missing", funnel.StepQuiz, 0, nil); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("unknown lead err = %v", err)
	}
	if _, err := r.TrackStepEntry(ctx, lead.ID, funnel.Step("nowhere"), 0, nil); err == nil {
		t.Error("expected error for unknown step")
	}
}

func TestTrackAbandonment(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics("t", reg)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := newRecorder(t, WithMetrics(m))
	lead := startLead(t, r)
	ctx := context.Background()

	if _, err := r.TrackStepEntry(ctx, lead.ID, funnel.StepBirthdate, time.Second, nil); err != nil {
		t.Fatal(err)
	}
	events, err := r.TrackAbandonment(ctx, lead.ID, 4*time.Second)
	if err != nil {
		t.Fatalf("TrackAbandonment: %v", err)
	}
	if events[0].Name != "StepAbandonment" || events[0].Params["step_name"] != "birthdate" {
		t.Errorf("events = %+v", events)
	}
	// A repeated abandonment must not count twice.
	if _, err := r.TrackAbandonment(ctx, lead.ID, 5*time.Second); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP t_abandonments_total Sessions abandoned, by the step they were on.
# TYPE t_abandonments_total counter
t_abandonments_total{step="birthdate"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "t_abandonments_total"); err != nil {
		t.Error(err)
	}

	leads, _ := r.Leads(ctx)
	if !leads[0].Abandoned || leads[0].TimeOnStep != 5000 {
		t.Errorf("lead = %+v", leads[0])
	}
}

func TestTrackCompletionAndConversion(t *testing.T) {
	r, _ := newRecorder(t)
	lead := startLead(t, r)
	ctx := context.Background()

	events, err := r.TrackCompletion(ctx, lead.ID, 2*time.Second)
	if err != nil {
		t.Fatalf("TrackCompletion: %v", err)
	}
	if events[0].Name != "CompleteRegistration" || events[1].Params["total_steps"] != funnel.TotalSteps() {
		t.Errorf("events = %+v", events)
	}

	events, err = r.TrackConversion(ctx, lead.ID, "checkout-click", map[string]any{"plan": "basic"})
	if err != nil {
		t.Fatalf("TrackConversion: %v", err)
	}
	purchase := events[0]
	if purchase.Name != "Purchase" || purchase.Params["value"] != OfferValue || purchase.Params["plan"] != "basic" {
		t.Errorf("purchase = %+v", purchase)
	}
	if events[1].Name != "DivineConversion" {
		t.Errorf("custom event = %+v", events[1])
	}

	leads, _ := r.Leads(ctx)
	if !leads[0].Completed || leads[0].ConversionStep != "checkout-click" {
		t.Errorf("lead = %+v", leads[0])
	}

	if _, err := r.TrackConversion(ctx, lead.ID, "", nil); err == nil {
		t.Error("expected error for empty conversion type")
	}
}

// --- Reporting ---

func TestSummary_Funnel(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()

	a := startLead(t, r)
	b := startLead(t, r)
	startLead(t, r) // stays on landing

	if _, err := r.TrackStepEntry(ctx, a.ID, funnel.StepQuiz, 2*time.Second, map[string]string{"q1": "faith"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TrackStepEntry(ctx, b.ID, funnel.StepQuiz, 4*time.Second, map[string]string{"q1": "faith", "q2": "shame"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TrackAbandonment(ctx, b.ID, 4*time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TrackStepEntry(ctx, a.ID, funnel.StepOffer, time.Second, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.TrackCompletion(ctx, a.ID, time.Second); err != nil {
		t.Fatal(err)
	}

	s, err := r.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.TotalLeads != 3 || s.CompletedFunnels != 1 {
		t.Errorf("totals = %d/%d", s.TotalLeads, s.CompletedFunnels)
	}
	if len(s.StepAnalytics) != funnel.TotalSteps() {
		t.Fatalf("rows = %d", len(s.StepAnalytics))
	}

	landing := s.StepAnalytics[0]
	if landing.TotalVisits != 3 || landing.Completions != 2 {
		t.Errorf("landing = %+v", landing)
	}

	quiz := s.StepAnalytics[funnel.StepNumberOf(funnel.StepQuiz)-1]
	want := StepAnalytics{
		StepName:         funnel.StepQuiz,
		StepNumber:       9,
		TotalVisits:      2,
		Completions:      1,
		Abandonments:     1,
		ConversionRate:   50,
		AbandonmentRate:  50,
		AverageTimeSpent: 4,
		Responses:        map[string]int{"faith": 2, "shame": 1},
	}
	if diff := cmp.Diff(want, quiz); diff != "" {
		t.Errorf("quiz row mismatch (-want +got):\n%s", diff)
	}
	if s.LeadData != nil {
		t.Error("Summary should not carry lead data")
	}
}

func TestSummary_EmptyHasNoDivisionByZero(t *testing.T) {
	r, _ := newRecorder(t)
	s, err := r.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.OverallConversionRate != 0 || s.TotalLeads != 0 {
		t.Errorf("summary = %+v", s)
	}
	for _, row := range s.StepAnalytics {
		if row.ConversionRate != 0 || row.AbandonmentRate != 0 {
			t.Errorf("row %s has non-zero rate", row.StepName)
		}
	}
}

func TestSummary_MalformedCacheRegenerates(t *testing.T) {
	r, store := newRecorder(t)
	startLead(t, r)
	if err := store.Set(context.Background(), kvstore.KeyAnalytics, "{oops"); err != nil {
		t.Fatal(err)
	}
	s, err := r.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.TotalLeads != 1 {
		t.Errorf("TotalLeads = %d, want 1", s.TotalLeads)
	}
}

func TestExportAndClear(t *testing.T) {
	r, store := newRecorder(t)
	startLead(t, r)
	ctx := context.Background()

	data, err := r.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(s.LeadData) != 1 || s.LeadData[0].ID != "lead-1" {
		t.Errorf("lead data = %+v", s.LeadData)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{kvstore.KeyLeads, kvstore.KeyAnalytics} {
		if _, found, _ := store.Get(ctx, key); found {
			t.Errorf("%s still present after Clear", key)
		}
	}
	leads, _ := r.Leads(ctx)
	if len(leads) != 0 {
		t.Errorf("leads = %d after Clear", len(leads))
	}
}

func TestLeads_MalformedTreatedAsEmpty(t *testing.T) {
	r, store := newRecorder(t)
	if err := store.Set(context.Background(), kvstore.KeyLeads, "not json"); err != nil {
		t.Fatal(err)
	}
	leads, err := r.Leads(context.Background())
	if err != nil || len(leads) != 0 {
		t.Errorf("Leads = %v, %v", leads, err)
	}
}
