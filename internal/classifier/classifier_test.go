package classifier

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// --- TagToken ---

func TestTagToken(t *testing.T) {
	tests := []struct {
		token string
		want  Tags
	}{
		{"prayer-without-results", Tags{Pains: []PainCategory{PainPrayerCeiling}}},
		{"invisible-ceiling", Tags{Pains: []PainCategory{PainPrayerCeiling}, Distress: true}},
		{"financial-shame", Tags{Pains: []PainCategory{PainShameGuilt}, Distress: true}},
		{"provider-guilt", Tags{Pains: []PainCategory{PainShameGuilt, PainFamilyPressure}}},
		{"internal-sabotage", Tags{Pains: []PainCategory{PainTimePressure}, Distress: true}},
		{"chronic-stress", Tags{Distress: true}},
		{"divine-timing", Tags{}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, TagToken(tt.token)); diff != "" {
				t.Errorf("TagToken(%q) mismatch (-want +got):\n%s", tt.token, diff)
			}
		})
	}
}

func TestTagToken_CaseSensitive(t *testing.T) {
	got := TagToken("PRAYER-CEILING")
	if len(got.Pains) != 0 || got.Distress {
		t.Errorf("upper-case token should not match, got %+v", got)
	}
}

// --- Classify ---

func TestClassify_EmptyAnswers(t *testing.T) {
	got := Classify(map[string]string{})

	if got.UrgencyLevel != 30 {
		t.Errorf("UrgencyLevel = %v, want 30", got.UrgencyLevel)
	}
	if got.DominantPain != PainPrayerCeiling {
		t.Errorf("DominantPain = %q, want prayer-ceiling", got.DominantPain)
	}
	if got.Diagnosis != DiagnosisFinancialCeiling {
		t.Errorf("Diagnosis = %q, want financial-ceiling", got.Diagnosis)
	}
	if got.EmotionalTriggers == nil || len(got.EmotionalTriggers) != 0 {
		t.Errorf("EmotionalTriggers = %#v, want empty non-nil", got.EmotionalTriggers)
	}
}

func TestClassify_NilAnswers(t *testing.T) {
	got := Classify(nil)
	if got.UrgencyLevel != UrgencyBaseline {
		t.Errorf("UrgencyLevel = %v, want baseline", got.UrgencyLevel)
	}
}

func TestClassify_ShameDominant(t *testing.T) {
	got := Classify(map[string]string{
		"financial-history": "financial-shame",
		"emotional-impact":  "provider-guilt",
	})

	want := Result{
		DominantPain:      PainShameGuilt,
		UrgencyLevel:      80,
		Diagnosis:         DiagnosisSpiritualBlockage,
		EmotionalTriggers: []Trigger{TriggerShameRelief, TriggerProviderIdentity},
		PainCounts: map[PainCategory]int{
			PainShameGuilt:     2,
			PainFamilyPressure: 1,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_UrgencyCappedAt100(t *testing.T) {
	got := Classify(map[string]string{
		"a": "prayer-ceiling",
		"b": "chronic-stress",
		"c": "spiritual-doubt",
	})
	if got.UrgencyLevel != MaxUrgency {
		t.Errorf("UrgencyLevel = %v, want %v", got.UrgencyLevel, MaxUrgency)
	}
	// prayer-ceiling and divine-doubt tie at 1; the earlier one wins.
	if got.DominantPain != PainPrayerCeiling {
		t.Errorf("DominantPain = %q, want prayer-ceiling", got.DominantPain)
	}
	if diff := cmp.Diff([]Trigger{TriggerSpiritualValidation}, got.EmotionalTriggers); diff != "" {
		t.Errorf("triggers mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_TieGoesToEarlierCategory(t *testing.T) {
	got := Classify(map[string]string{
		"x": "internal-sabotage", // time-pressure via "age"
		"y": "family-legacy",
	})
	if got.DominantPain != PainFamilyPressure {
		t.Errorf("DominantPain = %q, want family-pressure", got.DominantPain)
	}
	if got.Diagnosis != DiagnosisGenerationalCurse {
		t.Errorf("Diagnosis = %q, want generational-curse", got.Diagnosis)
	}
	want := []Trigger{TriggerProviderIdentity, TriggerUrgencyScarcity}
	if diff := cmp.Diff(want, got.EmotionalTriggers); diff != "" {
		t.Errorf("triggers mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_DiagnosisMapping(t *testing.T) {
	tests := []struct {
		token string
		want  Diagnosis
	}{
		{"prayer-without-results", DiagnosisFinancialCeiling},
		{"financial-shame", DiagnosisSpiritualBlockage},
		{"family-failure", DiagnosisGenerationalCurse},
		{"spiritual-doubt", DiagnosisPurposeMisalignment},
		{"lost-time", DiagnosisDivineTiming},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := Classify(map[string]string{"q": tt.token})
			if got.Diagnosis != tt.want {
				t.Errorf("Diagnosis = %q, want %q", got.Diagnosis, tt.want)
			}
		})
	}
}

func TestClassify_OrderIndependent(t *testing.T) {
	tokens := []string{
		"prayer-ceiling", "family-failure", "spiritual-doubt",
		"chronic-frustration", "internal-sabotage", "financial-shame",
	}

	forward := make([]Tags, len(tokens))
	backward := make([]Tags, len(tokens))
	for i, tok := range tokens {
		forward[i] = TagToken(tok)
		backward[len(tokens)-1-i] = TagToken(tok)
	}

	a := ClassifyTagged(forward)
	b := ClassifyTagged(backward)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("order changed the result (-forward +backward):\n%s", diff)
	}

	m := make(map[string]string, len(tokens))
	for i, tok := range tokens {
		m[string(rune('a'+i))] = tok
	}
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(a, Classify(m)); diff != "" {
			t.Fatalf("map classify differs from slice classify:\n%s", diff)
		}
	}
}

// --- Labels ---

func TestDiagnosisLabel(t *testing.T) {
	if got := DiagnosisFinancialCeiling.Label(); got != "Techo Invisible" {
		t.Errorf("Label() = %q", got)
	}
	if got := Diagnosis("unknown").Label(); got != "unknown" {
		t.Errorf("unknown Label() = %q", got)
	}
	if len(Diagnoses()) != 5 {
		t.Errorf("Diagnoses() len = %d, want 5", len(Diagnoses()))
	}
}
