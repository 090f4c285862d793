// Package classifier turns the quiz answers into a diagnosis.
//
// Classification runs in two phases:
//
//   - Tagging: TagToken maps an answer token to the pain categories it
//     signals. The question bank runs this once when an option is
//     authored and stores the tags next to the option, so the keyword
//     rules live in exactly one place.
//   - Scoring: ClassifyTagged tallies tags into a Result. Classify is the
//     convenience wrapper for callers that only hold raw tokens.
//
// Both phases are pure and order-independent over the answer set.
package classifier

import "strings"

// --- Pain categories ---

// PainCategory is one of the five fixed pain groupings.
type PainCategory string

const (
	PainPrayerCeiling  PainCategory = "prayer-ceiling"
	PainShameGuilt     PainCategory = "shame-guilt"
	PainFamilyPressure PainCategory = "family-pressure"
	PainDivineDoubt    PainCategory = "divine-doubt"
	PainTimePressure   PainCategory = "time-pressure"
)

// painOrder is the enumeration order. It doubles as the tie-break:
// the first category to reach the maximum count wins.
var painOrder = []PainCategory{
	PainPrayerCeiling,
	PainShameGuilt,
	PainFamilyPressure,
	PainDivineDoubt,
	PainTimePressure,
}

// painKeywords are case-sensitive substrings matched against the stored
// option value, never the displayed text.
var painKeywords = map[PainCategory][]string{
	PainPrayerCeiling:  {"prayer", "ceiling"},
	PainShameGuilt:     {"shame", "guilt"},
	PainFamilyPressure: {"family", "provide"},
	PainDivineDoubt:    {"doubt", "god"},
	PainTimePressure:   {"time", "age"},
}

// distressKeywords mark a token as a "negative" answer for urgency scoring.
var distressKeywords = []string{"stress", "shame", "ceiling", "sabotage", "doubt", "frustration"}

// PainCategories returns the categories in tie-break order.
func PainCategories() []PainCategory {
	out := make([]PainCategory, len(painOrder))
	copy(out, painOrder)
	return out
}

// ValidPainCategory reports whether p is one of the five categories.
func ValidPainCategory(p PainCategory) bool {
	_, ok := painKeywords[p]
	return ok
}

// --- Diagnosis ---

// Diagnosis is the outcome category assigned after the quiz.
type Diagnosis string

const (
	DiagnosisFinancialCeiling    Diagnosis = "financial-ceiling"
	DiagnosisSpiritualBlockage   Diagnosis = "spiritual-blockage"
	DiagnosisPurposeMisalignment Diagnosis = "purpose-misalignment"
	DiagnosisGenerationalCurse   Diagnosis = "generational-curse"
	DiagnosisDivineTiming        Diagnosis = "divine-timing"
)

var diagnosisLabels = map[Diagnosis]string{
	DiagnosisFinancialCeiling:    "Techo Invisible",
	DiagnosisPurposeMisalignment: "Desalineación de Propósito",
	DiagnosisGenerationalCurse:   "Maldición Generacional",
	DiagnosisDivineTiming:        "Desincronización Divina",
	DiagnosisSpiritualBlockage:   "Bloqueo Espiritual",
}

// Diagnoses returns every diagnosis value, in a fixed order.
func Diagnoses() []Diagnosis {
	return []Diagnosis{
		DiagnosisFinancialCeiling,
		DiagnosisSpiritualBlockage,
		DiagnosisPurposeMisalignment,
		DiagnosisGenerationalCurse,
		DiagnosisDivineTiming,
	}
}

// Label returns the short display name of d.
func (d Diagnosis) Label() string {
	if l, ok := diagnosisLabels[d]; ok {
		return l
	}
	return string(d)
}

// diagnosisFor is the fixed 5-way mapping from dominant pain.
// shame-guilt has no dedicated diagnosis and falls through.
func diagnosisFor(p PainCategory) Diagnosis {
	switch p {
	case PainPrayerCeiling:
		return DiagnosisFinancialCeiling
	case PainDivineDoubt:
		return DiagnosisPurposeMisalignment
	case PainFamilyPressure:
		return DiagnosisGenerationalCurse
	case PainTimePressure:
		return DiagnosisDivineTiming
	default:
		return DiagnosisSpiritualBlockage
	}
}

// --- Triggers ---

// Trigger is an emotional-trigger tag derived from present pain categories.
type Trigger string

const (
	TriggerShameRelief         Trigger = "shame_relief"
	TriggerProviderIdentity    Trigger = "provider_identity"
	TriggerSpiritualValidation Trigger = "spiritual_validation"
	TriggerUrgencyScarcity     Trigger = "urgency_scarcity"
)

// triggerOrder fixes the order triggers are appended in.
// prayer-ceiling deliberately has no trigger.
var triggerOrder = []struct {
	pain    PainCategory
	trigger Trigger
}{
	{PainShameGuilt, TriggerShameRelief},
	{PainFamilyPressure, TriggerProviderIdentity},
	{PainDivineDoubt, TriggerSpiritualValidation},
	{PainTimePressure, TriggerUrgencyScarcity},
}

// --- Tagging ---

// Tags is the authoring-time classification of one answer token.
type Tags struct {
	Pains    []PainCategory `json:"pains,omitempty" yaml:"pains,omitempty"`
	Distress bool           `json:"distress,omitempty" yaml:"distress,omitempty"`
}

// Has reports whether t carries pain p.
func (t Tags) Has(p PainCategory) bool {
	for _, x := range t.Pains {
		if x == p {
			return true
		}
	}
	return false
}

// TagToken applies the keyword rules to a single answer token.
// Pains are returned in enumeration order.
func TagToken(token string) Tags {
	var t Tags
	for _, p := range painOrder {
		if containsAny(token, painKeywords[p]) {
			t.Pains = append(t.Pains, p)
		}
	}
	t.Distress = containsAny(token, distressKeywords)
	return t
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// --- Scoring ---

// UrgencyBaseline is added to every urgency score, so an empty answer set
// scores exactly this. The value is a tuned constant carried over as-is.
const UrgencyBaseline = 30.0

// MaxUrgency caps the urgency score.
const MaxUrgency = 100.0

// Result is the classifier output stored on the profile at diagnosis.
type Result struct {
	DominantPain      PainCategory         `json:"dominantPain"`
	UrgencyLevel      float64              `json:"urgencyLevel"`
	Diagnosis         Diagnosis            `json:"diagnosis"`
	EmotionalTriggers []Trigger            `json:"emotionalTriggers"`
	PainCounts        map[PainCategory]int `json:"painCounts"`
}

// ClassifyTagged scores a set of pre-tagged answers.
//
// The dominant pain is tracked best-so-far with strict greater-than over
// the fixed category order, so ties (including the all-zero case) go to
// the earlier category.
func ClassifyTagged(answers []Tags) Result {
	counts := make(map[PainCategory]int, len(painOrder))
	distress := 0
	for _, a := range answers {
		for _, p := range painOrder {
			if a.Has(p) {
				counts[p]++
			}
		}
		if a.Distress {
			distress++
		}
	}

	dominant := painOrder[0]
	for _, p := range painOrder[1:] {
		if counts[p] > counts[dominant] {
			dominant = p
		}
	}

	urgency := UrgencyBaseline
	if n := len(answers); n > 0 {
		urgency = min(MaxUrgency, float64(distress)/float64(n)*100+UrgencyBaseline)
	}

	triggers := []Trigger{}
	for _, tr := range triggerOrder {
		if counts[tr.pain] > 0 {
			triggers = append(triggers, tr.trigger)
		}
	}

	return Result{
		DominantPain:      dominant,
		UrgencyLevel:      urgency,
		Diagnosis:         diagnosisFor(dominant),
		EmotionalTriggers: triggers,
		PainCounts:        counts,
	}
}

// Classify tags every token in answers and scores the result.
// Map iteration order has no effect on the output.
func Classify(answers map[string]string) Result {
	tagged := make([]Tags, 0, len(answers))
	for _, token := range answers {
		tagged = append(tagged, TagToken(token))
	}
	return ClassifyTagged(tagged)
}
