package questions

import (
	"testing"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
)

func TestDefaultQuestions(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	list := DefaultQuestions(now)

	if len(list) != 8 {
		t.Fatalf("len = %d, want 8", len(list))
	}
	if errs := ValidateAll(list); len(errs) != 0 {
		t.Fatalf("defaults fail validation: %v", errs)
	}

	wantTypes := []QuestionType{
		TypePositive, TypePositive, TypePositive,
		TypeNeutral, TypeNeutral,
		TypeNegative, TypeNegative, TypeNegative,
	}
	for i, q := range list {
		if q.Type != wantTypes[i] {
			t.Errorf("list[%d].Type = %s, want %s", i, q.Type, wantTypes[i])
		}
		if q.Order != i+1 || !q.IsActive || !q.CreatedAt.Equal(now) {
			t.Errorf("list[%d] order/active/createdAt = %d/%v/%v", i, q.Order, q.IsActive, q.CreatedAt)
		}
		if len(q.Options) != 4 {
			t.Errorf("list[%d] has %d options, want 4", i, len(q.Options))
		}
	}
	if list[0].ID != "desire-main" || list[7].ID != "future-consequences" {
		t.Errorf("unexpected ids %q .. %q", list[0].ID, list[7].ID)
	}
}

func TestDefaultQuestions_OptionsCarryTags(t *testing.T) {
	list := DefaultQuestions(time.Now())
	var blockage Question
	for _, q := range list {
		if q.ID == "main-blockage" {
			blockage = q
		}
	}
	o, ok := blockage.Option("prayer-ceiling")
	if !ok {
		t.Fatal("main-blockage has no prayer-ceiling option")
	}
	if !o.Tags.Has(classifier.PainPrayerCeiling) || !o.Tags.Distress {
		t.Errorf("prayer-ceiling tags = %+v", o.Tags)
	}
}
