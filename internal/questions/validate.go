package questions

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
)

const (
	MaxPromptLength     = 200
	MaxOptionTextLength = 150
	MinOptions          = 2
	MaxOptions          = 6
	MinWeight           = 1
	MaxWeight           = 5
)

// ValidateQuestion checks a single question's fields and options.
func ValidateQuestion(q Question) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(q.Question) == "" {
		errs = append(errs, ValidationError{"question", "La pregunta es requerida"})
	}
	switch {
	case q.Type == "":
		errs = append(errs, ValidationError{"type", "El tipo de pregunta es requerido"})
	case !ValidType(q.Type):
		errs = append(errs, ValidationError{"type", fmt.Sprintf("Tipo de pregunta inválido: %s", q.Type)})
	}
	if strings.TrimSpace(q.Category) == "" {
		errs = append(errs, ValidationError{"category", "La categoría es requerida"})
	}
	if utf8.RuneCountInString(q.Question) > MaxPromptLength {
		errs = append(errs, ValidationError{"question", fmt.Sprintf("La pregunta no puede exceder %d caracteres", MaxPromptLength)})
	}

	if len(q.Options) < MinOptions {
		errs = append(errs, ValidationError{"options", fmt.Sprintf("Debe tener al menos %d opciones", MinOptions)})
	}
	if len(q.Options) > MaxOptions {
		errs = append(errs, ValidationError{"options", fmt.Sprintf("No puede tener más de %d opciones", MaxOptions)})
	}
	for i, o := range q.Options {
		errs = append(errs, validateOption(o, i)...)
	}
	return errs
}

func validateOption(o Option, index int) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("options[%d]", index)
	n := index + 1

	if strings.TrimSpace(o.Text) == "" {
		errs = append(errs, ValidationError{prefix + ".text", fmt.Sprintf("Opción %d: El texto es requerido", n)})
	}
	if strings.TrimSpace(o.Value) == "" {
		errs = append(errs, ValidationError{prefix + ".value", fmt.Sprintf("Opción %d: El valor es requerido", n)})
	}
	if o.Weight < MinWeight || o.Weight > MaxWeight {
		errs = append(errs, ValidationError{prefix + ".weight", fmt.Sprintf("Opción %d: El peso debe estar entre %d y %d", n, MinWeight, MaxWeight)})
	}
	if utf8.RuneCountInString(o.Text) > MaxOptionTextLength {
		errs = append(errs, ValidationError{prefix + ".text", fmt.Sprintf("Opción %d: El texto no puede exceder %d caracteres", n, MaxOptionTextLength)})
	}
	return errs
}

// ValidateList checks the invariants that span the whole bank: unique
// question ids, unique option values per question, and at least one
// active question of every block type.
func ValidateList(list []Question) []ValidationError {
	var errs []ValidationError

	if dups := duplicates(list, func(q Question) string { return q.ID }); len(dups) > 0 {
		errs = append(errs, ValidationError{"general", "IDs duplicados encontrados: " + strings.Join(dups, ", ")})
	}

	for i, q := range list {
		values := make([]string, len(q.Options))
		for j, o := range q.Options {
			values[j] = o.Value
		}
		if dups := duplicates(values, func(v string) string { return v }); len(dups) > 0 {
			errs = append(errs, ValidationError{"general", fmt.Sprintf("Pregunta %d: Valores de opción duplicados: %s", i+1, strings.Join(dups, ", "))})
		}
	}

	counts := make(map[QuestionType]int, len(validTypes))
	for _, q := range list {
		if q.IsActive {
			counts[q.Type]++
		}
	}
	missing := map[QuestionType]string{
		TypePositive: "Debe haber al menos 1 pregunta positiva",
		TypeNeutral:  "Debe haber al menos 1 pregunta neutral",
		TypeNegative: "Debe haber al menos 1 pregunta negativa",
	}
	for _, t := range Types() {
		if counts[t] < 1 {
			errs = append(errs, ValidationError{"general", missing[t]})
		}
	}
	return errs
}

// ValidateAll runs ValidateQuestion on every entry, prefixing fields with
// the question's position, followed by ValidateList.
func ValidateAll(list []Question) []ValidationError {
	var errs []ValidationError
	for i, q := range list {
		for _, e := range ValidateQuestion(q) {
			e.Field = fmt.Sprintf("questions[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
	}
	return append(errs, ValidateList(list)...)
}

// duplicates returns every repeated key after its first occurrence, in order.
func duplicates[T any](items []T, key func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var dups []string
	for _, it := range items {
		k := key(it)
		if seen[k] {
			dups = append(dups, k)
			continue
		}
		seen[k] = true
	}
	return dups
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Sanitize trims free text, normalises option values to lower-kebab form
// and recomputes each option's classifier tags from its value.
func Sanitize(q Question) Question {
	out := q.clone()
	out.Question = strings.TrimSpace(out.Question)
	out.Category = strings.TrimSpace(out.Category)
	for i := range out.Options {
		o := &out.Options[i]
		o.Text = strings.TrimSpace(o.Text)
		o.Value = whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(o.Value)), "-")
		o.Tags = classifier.TagToken(o.Value)
	}
	return out
}

// retag recomputes option tags in place. Banks written before options
// carried tags load with empty ones.
func retag(list []Question) []Question {
	for i := range list {
		for j := range list[i].Options {
			o := &list[i].Options[j]
			o.Tags = classifier.TagToken(o.Value)
		}
	}
	return list
}
