// Package questions owns the quiz question bank.
//
// The bank is an ordered list of Question records persisted as one JSON
// document in a kvstore.Store, with a single-slot backup of the previous
// document. The Repository caches the list in memory and is the only
// writer; every mutation builds a new list, validates it in full and
// writes it through, or reports validation errors and writes nothing.
package questions

import (
	"errors"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/classifier"
)

// QuestionType places a question in one of the three quiz blocks.
type QuestionType string

const (
	TypePositive QuestionType = "positive"
	TypeNeutral  QuestionType = "neutral"
	TypeNegative QuestionType = "negative"
)

// validTypes is used for O(1) type validation.
var validTypes = map[QuestionType]bool{
	TypePositive: true,
	TypeNeutral:  true,
	TypeNegative: true,
}

// Types returns the block types in quiz order.
func Types() []QuestionType {
	return []QuestionType{TypePositive, TypeNeutral, TypeNegative}
}

// ValidType reports whether t is a known block type.
func ValidType(t QuestionType) bool {
	return validTypes[t]
}

// Option is one selectable answer. Value is the token stored in the
// profile's answers; Tags is its authoring-time classification.
type Option struct {
	ID     string          `json:"id" yaml:"id"`
	Text   string          `json:"text" yaml:"text"`
	Value  string          `json:"value" yaml:"value"`
	Weight int             `json:"weight" yaml:"weight"`
	Tags   classifier.Tags `json:"tags" yaml:"-"`
}

// Question is one bank entry.
type Question struct {
	ID        string       `json:"id" yaml:"id"`
	Type      QuestionType `json:"type" yaml:"type"`
	Category  string       `json:"category" yaml:"category"`
	Question  string       `json:"question" yaml:"question"`
	Options   []Option     `json:"options" yaml:"options"`
	Order     int          `json:"order" yaml:"-"`
	IsActive  bool         `json:"isActive" yaml:"-"`
	CreatedAt time.Time    `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time    `json:"updatedAt" yaml:"-"`
}

// Option returns the option with the given value.
func (q Question) Option(value string) (Option, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

// clone deep-copies q so callers never alias the cache.
func (q Question) clone() Question {
	out := q
	out.Options = make([]Option, len(q.Options))
	for i, o := range q.Options {
		out.Options[i] = o
		out.Options[i].Tags.Pains = append([]classifier.PainCategory(nil), o.Tags.Pains...)
	}
	return out
}

func cloneList(in []Question) []Question {
	out := make([]Question, len(in))
	for i, q := range in {
		out[i] = q.clone()
	}
	return out
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Type     *QuestionType `json:"type,omitempty"`
	Category *string       `json:"category,omitempty"`
	Question *string       `json:"question,omitempty"`
	Options  []Option      `json:"options,omitempty"`
	IsActive *bool         `json:"isActive,omitempty"`
}

// ValidationError is one field-level problem. A non-empty list means the
// write was rejected.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Field + ": " + e.Message
}

// Stats summarises the bank for the admin dashboard.
type Stats struct {
	TotalQuestions  int                  `json:"totalQuestions"`
	ActiveQuestions int                  `json:"activeQuestions"`
	QuestionsByType map[QuestionType]int `json:"questionsByType"`
	LastModified    time.Time            `json:"lastModified"`
}

// ExportVersion is written into every export's metadata.
const ExportVersion = "1.0"

// ExportData is the import/export document.
type ExportData struct {
	Questions []Question     `json:"questions"`
	Metadata  ExportMetadata `json:"metadata"`
}

// ExportMetadata describes an export.
type ExportMetadata struct {
	ExportDate     time.Time `json:"exportDate"`
	Version        string    `json:"version"`
	TotalQuestions int       `json:"totalQuestions"`
}

var (
	// ErrQuestionNotFound is returned for an unknown question id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidOrder is returned when a reorder is not a permutation of the bank.
	ErrInvalidOrder = errors.New("reorder must list every question id exactly once")
	// ErrDefaultsLoaded reports that the stored bank was unreadable and the
	// built-in defaults are in use.
	ErrDefaultsLoaded = errors.New("stored questions unreadable, using the default bank")
)
