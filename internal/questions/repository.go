package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/logging"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// newID generates ids for added and duplicated questions.
var newID = func() string {
	return "question-" + uuid.NewString()
}

// Repository is the cached, validated view of the question bank.
// It is safe for concurrent use within one process.
type Repository struct {
	store  kvstore.Store
	logger *logging.Logger

	mu        sync.RWMutex
	questions []Question
	loaded    bool
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithLogger sets the repository's logger.
func WithLogger(l *logging.Logger) RepositoryOption {
	return func(r *Repository) { r.logger = l }
}

// NewRepository returns a repository over store. Nothing is read until
// Reload or the first access.
func NewRepository(store kvstore.Store, opts ...RepositoryOption) *Repository {
	r := &Repository{store: store, logger: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ─── Load / flush ────────────────────────────────────────────────────────────

// Reload replaces the cache with the stored bank.
//
// An absent bank is seeded with the defaults. An unreadable one also falls
// back to the defaults but returns an error wrapping ErrDefaultsLoaded so
// the caller can surface it; the repository stays usable either way.
func (r *Repository) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked(ctx)
}

func (r *Repository) reloadLocked(ctx context.Context) error {
	raw, found, err := r.store.Get(ctx, kvstore.KeyQuestions)
	if err != nil {
		r.questions = DefaultQuestions(timeNow())
		r.loaded = true
		r.logger.Error("reading question bank, using defaults", "error", err)
		return fmt.Errorf("%w: %v", ErrDefaultsLoaded, err)
	}

	if found {
		var list []Question
		perr := json.Unmarshal([]byte(raw), &list)
		if perr == nil {
			r.questions = retag(list)
			r.loaded = true
			return nil
		}
		err = fmt.Errorf("%w: %v", ErrDefaultsLoaded, perr)
		r.logger.Warn("stored question bank is malformed, reseeding defaults", "error", perr)
	}

	defaults := DefaultQuestions(timeNow())
	if werr := r.writeLocked(ctx, defaults); werr != nil {
		r.questions = defaults
		r.loaded = true
		return errors.Join(err, fmt.Errorf("seeding default questions: %w", werr))
	}
	return err
}

func (r *Repository) ensureLoaded(ctx context.Context) {
	if r.loaded {
		return
	}
	if err := r.reloadLocked(ctx); err != nil {
		r.logger.Warn("question bank loaded with fallback", "error", err)
	}
}

// Flush writes the cache through to storage.
func (r *Repository) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)
	return r.writeLocked(ctx, r.questions)
}

// writeLocked rotates the current primary document into the backup slot
// and writes list as the new primary. The cache is updated on success.
func (r *Repository) writeLocked(ctx context.Context, list []Question) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling questions: %w", err)
	}

	current, found, err := r.store.Get(ctx, kvstore.KeyQuestions)
	if err != nil {
		return fmt.Errorf("reading current questions: %w", err)
	}
	if found && current != "" {
		if err := r.store.Set(ctx, kvstore.KeyQuestionsBackup, current); err != nil {
			return fmt.Errorf("writing questions backup: %w", err)
		}
	}
	if err := r.store.Set(ctx, kvstore.KeyQuestions, string(data)); err != nil {
		return fmt.Errorf("writing questions: %w", err)
	}

	r.questions = list
	r.loaded = true
	return nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Questions returns a copy of the whole bank in stored order.
func (r *Repository) Questions(ctx context.Context) []Question {
	r.mu.Lock()
	r.ensureLoaded(ctx)
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneList(r.questions)
}

// Get returns a copy of the question with id.
func (r *Repository) Get(ctx context.Context, id string) (Question, error) {
	for _, q := range r.Questions(ctx) {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
}

// Active returns the live quiz list: active questions sorted by Order,
// ties keeping stored order.
func (r *Repository) Active(ctx context.Context) []Question {
	return ActiveOf(r.Questions(ctx))
}

// ActiveOf filters and sorts list the way Active does.
func ActiveOf(list []Question) []Question {
	out := make([]Question, 0, len(list))
	for _, q := range list {
		if q.IsActive {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Stats summarises the bank.
func (r *Repository) Stats(ctx context.Context) Stats {
	list := r.Questions(ctx)
	s := Stats{
		TotalQuestions:  len(list),
		QuestionsByType: make(map[QuestionType]int),
	}
	for _, q := range list {
		if q.IsActive {
			s.ActiveQuestions++
		}
		s.QuestionsByType[q.Type]++
		if q.UpdatedAt.After(s.LastModified) {
			s.LastModified = q.UpdatedAt
		}
	}
	if len(list) == 0 {
		s.LastModified = timeNow()
	}
	return s
}

// Validate runs the full validator over the current bank.
func (r *Repository) Validate(ctx context.Context) []ValidationError {
	return ValidateAll(r.Questions(ctx))
}

// ─── Whole-list writes ───────────────────────────────────────────────────────

// Save sanitizes and validates list and, when clean, writes it with
// backup rotation.
func (r *Repository) Save(ctx context.Context, list []Question) ([]ValidationError, error) {
	next := make([]Question, len(list))
	for i, q := range list {
		next[i] = Sanitize(q)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(ctx, next)
}

// commitLocked is the single gate every mutation passes through. Every
// question is checked, not only the list-level rules.
func (r *Repository) commitLocked(ctx context.Context, list []Question) ([]ValidationError, error) {
	if verrs := ValidateAll(list); len(verrs) > 0 {
		return verrs, nil
	}
	if err := r.writeLocked(ctx, list); err != nil {
		return nil, err
	}
	return nil, nil
}

// Restore copies the backup slot over the primary slot, rotating the
// primary into the backup. It reports false when there is no usable backup.
func (r *Repository) Restore(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, found, err := r.store.Get(ctx, kvstore.KeyQuestionsBackup)
	if err != nil {
		return false, fmt.Errorf("reading questions backup: %w", err)
	}
	if !found || raw == "" {
		return false, nil
	}
	var list []Question
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		r.logger.Warn("questions backup is malformed", "error", err)
		return false, nil
	}
	if err := r.writeLocked(ctx, retag(list)); err != nil {
		return false, err
	}
	r.logger.Info("question bank restored from backup", "total", len(list))
	return true, nil
}

// Export renders the bank as an ExportData document.
func (r *Repository) Export(ctx context.Context) ([]byte, error) {
	list := r.Questions(ctx)
	doc := ExportData{
		Questions: list,
		Metadata: ExportMetadata{
			ExportDate:     timeNow().UTC(),
			Version:        ExportVersion,
			TotalQuestions: len(list),
		},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}
	return data, nil
}

// Import replaces the bank with the questions of an ExportData document.
// It reports false, writing nothing, when the text is not JSON, has no
// "questions" array, or the imported list fails validation.
func (r *Repository) Import(ctx context.Context, data []byte) (bool, []ValidationError, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return false, nil, nil
	}
	rawQuestions, ok := envelope["questions"]
	if !ok {
		return false, nil, nil
	}
	var list []Question
	if err := json.Unmarshal(rawQuestions, &list); err != nil || list == nil {
		return false, nil, nil
	}

	now := timeNow()
	for i := range list {
		list[i] = Sanitize(list[i])
		if list[i].CreatedAt.IsZero() {
			list[i].CreatedAt = now
		}
		if list[i].UpdatedAt.IsZero() {
			list[i].UpdatedAt = now
		}
	}
	if verrs := ValidateAll(list); len(verrs) > 0 {
		return false, verrs, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeLocked(ctx, list); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// ─── Mutations ───────────────────────────────────────────────────────────────

func (r *Repository) indexOf(id string) int {
	for i, q := range r.questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Add appends q with a fresh id, Order = len+1 and current timestamps.
func (r *Repository) Add(ctx context.Context, q Question) (Question, []ValidationError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)

	now := timeNow()
	q = Sanitize(q)
	q.ID = newID()
	q.Order = len(r.questions) + 1
	q.CreatedAt = now
	q.UpdatedAt = now

	if verrs := ValidateQuestion(q); len(verrs) > 0 {
		return Question{}, verrs, nil
	}
	next := append(cloneList(r.questions), q)
	if verrs, err := r.commitLocked(ctx, next); len(verrs) > 0 || err != nil {
		return Question{}, verrs, err
	}
	return q.clone(), nil, nil
}

// Update applies p to the question with id.
func (r *Repository) Update(ctx context.Context, id string, p Patch) (Question, []ValidationError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)

	i := r.indexOf(id)
	if i < 0 {
		return Question{}, nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}

	q := r.questions[i].clone()
	if p.Type != nil {
		q.Type = *p.Type
	}
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.Question != nil {
		q.Question = *p.Question
	}
	if p.Options != nil {
		q.Options = p.Options
	}
	if p.IsActive != nil {
		q.IsActive = *p.IsActive
	}
	q = Sanitize(q)
	q.UpdatedAt = timeNow()

	if verrs := ValidateQuestion(q); len(verrs) > 0 {
		return Question{}, verrs, nil
	}
	next := cloneList(r.questions)
	next[i] = q
	if verrs, err := r.commitLocked(ctx, next); len(verrs) > 0 || err != nil {
		return Question{}, verrs, err
	}
	return q.clone(), nil, nil
}

// ToggleActive flips the question's IsActive flag.
func (r *Repository) ToggleActive(ctx context.Context, id string) (Question, []ValidationError, error) {
	q, err := r.Get(ctx, id)
	if err != nil {
		return Question{}, nil, err
	}
	active := !q.IsActive
	return r.Update(ctx, id, Patch{IsActive: &active})
}

// Delete removes the question with id.
func (r *Repository) Delete(ctx context.Context, id string) ([]ValidationError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)

	i := r.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	next := cloneList(r.questions)
	next = append(next[:i], next[i+1:]...)
	return r.commitLocked(ctx, next)
}

// Reorder arranges the bank in the order of ids and sets every Order to
// its 1-based position. ids must name every question exactly once.
func (r *Repository) Reorder(ctx context.Context, ids []string) ([]ValidationError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)

	if len(ids) != len(r.questions) {
		return nil, ErrInvalidOrder
	}
	now := timeNow()
	seen := make(map[string]bool, len(ids))
	next := make([]Question, 0, len(ids))
	for pos, id := range ids {
		i := r.indexOf(id)
		if i < 0 || seen[id] {
			return nil, ErrInvalidOrder
		}
		seen[id] = true
		q := r.questions[i].clone()
		q.Order = pos + 1
		q.UpdatedAt = now
		next = append(next, q)
	}
	return r.commitLocked(ctx, next)
}

// DuplicateSuffix is appended to a duplicated question's prompt.
const DuplicateSuffix = " (Copia)"

// Duplicate appends a copy of the question with id under a new id.
func (r *Repository) Duplicate(ctx context.Context, id string) (Question, []ValidationError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded(ctx)

	i := r.indexOf(id)
	if i < 0 {
		return Question{}, nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}

	now := timeNow()
	q := r.questions[i].clone()
	q.ID = newID()
	q.Question += DuplicateSuffix
	q.Order = len(r.questions) + 1
	q.CreatedAt = now
	q.UpdatedAt = now

	if verrs := ValidateQuestion(q); len(verrs) > 0 {
		return Question{}, verrs, nil
	}
	next := append(cloneList(r.questions), q)
	if verrs, err := r.commitLocked(ctx, next); len(verrs) > 0 || err != nil {
		return Question{}, verrs, err
	}
	return q.clone(), nil, nil
}
