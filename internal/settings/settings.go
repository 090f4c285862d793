// Package settings stores the two admin-edited blobs the funnel reads:
// the tracking pixel configuration and the block-transition copy.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/logging"
)

// CodePlaceholder is replaced with the visitor's divine code on render.
const CodePlaceholder = "{divineCode}"

// Transition keys, "<from>-<to>" block types.
const (
	KeyPositiveNeutral = "positive-neutral"
	KeyNeutralNegative = "neutral-negative"
)

const (
	MinRedirectDelay = 2
	MaxRedirectDelay = 10
)

// PixelSettings configures the tracking snippet injected into the page head.
type PixelSettings struct {
	FacebookPixelID string `json:"facebookPixelId"`
	CustomHeadCode  string `json:"customHeadCode"`
	IsActive        bool   `json:"isActive"`
}

// TransitionSettings is the copy and timing of one block-transition screen.
// RedirectDelay is in seconds.
type TransitionSettings struct {
	AutoRedirect  bool   `json:"autoRedirect"`
	RedirectDelay int    `json:"redirectDelay"`
	ButtonText    string `json:"buttonText"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Description   string `json:"description"`
}

// Delay is RedirectDelay as a duration.
func (t TransitionSettings) Delay() time.Duration {
	return time.Duration(t.RedirectDelay) * time.Second
}

// Render substitutes the divine code into the text fields.
func (t TransitionSettings) Render(divineCode string) TransitionSettings {
	r := strings.NewReplacer(CodePlaceholder, divineCode)
	t.Title = r.Replace(t.Title)
	t.Subtitle = r.Replace(t.Subtitle)
	t.Description = r.Replace(t.Description)
	return t
}

// DefaultTransitions returns the built-in copy for both transitions.
func DefaultTransitions() map[string]TransitionSettings {
	return map[string]TransitionSettings{
		KeyPositiveNeutral: {
			AutoRedirect:  true,
			RedirectDelay: 3,
			ButtonText:    "Continuar",
			Title:         "¡Increíble!",
			Description: "Tu Código Divino {divineCode} revela un potencial extraordinario para lo que más deseas…\n\n" +
				"Pero incluso los códigos más poderosos pueden estar bloqueados por patrones que tú no creaste.\n\n" +
				"Vamos a investigar qué puede estar impidiendo que todo eso se manifieste.",
		},
		KeyNeutralNegative: {
			AutoRedirect:  true,
			RedirectDelay: 3,
			ButtonText:    "Continuar",
			Title:         "Estamos cerca...",
			Description: "Tus respuestas revelan patrones que no aparecen en cualquier persona.\n\n" +
				"Junto a tu Código {divineCode}, forman una combinación muy específica.\n\n" +
				"Lo que veremos a seguir puede doler un poco.\nPero es lo que te separa de una nueva etapa.",
		},
	}
}

// fallbackTransition serves block pairs without configured copy.
var fallbackTransition = TransitionSettings{
	AutoRedirect:  true,
	RedirectDelay: 3,
	ButtonText:    "Continuar",
}

var (
	ErrUnknownTransition = errors.New("settings: unknown transition key")
	ErrInvalidPixelID    = errors.New("settings: facebook pixel id must be numeric")
	ErrInvalidTransition = errors.New("settings: invalid transition")
)

var pixelIDPattern = regexp.MustCompile(`^[0-9]{5,20}$`)

// ValidatePixel checks the pixel id format when one is set.
func ValidatePixel(p PixelSettings) error {
	if p.FacebookPixelID != "" && !pixelIDPattern.MatchString(p.FacebookPixelID) {
		return ErrInvalidPixelID
	}
	return nil
}

// ValidateTransition checks the delay range and button text.
func ValidateTransition(t TransitionSettings) error {
	var errs []error
	if t.AutoRedirect && (t.RedirectDelay < MinRedirectDelay || t.RedirectDelay > MaxRedirectDelay) {
		errs = append(errs, fmt.Errorf("redirect delay %d out of range %d-%d", t.RedirectDelay, MinRedirectDelay, MaxRedirectDelay))
	}
	if strings.TrimSpace(t.ButtonText) == "" {
		errs = append(errs, errors.New("button text is required"))
	}
	return errors.Join(errs...)
}

// ─── Service ─────────────────────────────────────────────────────────────────

// Service reads and writes both blobs.
type Service struct {
	store  kvstore.Store
	logger *logging.Logger
}

// NewService returns a settings service over store.
func NewService(store kvstore.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{store: store, logger: logger}
}

// load decodes key into out. Malformed documents are logged and treated
// as absent so the defaults stay in force.
func (s *Service) load(ctx context.Context, key string, out any) (bool, error) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.logger.Warn("ignoring malformed settings", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Pixel returns the stored pixel settings, inactive when unset.
func (s *Service) Pixel(ctx context.Context) (PixelSettings, error) {
	var p PixelSettings
	found, err := s.load(ctx, kvstore.KeyPixelSettings, &p)
	if err != nil || !found {
		return PixelSettings{}, err
	}
	return p, nil
}

// SavePixel validates and stores p.
func (s *Service) SavePixel(ctx context.Context, p PixelSettings) error {
	p.FacebookPixelID = strings.TrimSpace(p.FacebookPixelID)
	if err := ValidatePixel(p); err != nil {
		return err
	}
	return s.save(ctx, kvstore.KeyPixelSettings, p)
}

// Transitions returns the defaults with any stored entries laid over them
// key by key.
func (s *Service) Transitions(ctx context.Context) (map[string]TransitionSettings, error) {
	out := DefaultTransitions()
	var stored map[string]TransitionSettings
	if _, err := s.load(ctx, kvstore.KeyTransitionSettings, &stored); err != nil {
		return out, err
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// Transition returns the settings for one "<from>-<to>" key. Pairs with no
// configured copy get a neutral fallback.
func (s *Service) Transition(ctx context.Context, key string) (TransitionSettings, error) {
	all, err := s.Transitions(ctx)
	if t, ok := all[key]; ok {
		return t, err
	}
	return fallbackTransition, err
}

// SaveTransitions stores the full transition map. Only the known keys
// are accepted.
func (s *Service) SaveTransitions(ctx context.Context, in map[string]TransitionSettings) error {
	defaults := DefaultTransitions()
	for k, v := range in {
		if _, ok := defaults[k]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTransition, k)
		}
		if err := ValidateTransition(v); err != nil {
			return fmt.Errorf("%w %s: %w", ErrInvalidTransition, k, err)
		}
	}
	return s.save(ctx, kvstore.KeyTransitionSettings, in)
}

// ResetTransitions drops the stored copy so the defaults apply again.
func (s *Service) ResetTransitions(ctx context.Context) error {
	if err := s.store.Delete(ctx, kvstore.KeyTransitionSettings); err != nil {
		return fmt.Errorf("resetting transitions: %w", err)
	}
	return nil
}
