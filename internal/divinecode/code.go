// Package divinecode derives the three-digit "divine code" from the
// inputs collected in the first funnel steps.
//
// Everything here is pure: no I/O, no clock, no randomness. The same
// inputs always produce the same code, which is what lets the funnel
// compute it once on entering processing-code and never again.
package divinecode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --- Color enum ---

// Color is one of the eight selectable colors of the color-selection step.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
	ColorOrange Color = "orange"
	ColorTeal   Color = "teal"
)

// colorOrder is the canonical order; a color's weight is its 1-based position.
var colorOrder = []Color{
	ColorRed, ColorBlue, ColorGreen, ColorYellow,
	ColorPurple, ColorPink, ColorOrange, ColorTeal,
}

var colorWeights = func() map[Color]int {
	m := make(map[Color]int, len(colorOrder))
	for i, c := range colorOrder {
		m[c] = i + 1
	}
	return m
}()

// Colors returns the selectable colors in canonical order.
func Colors() []Color {
	out := make([]Color, len(colorOrder))
	copy(out, colorOrder)
	return out
}

// Weight returns the fixed integer (1-8) a color contributes to the code.
// Unknown colors weigh 0.
func (c Color) Weight() int {
	return colorWeights[c]
}

// Valid reports whether c is one of the eight known colors.
func (c Color) Valid() bool {
	_, ok := colorWeights[c]
	return ok
}

// ParseColor normalizes s and returns the matching Color.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid color %q: must be one of: %s", s, joinColors())
	}
	return c, nil
}

func joinColors() string {
	names := make([]string, len(colorOrder))
	for i, c := range colorOrder {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// --- Inputs ---

// BirthDate is the day/month/year triple captured by the birthdate step.
type BirthDate struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

const (
	MinYear           = 1900
	MinFavoriteNumber = 1
	MaxFavoriteNumber = 9
)

// ValidateBirthDate applies the range checks of the birthdate step:
// day 1-31, month 1-12, year 1900 through the year of now.
// Calendar validity (e.g. 31 February) is deliberately not checked.
func ValidateBirthDate(b BirthDate, now time.Time) error {
	var errs []error
	if b.Day < 1 || b.Day > 31 {
		errs = append(errs, fmt.Errorf("day %d out of range 1-31", b.Day))
	}
	if b.Month < 1 || b.Month > 12 {
		errs = append(errs, fmt.Errorf("month %d out of range 1-12", b.Month))
	}
	if b.Year < MinYear || b.Year > now.Year() {
		errs = append(errs, fmt.Errorf("year %d out of range %d-%d", b.Year, MinYear, now.Year()))
	}
	return errors.Join(errs...)
}

// ValidateFavoriteNumber checks the 1-9 range of the favorite-number step.
func ValidateFavoriteNumber(n int) error {
	if n < MinFavoriteNumber || n > MaxFavoriteNumber {
		return fmt.Errorf("favorite number %d out of range %d-%d", n, MinFavoriteNumber, MaxFavoriteNumber)
	}
	return nil
}

// ValidateInputs runs every range check ComputeCode relies on.
func ValidateInputs(b BirthDate, c Color, favoriteNumber int, now time.Time) error {
	var errs []error
	if err := ValidateBirthDate(b, now); err != nil {
		errs = append(errs, err)
	}
	if !c.Valid() {
		errs = append(errs, fmt.Errorf("invalid color %q", c))
	}
	if err := ValidateFavoriteNumber(favoriteNumber); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// --- Code ---

// ComputeCode maps the inputs to "d1-d2-d3" with every digit in [1,9].
//
//	d1 = (day*3 + fav) mod 9 + 1
//	d2 = (month*7 + colorWeight) mod 9 + 1
//	d3 = ((day + month + year mod 100)*2 + fav + colorWeight) mod 9 + 1
func ComputeCode(b BirthDate, c Color, favoriteNumber int) string {
	cw := c.Weight()
	sum := b.Day + b.Month + b.Year%100

	d1 := digit(b.Day*3 + favoriteNumber)
	d2 := digit(b.Month*7 + cw)
	d3 := digit(sum*2 + favoriteNumber + cw)

	return fmt.Sprintf("%d-%d-%d", d1, d2, d3)
}

// digit folds n into [1,9]. Inputs are pre-validated, but a negative
// sum must still land in range.
func digit(n int) int {
	m := n % 9
	if m < 0 {
		m += 9
	}
	return m + 1
}

// Digits splits a code into its three digits. ok is false when the
// string is not of the form d-d-d with digits 1-9.
func Digits(code string) (digits [3]int, ok bool) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		return digits, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 9 || len(p) != 1 {
			return digits, false
		}
		digits[i] = n
	}
	return digits, true
}

// --- Meaning ---

// GenericMeaning is returned for every code without a curated phrase.
const GenericMeaning = "Propósito Único e Extraordinário de Manifestação"

var meanings = map[string]string{
	"1-1-1": "Liderança Divina e Manifestação Suprema",
	"1-2-3": "Criatividade Espiritual e Abundância Crescente",
	"2-3-4": "Harmonia Financeira e Propósito Equilibrado",
	"3-4-5": "Transformação Poderosa e Crescimento Espiritual",
	"4-5-6": "Estabilidade Divina e Prosperidade Sólida",
	"5-6-7": "Liberdade Financeira e Ministério Expansivo",
	"6-7-8": "Responsabilidade Sagrada e Multiplicação",
	"7-8-9": "Perfeição Espiritual e Realização Completa",
	"8-9-1": "Poder Material e Sabedoria Divina",
	"9-1-2": "Compaixão Universal e Serviço Divino",
}

// CodeMeaning returns the curated phrase for code, or GenericMeaning.
// It is total: any string, including malformed ones, yields a phrase.
func CodeMeaning(code string) string {
	if m, ok := meanings[code]; ok {
		return m
	}
	return GenericMeaning
}

// Rarity is the "only N% of people share this code" figure shown on the
// reveal step: digit sum mod 10 plus 3, clamped to [3,12].
// Malformed codes report the minimum.
func Rarity(code string) int {
	d, ok := Digits(code)
	if !ok {
		return 3
	}
	r := (d[0]+d[1]+d[2])%10 + 3
	return max(3, min(12, r))
}
