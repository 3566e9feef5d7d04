package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNotANumber is returned when a value cannot be read as a finite number.
	ErrNotANumber = errors.New("not a number")
	// ErrOutOfRange is returned when a value falls outside the entry bounds.
	ErrOutOfRange = errors.New("out of range")
	// ErrUnknownKey is returned for keys that are not part of the schema.
	ErrUnknownKey = errors.New("unknown parameter key")
)

// Entry describes one required physical parameter
type Entry struct {
	Key     string  `json:"key" yaml:"key"`
	ID      string  `json:"id" yaml:"id"`
	Prompt  string  `json:"prompt" yaml:"prompt"`
	Hint    string  `json:"hint" yaml:"hint"`
	Example string  `json:"example" yaml:"example"`
	Unit    string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
}

// Size is the number of parameters every record carries.
const Size = 9

// Bounds are the observed ranges of the training catalogue.
var entries = [Size]Entry{
	{
		Key:     "orbper",
		ID:      "orbital_period",
		Prompt:  "What is the orbital period in days?",
		Hint:    "Time for one complete orbit around the star (0.16 - 35.9 days)",
		Example: "1",
		Unit:    "days",
		Min:     0.16,
		Max:     35.9,
	},
	{
		Key:     "trandep",
		ID:      "transit_depth",
		Prompt:  "What is the transit depth in ppm?",
		Hint:    "How much the star dims during transit (0.05 - 14187.7 ppm)",
		Example: "100",
		Unit:    "ppm",
		Min:     0.05,
		Max:     14187.7,
	},
	{
		Key:     "trandur",
		ID:      "transit_duration",
		Prompt:  "What is the transit duration in hours?",
		Hint:    "How long the transit lasts (0 - 7.87 hours)",
		Example: "3.5",
		Unit:    "hours",
		Min:     0,
		Max:     7.87,
	},
	{
		Key:     "rade",
		ID:      "planet_radius",
		Prompt:  "What is the planet radius in Earth radii?",
		Hint:    "Size relative to Earth (0.08 - 26.36 Earth radii)",
		Example: "1.2",
		Unit:    "Earth radii",
		Min:     0.08,
		Max:     26.36,
	},
	{
		Key:     "insol",
		ID:      "insolation_flux",
		Prompt:  "What is the insolation flux in Earth flux units?",
		Hint:    "Amount of stellar energy received (0.015 - 1366.64 Earth flux units)",
		Example: "1.0",
		Unit:    "Earth flux",
		Min:     0.015,
		Max:     1366.64,
	},
	{
		Key:     "eqt",
		ID:      "equilibrium_temp",
		Prompt:  "What is the equilibrium temperature in Kelvin?",
		Hint:    "Expected surface temperature (97 - 2146 K)",
		Example: "288",
		Unit:    "K",
		Min:     97,
		Max:     2146,
	},
	{
		Key:     "teff",
		ID:      "stellar_temp",
		Prompt:  "What is the stellar effective temperature in Kelvin?",
		Hint:    "Temperature of the host star (2828 - 7257 K)",
		Example: "5778",
		Unit:    "K",
		Min:     2828,
		Max:     7257,
	},
	{
		Key:     "logg",
		ID:      "stellar_logg",
		Prompt:  "What is the stellar log(g) in cm/s²?",
		Hint:    "Surface gravity of the star (3.89 - 4.91)",
		Example: "4.5",
		Unit:    "log10(cm/s²)",
		Min:     3.89,
		Max:     4.91,
	},
	{
		Key:     "rad",
		ID:      "stellar_radius",
		Prompt:  "What is the stellar radius in solar radii?",
		Hint:    "Size relative to the Sun (0.16 - 2.07 solar radii)",
		Example: "1.0",
		Unit:    "solar radii",
		Min:     0.16,
		Max:     2.07,
	},
}

var byKey = func() map[string]int {
	m := make(map[string]int, Size)
	for i, e := range entries {
		m[e.Key] = i
	}
	return m
}()

// Entries returns a copy of the schema in canonical order.
func Entries() []Entry {
	out := make([]Entry, Size)
	copy(out, entries[:])
	return out
}

// Keys returns the canonical keys in schema order.
func Keys() []string {
	keys := make([]string, Size)
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// At returns the entry at position i.
func At(i int) (Entry, bool) {
	if i < 0 || i >= Size {
		return Entry{}, false
	}
	return entries[i], true
}

// Lookup finds the entry for a canonical key.
func Lookup(key string) (Entry, bool) {
	i, ok := byKey[key]
	if !ok {
		return Entry{}, false
	}
	return entries[i], true
}

// Question combines the prompt and hint shown to the operator.
func (e Entry) Question() string {
	return fmt.Sprintf("%s\n\n💡 %s", e.Prompt, e.Hint)
}

// ParseValue reads raw operator input as a finite float.
func ParseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrNotANumber
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotANumber
	}
	return v, nil
}

// Validate checks value against the bounds of key. Bounds are inclusive.
func Validate(key string, value float64) error {
	e, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrNotANumber
	}
	if value < e.Min || value > e.Max {
		return &RangeError{Key: key, Value: value, Min: e.Min, Max: e.Max}
	}
	return nil
}

// ValidateRaw parses and validates operator input in one step.
func ValidateRaw(key, raw string) (float64, error) {
	if _, ok := Lookup(key); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := ParseValue(raw)
	if err != nil {
		return 0, err
	}
	if err := Validate(key, v); err != nil {
		return 0, err
	}
	return v, nil
}

// RangeError reports a value outside the schema bounds.
type RangeError struct {
	Key   string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value must be between %s and %s", e.Key, FormatValue(e.Min), FormatValue(e.Max))
}

func (e *RangeError) Unwrap() error { return ErrOutOfRange }

// Message turns a validation error into the retry text shown to the operator.
func Message(err error) string {
	var rangeErr *RangeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rangeErr):
		return fmt.Sprintf("⚠️ Value must be between %s and %s. Please try again.", FormatValue(rangeErr.Min), FormatValue(rangeErr.Max))
	case errors.Is(err, ErrNotANumber):
		return "⚠️ Please enter a valid number. Please try again."
	default:
		return "⚠️ " + err.Error()
	}
}

// FormatValue renders a float without trailing zeros.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
