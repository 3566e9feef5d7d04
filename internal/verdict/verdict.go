// Package verdict interprets classification service responses.
package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is one of the three fixed outcomes.
type Category string

const (
	Confirmed     Category = "confirmed"
	Candidate     Category = "candidate"
	FalsePositive Category = "false_positive"
)

const (
	genericTitle       = "Analysis Complete"
	genericDescription = "Analysis completed successfully"
)

var titles = map[Category]string{
	Confirmed:     "Confirmed Exoplanet",
	Candidate:     "Exoplanet Candidate",
	FalsePositive: "False Positive",
}

var descriptions = map[Category]string{
	Confirmed:     "Congratulations! The data strongly suggests a confirmed exoplanet detection. All parameters fall within expected ranges for a genuine planetary transit.",
	Candidate:     "Promising signals detected. The data shows characteristics consistent with a planetary transit, but additional observations are recommended for confirmation.",
	FalsePositive: "Analysis indicates this signal is likely caused by stellar activity, eclipsing binary stars, or instrumental effects rather than a genuine exoplanet.",
}

// Title is the canonical heading for c.
func (c Category) Title() string { return titles[c] }

// Description is the canonical explanation for c.
func (c Category) Description() string { return descriptions[c] }

// ParseCategory folds case and spaces ("False Positive" -> false_positive).
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
	switch c {
	case Confirmed, Candidate, FalsePositive:
		return c, true
	}
	return "", false
}

// Verdict is a normalized classification result.
type Verdict struct {
	Category    Category `json:"type" yaml:"type"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	// Coerced is set when the upstream category was missing or unrecognized.
	Coerced bool `json:"coerced,omitempty" yaml:"coerced,omitempty"`
}

// RawServiceResult is one decoded response object from the service.
type RawServiceResult map[string]any

// String returns the field as text. Numbers are formatted without trailing zeros.
func (r RawServiceResult) String(key string) (string, bool) {
	switch v := r[key].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// Number returns the field as a float, accepting numeric strings.
func (r RawServiceResult) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Category reads the category from either the single or the batch shape.
func (r RawServiceResult) Category() (Category, bool) {
	for _, key := range []string{"type", "model_prediction", "prediction"} {
		if s, ok := r.String(key); ok && s != "" {
			return ParseCategory(s)
		}
	}
	return "", false
}

// Confidence reads the percentage from either shape. ok is false when absent.
func (r RawServiceResult) Confidence() (float64, bool) {
	for _, key := range []string{"confidence", "confidence_score", "confidence_level"} {
		if v, ok := r.Number(key); ok && !math.IsNaN(v) {
			return v, true
		}
	}
	return 0, false
}

// NormalizeOne maps any response object onto a Verdict. It never fails:
// unknown categories become candidate with Coerced set, missing confidence is 0
// and out-of-range confidence is clamped to [0, 100].
func NormalizeOne(raw RawServiceResult) Verdict {
	v := Verdict{}

	category, ok := raw.Category()
	if ok {
		v.Category = category
	} else {
		v.Category = Candidate
		v.Coerced = true
	}

	confidence, _ := raw.Confidence()
	v.Confidence = clamp(confidence)

	title, _ := raw.String("title")
	description, _ := raw.String("description")
	switch {
	case title != "":
		v.Title = title
	case v.Coerced:
		v.Title = genericTitle
	default:
		v.Title = v.Category.Title()
	}
	switch {
	case description != "":
		v.Description = description
	case v.Coerced:
		v.Description = genericDescription
	default:
		v.Description = v.Category.Description()
	}

	return v
}

// NormalizeMany applies NormalizeOne to each element, preserving order.
func NormalizeMany(raws []RawServiceResult) []Verdict {
	out := make([]Verdict, len(raws))
	for i, raw := range raws {
		out[i] = NormalizeOne(raw)
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// DecodeOne reads a single response object.
func DecodeOne(body []byte) (RawServiceResult, error) {
	var raw RawServiceResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if raw == nil {
		raw = RawServiceResult{}
	}
	return raw, nil
}

// DecodeBatch reads a batch response: either an array of objects or an object
// that wraps one under results, predictions or data.
func DecodeBatch(body []byte) ([]RawServiceResult, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []RawServiceResult
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode batch response: %w", err)
		}
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}
	for _, key := range []string{"results", "predictions", "data"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		var list []RawServiceResult
		if err := json.Unmarshal(inner, &list); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		return list, nil
	}
	return nil, errors.New("batch response holds no result list")
}
