package pipeline

import (
	"fmt"

	"github.com/zeto-space/exoclassify/internal/schema"
)

// RangeError reports the first bulk value outside its schema bounds. Row is 1-based.
type RangeError struct {
	Row   int
	Key   string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("Value out of range for %s in row %d: %s (must be between %s and %s)",
		e.Key, e.Row, schema.FormatValue(e.Value), schema.FormatValue(e.Min), schema.FormatValue(e.Max))
}

func (e *RangeError) Unwrap() error { return schema.ErrOutOfRange }

// CheckRanges applies the interactive bounds to bulk records.
func CheckRanges(records []schema.Record) error {
	for i, rec := range records {
		for k, v := range rec.Values() {
			entry, _ := schema.At(k)
			if v < entry.Min || v > entry.Max {
				return &RangeError{Row: i + 1, Key: entry.Key, Value: v, Min: entry.Min, Max: entry.Max}
			}
		}
	}
	return nil
}
