package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Record is a complete parameter set: one finite value per schema key.
type Record struct {
	values [Size]float64
}

// NewRecord builds a record from a key/value map. Every schema key must be
// present with a finite value.
func NewRecord(values map[string]float64) (Record, error) {
	var arr [Size]float64
	var missing []string
	for i, e := range entries {
		v, ok := values[e.Key]
		if !ok {
			missing = append(missing, e.Key)
			continue
		}
		arr[i] = v
	}
	if len(missing) > 0 {
		return Record{}, fmt.Errorf("record missing keys: %v", missing)
	}
	return FromValues(arr)
}

// FromValues builds a record from values in schema order.
func FromValues(values [Size]float64) (Record, error) {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, fmt.Errorf("%s: %w", entries[i].Key, ErrNotANumber)
		}
	}
	return Record{values: values}, nil
}

// Get returns the value stored for key.
func (r Record) Get(key string) (float64, bool) {
	i, ok := byKey[key]
	if !ok {
		return 0, false
	}
	return r.values[i], true
}

// Values returns the values in schema order.
func (r Record) Values() [Size]float64 {
	return r.values
}

// Equal reports whether both records hold the same values.
func (r Record) Equal(o Record) bool {
	return r.values == o.values
}

// Map returns the record as a plain key/value map.
func (r Record) Map() map[string]float64 {
	m := make(map[string]float64, Size)
	for i, e := range entries {
		m[e.Key] = r.values[i]
	}
	return m
}

// CheckRange validates every value against its bounds and returns the first violation.
func (r Record) CheckRange() error {
	for i, e := range entries {
		if err := Validate(e.Key, r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON writes the record as an object in schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(e.Key)
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object holding all nine keys.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	rec, err := NewRecord(m)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
