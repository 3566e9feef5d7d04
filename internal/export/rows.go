// Package export serializes records and classification results for download.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

// ErrEmptyExport is returned when there is nothing to write.
var ErrEmptyExport = errors.New("no rows to export")

// Field is one named cell.
type Field struct {
	Key   string
	Value any
}

// Row is an ordered list of fields. Column order is the field order.
type Row []Field

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON writes the row as an object, keeping field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the key order of the input.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("row must be a JSON object")
	}

	var row Row
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if n, ok := value.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				value = f
			}
		}
		row = append(row, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = row
	return nil
}

// MarshalYAML writes the row as a mapping, keeping field order.
func (r Row) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range r {
		var value yaml.Node
		if err := value.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Key, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Key}, &value)
	}
	return node, nil
}

// RecordRow turns a parameter record into a row of its nine keys.
func RecordRow(rec schema.Record) Row {
	values := rec.Values()
	row := make(Row, 0, schema.Size)
	for i, key := range schema.Keys() {
		row = append(row, Field{Key: key, Value: values[i]})
	}
	return row
}

// ResultRows merges each submitted record with its raw service result. The
// nine parameters come first, then model_prediction and confidence_score, then
// any other fields the service echoed, sorted by name.
func ResultRows(records []schema.Record, raws []verdict.RawServiceResult) []Row {
	known := map[string]bool{"model_prediction": true, "confidence_score": true}
	for _, key := range schema.Keys() {
		known[key] = true
	}

	rows := make([]Row, 0, len(raws))
	for i, raw := range raws {
		var row Row
		for k, key := range schema.Keys() {
			if v, ok := raw[key]; ok {
				row = append(row, Field{Key: key, Value: v})
			} else if i < len(records) {
				row = append(row, Field{Key: key, Value: records[i].Values()[k]})
			}
		}

		prediction, _ := raw.String("model_prediction")
		if prediction == "" {
			if c, ok := raw.Category(); ok {
				prediction = string(c)
			}
		}
		confidence, _ := raw.Confidence()
		row = append(row,
			Field{Key: "model_prediction", Value: prediction},
			Field{Key: "confidence_score", Value: confidence},
		)

		var extra []string
		for key := range raw {
			if !known[key] {
				extra = append(extra, key)
			}
		}
		sort.Strings(extra)
		for _, key := range extra {
			row = append(row, Field{Key: key, Value: raw[key]})
		}

		rows = append(rows, row)
	}
	return rows
}

// ToDelimitedText renders rows as comma-delimited text. The header is the
// first row's keys; later rows are read by those keys and missing cells are
// empty. A value is quoted, with inner quotes doubled, only when it holds a
// comma, a quote or a line break; leading spaces and other characters are
// written as is. Lines are joined with "\n" and there is no trailing newline.
func ToDelimitedText(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", ErrEmptyExport
	}

	header := rows[0].Keys()
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinCells(header))

	cells := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			v, _ := row.Get(key)
			cells[i] = FormatValue(v)
		}
		lines = append(lines, joinCells(cells))
	}
	return strings.Join(lines, "\n"), nil
}

func joinCells(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = quoteCell(c)
	}
	return strings.Join(quoted, ",")
}

func quoteCell(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// FormatValue renders a cell the way it appears in delimited output.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
