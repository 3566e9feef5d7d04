// Package bulk turns delimited text and Parquet files into parameter records.
package bulk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/zeto-space/exoclassify/internal/schema"
)

// ErrEmptyInput is returned when the text has no header or no data rows.
var ErrEmptyInput = errors.New("CSV file must contain headers and at least one data row")

// MissingColumnsError lists every schema key the header failed to provide.
type MissingColumnsError struct {
	Keys []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing required parameters: " + strings.Join(e.Keys, ", ")
}

// InvalidCellError reports the first cell that is not a number. Row is the
// 1-based data row, not counting the header.
type InvalidCellError struct {
	Row   int
	Key   string
	Value string
}

func (e *InvalidCellError) Error() string {
	return fmt.Sprintf("Invalid value for %s in row %d: %s", e.Key, e.Row, e.Value)
}

// aliases maps header spellings to canonical keys.
var aliases = func() map[string]string {
	m := make(map[string]string, schema.Size*2)
	for _, e := range schema.Entries() {
		m[e.Key] = e.Key
		m[e.ID] = e.Key
	}
	return m
}()

// ResolveHeader maps one raw header cell to a canonical key.
func ResolveHeader(cell string) (string, bool) {
	key, ok := aliases[normalizeHeader(cell)]
	return key, ok
}

func normalizeHeader(cell string) string {
	cell = cleanCell(cell)
	cell = norm.NFKC.String(cell)
	return strings.ToLower(strings.TrimSpace(cell))
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

// Parse reads comma-delimited text. The first non-empty line is the header;
// each later non-empty line becomes one record in file order. Values are not
// range checked.
func Parse(text string) ([]schema.Record, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, ErrEmptyInput
	}

	header, err := splitLine(lines[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, schema.Size)
	for i, cell := range header {
		key, ok := ResolveHeader(cell)
		if !ok {
			continue
		}
		// A repeated alias overrides the earlier column.
		index[key] = i
	}

	var missing []string
	for _, key := range schema.Keys() {
		if _, ok := index[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Keys: missing}
	}

	keys := schema.Keys()
	records := make([]schema.Record, 0, len(lines)-1)
	for row, line := range lines[1:] {
		cells, err := splitLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row+1, err)
		}

		var values [schema.Size]float64
		for k, key := range keys {
			var raw string
			if col := index[key]; col < len(cells) {
				raw = cleanCell(cells[col])
			}
			v, err := schema.ParseValue(raw)
			if err != nil {
				return nil, &InvalidCellError{Row: row + 1, Key: key, Value: raw}
			}
			values[k] = v
		}

		rec, err := schema.FromValues(values)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		records = append(records, rec)
	}

	slog.Debug("Parsed bulk input", "rows", len(records), "columns", len(header))
	return records, nil
}

// ParseReader reads all of r and parses it.
func ParseReader(r io.Reader) ([]schema.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return Parse(string(data))
}

func splitLine(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimRight(line, "\r")))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	cells, err := reader.Read()
	if err != nil {
		return nil, err
	}
	return cells, nil
}
