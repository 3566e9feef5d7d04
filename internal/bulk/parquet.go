package bulk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/zeto-space/exoclassify/internal/schema"
)

// ParquetRow is the columnar layout for bulk input, one column per canonical key.
type ParquetRow struct {
	Orbper  float64 `parquet:"orbper"`
	Trandep float64 `parquet:"trandep"`
	Trandur float64 `parquet:"trandur"`
	Rade    float64 `parquet:"rade"`
	Insol   float64 `parquet:"insol"`
	Eqt     float64 `parquet:"eqt"`
	Teff    float64 `parquet:"teff"`
	Logg    float64 `parquet:"logg"`
	Rad     float64 `parquet:"rad"`
}

// Values returns the row in schema order.
func (r ParquetRow) Values() [schema.Size]float64 {
	return [schema.Size]float64{r.Orbper, r.Trandep, r.Trandur, r.Rade, r.Insol, r.Eqt, r.Teff, r.Logg, r.Rad}
}

// ParquetRowFrom converts a record into its columnar form.
func ParquetRowFrom(rec schema.Record) ParquetRow {
	v := rec.Values()
	return ParquetRow{
		Orbper: v[0], Trandep: v[1], Trandur: v[2], Rade: v[3], Insol: v[4],
		Eqt: v[5], Teff: v[6], Logg: v[7], Rad: v[8],
	}
}

// LoadParquet reads records from a Parquet file whose columns use the canonical keys.
func LoadParquet(path string) ([]schema.Record, error) {
	slog.Debug("Opening Parquet file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	var missing []string
	for _, key := range schema.Keys() {
		if _, ok := pf.Schema().Lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Keys: missing}
	}

	reader := parquet.NewGenericReader[ParquetRow](pf)
	defer reader.Close()

	var records []schema.Record
	rows := make([]ParquetRow, 128)
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			rec, recErr := schema.FromValues(rows[i].Values())
			if recErr != nil {
				return nil, fmt.Errorf("row %d: %w", len(records)+1, recErr)
			}
			records = append(records, rec)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	slog.Debug("Finished reading Parquet file", "total_records", len(records))
	return records, nil
}

// Load dispatches on the file extension: .parquet or delimited text.
func Load(path string) ([]schema.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return LoadParquet(path)
	case ".csv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
		}
		defer f.Close()
		return ParseReader(f)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .csv, .parquet)", filepath.Ext(path))
	}
}
