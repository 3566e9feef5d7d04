package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

// ResultsPrefix names batch result downloads.
const ResultsPrefix = "exoplanet_analysis_results"

// FileName builds a timestamp-qualified download name, e.g.
// exoplanet_analysis_results_1700000000000.csv.
func FileName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%d.%s", prefix, now.UnixMilli(), ext)
}

// Report is the single-analysis export document.
type Report struct {
	Result     verdict.Verdict `json:"result" yaml:"result"`
	Parameters Row             `json:"parameters" yaml:"parameters"`
	Timestamp  string          `json:"timestamp" yaml:"timestamp"`
	AnalysisID string          `json:"analysis_id" yaml:"analysis_id"`
}

// NewReport stamps a verdict and its inputs with an analysis ID derived from now.
func NewReport(v verdict.Verdict, rec schema.Record, now time.Time) Report {
	return Report{
		Result:     v,
		Parameters: RecordRow(rec),
		Timestamp:  now.UTC().Format("2006-01-02T15:04:05.000Z"),
		AnalysisID: fmt.Sprintf("EXO-%d", now.UnixMilli()),
	}
}

// FileName is the download name for the report.
func (r Report) FileName() string {
	return "exoplanet_analysis_" + r.AnalysisID + ".json"
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush YAML: %w", err)
	}
	return nil
}

// ResultParquetRow is the columnar layout of a classified record.
type ResultParquetRow struct {
	Orbper          float64 `parquet:"orbper"`
	Trandep         float64 `parquet:"trandep"`
	Trandur         float64 `parquet:"trandur"`
	Rade            float64 `parquet:"rade"`
	Insol           float64 `parquet:"insol"`
	Eqt             float64 `parquet:"eqt"`
	Teff            float64 `parquet:"teff"`
	Logg            float64 `parquet:"logg"`
	Rad             float64 `parquet:"rad"`
	ModelPrediction string  `parquet:"model_prediction"`
	ConfidenceScore float64 `parquet:"confidence_score"`
}

// WriteParquet writes records and their verdicts, paired by index.
func WriteParquet(w io.Writer, records []schema.Record, verdicts []verdict.Verdict) error {
	if len(records) == 0 {
		return ErrEmptyExport
	}
	if len(records) != len(verdicts) {
		return fmt.Errorf("have %d records but %d verdicts", len(records), len(verdicts))
	}

	rows := make([]ResultParquetRow, len(records))
	for i, rec := range records {
		v := rec.Values()
		rows[i] = ResultParquetRow{
			Orbper: v[0], Trandep: v[1], Trandur: v[2], Rade: v[3], Insol: v[4],
			Eqt: v[5], Teff: v[6], Logg: v[7], Rad: v[8],
			ModelPrediction: string(verdicts[i].Category),
			ConfidenceScore: verdicts[i].Confidence,
		}
	}

	pw := parquet.NewGenericWriter[ResultParquetRow](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
