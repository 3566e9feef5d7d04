package bulk

import (
	"testing"

	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

func TestExportedTextParsesBack(t *testing.T) {
	tests := []struct {
		name   string
		values [][schema.Size]float64
	}{
		{"typical", [][schema.Size]float64{
			{1, 100, 3.5, 1.2, 1, 288, 5778, 4.5, 1},
			{9.48, 616, 2.95, 2.26, 93.6, 793, 5455, 4.47, 0.93},
		}},
		{"bounds", [][schema.Size]float64{
			{0.16, 0.05, 0, 0.08, 0.015, 97, 2828, 3.89, 0.16},
			{35.9, 14187.7, 7.87, 26.36, 1366.64, 2146, 7257, 4.91, 2.07},
		}},
		{"extremes", [][schema.Size]float64{
			{1e21, 1e-7, -0.5, 123456789.123456, 1e-300, 5e20, 0.1, 1.0 / 3, 2e-9},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := make([]schema.Record, len(tt.values))
			rows := make([]export.Row, len(tt.values))
			for i, v := range tt.values {
				rec, err := schema.FromValues(v)
				if err != nil {
					t.Fatalf("FromValues failed: %v", err)
				}
				want[i] = rec
				rows[i] = export.RecordRow(rec)
			}

			text, err := export.ToDelimitedText(rows)
			if err != nil {
				t.Fatalf("ToDelimitedText failed: %v", err)
			}
			got, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse failed on %q: %v", text, err)
			}
			if len(got) != len(want) {
				t.Fatalf("Expected %d records, got %d", len(want), len(got))
			}
			for i := range want {
				if !want[i].Equal(got[i]) {
					t.Errorf("Record %d changed in round trip:\nwant %v\ngot  %v\ntext %q", i, want[i].Values(), got[i].Values(), text)
				}
			}
		})
	}
}

func TestExportedResultsParseBack(t *testing.T) {
	rec, err := schema.FromValues([schema.Size]float64{1, 100, 3.5, 1.2, 1, 288, 5778, 4.5, 1})
	if err != nil {
		t.Fatalf("FromValues failed: %v", err)
	}
	raws := []verdict.RawServiceResult{{"model_prediction": "confirmed", "confidence_score": 88.0, "note": "a, \"b\""}}

	text, err := export.ToDelimitedText(export.ResultRows([]schema.Record{rec}, raws))
	if err != nil {
		t.Fatalf("ToDelimitedText failed: %v", err)
	}
	got, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed on %q: %v", text, err)
	}
	if len(got) != 1 || !rec.Equal(got[0]) {
		t.Errorf("Result columns disturbed the parameters: %v", got)
	}
}
