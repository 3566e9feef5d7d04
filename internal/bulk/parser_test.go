package bulk

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
)

const longHeader = "orbital_period,transit_depth,transit_duration,planet_radius,insolation_flux,equilibrium_temp,stellar_temp,stellar_logg,stellar_radius"

// Every key but orbper, with matching values.
const (
	restHeader = "trandep,trandur,rade,insol,eqt,teff,logg,rad"
	restRow    = "100,3.5,1.2,1,288,5778,4.5,1"
)

func TestParseLongHeader(t *testing.T) {
	text := longHeader + "\n" +
		"1,100,3.5,1.2,1,288,5778,4.5,1\n" +
		"2,200,2,1.5,2,300,5500,4.4,0.9\n"

	records, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	want := [9]float64{2, 200, 2, 1.5, 2, 300, 5500, 4.4, 0.9}
	if diff := cmp.Diff(want, records[1].Values()); diff != "" {
		t.Errorf("Second record mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShortKeysAnyOrderWithExtras(t *testing.T) {
	text := "\ufeffRAD, logg ,teff,eqt,insol,rade,trandur,trandep,orbper,notes\r\n" +
		"\n" +
		"1,4.5,5778,288,1,1.2,3.5,100,1,hello\r\n"

	records, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	got := records[0].Map()
	if got["orbper"] != 1 || got["rad"] != 1 || got["teff"] != 5778 {
		t.Errorf("Columns resolved to wrong keys: %v", got)
	}
}

func TestParseRepeatedAliasUsesLastColumn(t *testing.T) {
	tests := []struct {
		name   string
		header string
		row    string
		want   float64
	}{
		{"short then long", "orbper,orbital_period," + restHeader, "1,2," + restRow, 2},
		{"long then short", "orbital_period,orbper," + restHeader, "3,4," + restRow, 4},
		{"same key twice", "orbper,trandep,orbper," + restHeader[len("trandep,"):], "5,100,6," + restRow[len("100,"):], 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parse(tt.header + "\n" + tt.row)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got, _ := records[0].Get("orbper"); got != tt.want {
				t.Errorf("Expected orbper %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseFullWidthHeader(t *testing.T) {
	// Full-width letters fold to ASCII under NFKC.
	text := "ｏｒｂｐｅｒ,trandep,trandur,rade,insol,eqt,teff,logg,rad\n1,100,3.5,1.2,1,288,5778,4.5,1"
	if _, err := Parse(text); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestParseMissingColumns(t *testing.T) {
	text := "orbital_period,transit_depth,transit_duration,planet_radius,insolation_flux,equilibrium_temp,stellar_temp\n1,100,3.5,1.2,1,288,5778"

	_, err := Parse(text)
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingColumnsError, got %v", err)
	}
	if diff := cmp.Diff([]string{"logg", "rad"}, missing.Keys); diff != "" {
		t.Errorf("Missing keys mismatch (-want +got):\n%s", diff)
	}
	if err.Error() != "Missing required parameters: logg, rad" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestParseInvalidCell(t *testing.T) {
	text := longHeader + "\n" +
		"1,100,3.5,1.2,1,288,5778,4.5,1\n" +
		"2,abc,2,1.5,2,300,5500,4.4,0.9\n"

	records, err := Parse(text)
	if records != nil {
		t.Errorf("Expected no records on failure, got %d", len(records))
	}
	var cell *InvalidCellError
	if !errors.As(err, &cell) {
		t.Fatalf("Expected InvalidCellError, got %v", err)
	}
	if cell.Row != 2 || cell.Key != "trandep" || cell.Value != "abc" {
		t.Errorf("Unexpected error fields: %+v", cell)
	}
	if err.Error() != "Invalid value for trandep in row 2: abc" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestParseShortRowIsInvalid(t *testing.T) {
	text := longHeader + "\n1,100,3.5\n"

	_, err := Parse(text)
	var cell *InvalidCellError
	if !errors.As(err, &cell) {
		t.Fatalf("Expected InvalidCellError, got %v", err)
	}
	if cell.Key != "rade" || cell.Value != "" {
		t.Errorf("Unexpected error fields: %+v", cell)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   \n\n", longHeader, longHeader + "\n   \n"} {
		if _, err := Parse(text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Expected ErrEmptyInput for %q, got %v", text, err)
		}
	}
}

func TestParseDoesNotCheckRange(t *testing.T) {
	text := longHeader + "\n999,100,3.5,1.2,1,288,5778,4.5,1\n"
	records, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v, _ := records[0].Get("orbper"); v != 999 {
		t.Errorf("Expected 999, got %v", v)
	}
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.parquet")
	rows := []ParquetRow{
		{Orbper: 1, Trandep: 100, Trandur: 3.5, Rade: 1.2, Insol: 1, Eqt: 288, Teff: 5778, Logg: 4.5, Rad: 1},
		{Orbper: 2, Trandep: 200, Trandur: 2, Rade: 1.5, Insol: 2, Eqt: 300, Teff: 5500, Logg: 4.4, Rad: 0.9},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	records, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if diff := cmp.Diff(rows[1].Values(), records[1].Values()); diff != "" {
		t.Errorf("Record mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadParquetMissingColumns(t *testing.T) {
	type partial struct {
		Orbper float64 `parquet:"orbper"`
	}
	path := filepath.Join(t.TempDir(), "partial.parquet")
	if err := parquet.WriteFile(path, []partial{{Orbper: 1}}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := LoadParquet(path)
	var missing *MissingColumnsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingColumnsError, got %v", err)
	}
	if len(missing.Keys) != 8 {
		t.Errorf("Expected 8 missing keys, got %v", missing.Keys)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	if _, err := Load("data.xlsx"); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}
