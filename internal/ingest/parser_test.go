package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xuri/excelize/v2"
)

// sheetData is one sheet of a fixture workbook: name plus rows written from A1.
type sheetData struct {
	name string
	rows [][]any
}

// writeWorkbook saves the given sheets to a temp .xlsx and returns its path.
func writeWorkbook(t *testing.T, sheets ...sheetData) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet(%q): %v", s.name, err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("CoordinatesToCellName: %v", err)
				}
				if err := f.SetCellValue(s.name, cell, v); err != nil {
					t.Fatalf("SetCellValue(%s): %v", cell, err)
				}
			}
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestParse_Basic(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sales",
		rows: [][]any{
			{"Region", "Amount", "Note"},
			{"North", 100, "first"},
			{"South", 250.5, nil},
			{"East", 75, "third"},
		},
	})

	p := NewParser(DefaultClassifier())
	res, err := p.Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Region", "Amount", "Note"}, res.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if res.RowCount != 3 || len(res.Data) != 3 {
		t.Errorf("RowCount = %d, len(Data) = %d, want 3", res.RowCount, len(res.Data))
	}
	if res.SelectedSheet != "Sales" {
		t.Errorf("SelectedSheet = %q, want %q", res.SelectedSheet, "Sales")
	}
	if res.Metadata.TotalSheets != 1 {
		t.Errorf("TotalSheets = %d, want 1", res.Metadata.TotalSheets)
	}
	if res.Metadata.FileSize <= 0 {
		t.Errorf("FileSize = %d, want > 0", res.Metadata.FileSize)
	}

	if got := res.Data[1].Values["Amount"]; got != 250.5 {
		t.Errorf("Data[1][Amount] = %v (%T), want 250.5", got, got)
	}
	if got, ok := res.Data[1].Get("Note"); !ok || got != nil {
		t.Errorf("Data[1][Note] = %v (present %v), want nil present", got, ok)
	}

	wantTypes := map[string]ColumnType{
		"Region": TypeString,
		"Amount": TypeNumber,
		"Note":   TypeString,
	}
	if diff := cmp.Diff(wantTypes, res.DataTypes); diff != "" {
		t.Errorf("DataTypes mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_RowCountMatchesData(t *testing.T) {
	rows := [][]any{{"id", "value"}}
	for i := 0; i < 25; i++ {
		rows = append(rows, []any{i + 1, fmt.Sprintf("v%d", i)})
	}
	path := writeWorkbook(t, sheetData{name: "Data", rows: rows})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.RowCount != len(res.Data) {
		t.Errorf("RowCount = %d, len(Data) = %d", res.RowCount, len(res.Data))
	}
	if res.RowCount != 25 {
		t.Errorf("RowCount = %d, want 25", res.RowCount)
	}
}

func TestParse_BlankHeadersGetPositionalNames(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{
			{"Name", nil, "  ", "Total", nil},
			{"a", 1, 2, 3, 4},
		},
	})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"Name", "Column_2", "Column_3", "Total", "Column_5"}
	if diff := cmp.Diff(want, res.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if got := res.Data[0].Values["Column_5"]; got != 4.0 {
		t.Errorf("Column_5 = %v, want 4", got)
	}
}

func TestParse_TrimsAndStringifiesHeaders(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{
			{"  Padded  ", 2024, true},
			{"x", "y", "z"},
		},
	})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"Padded", "2024", "true"}
	if diff := cmp.Diff(want, res.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DropsBlankRows(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{
			nil,
			{"A", "B"},
			{1, 2},
			nil,
			nil,
			{3, 4},
		},
	})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if diff := cmp.Diff([]string{"A", "B"}, res.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}
}

func TestParse_HeaderOnlySheet(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{{"A", "B", "C"}},
	})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.RowCount != 0 || len(res.Data) != 0 {
		t.Errorf("RowCount = %d, want 0", res.RowCount)
	}
	for _, col := range res.Columns {
		if res.DataTypes[col] != TypeEmpty {
			t.Errorf("DataTypes[%s] = %s, want empty", col, res.DataTypes[col])
		}
	}
}

func TestParse_SheetSelection(t *testing.T) {
	path := writeWorkbook(t,
		sheetData{name: "First", rows: [][]any{{"a"}, {1}}},
		sheetData{name: "Second", rows: [][]any{{"b", "c"}, {"x", "y"}, {"z", "w"}}},
	)
	p := NewParser(DefaultClassifier())

	t.Run("default is first sheet", func(t *testing.T) {
		res, err := p.Parse(path, Options{})
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if res.SelectedSheet != "First" {
			t.Errorf("SelectedSheet = %q, want First", res.SelectedSheet)
		}
		if diff := cmp.Diff([]string{"First", "Second"}, res.SheetNames); diff != "" {
			t.Errorf("SheetNames mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit override", func(t *testing.T) {
		res, err := p.Parse(path, Options{SheetName: "Second"})
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if res.SelectedSheet != "Second" || res.RowCount != 2 {
			t.Errorf("got sheet %q with %d rows, want Second with 2", res.SelectedSheet, res.RowCount)
		}
	})

	t.Run("missing sheet", func(t *testing.T) {
		_, err := p.Parse(path, Options{SheetName: "Nope"})
		if !errors.Is(err, ErrSheetNotFound) {
			t.Fatalf("err = %v, want ErrSheetNotFound", err)
		}
		if !strings.Contains(err.Error(), `"Nope"`) {
			t.Errorf("error %q does not name the sheet", err)
		}
	})
}

func TestParse_EmptySheet(t *testing.T) {
	path := writeWorkbook(t, sheetData{name: "Empty"})

	_, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if !errors.Is(err, ErrEmptySheet) {
		t.Fatalf("err = %v, want ErrEmptySheet", err)
	}
}

func TestParse_ErrorPrefix(t *testing.T) {
	path := writeWorkbook(t, sheetData{name: "Empty"})

	_, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Failed to process Excel file: " + ErrEmptySheet.Error()
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error %T is not a *ParseError", err)
	}
}

func TestParse_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	if err := os.WriteFile(path, []byte("definitely not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want *ProcessingError", err)
	}
	if !strings.HasPrefix(err.Error(), "Failed to process Excel file: ") {
		t.Errorf("error %q missing prefix", err)
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := NewParser(DefaultClassifier()).Parse(filepath.Join(t.TempDir(), "gone.xlsx"), Options{})
	var procErr *ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("err = %v, want *ProcessingError", err)
	}
}

// fakeWorkbook lets tests exercise workbook shapes excelize cannot save.
type fakeWorkbook struct {
	sheets []string
	rows   map[string][][]string
}

func (w *fakeWorkbook) GetSheetList() []string { return w.sheets }

func (w *fakeWorkbook) GetRows(sheet string, _ ...excelize.Options) ([][]string, error) {
	return w.rows[sheet], nil
}

func (w *fakeWorkbook) GetCellType(string, string) (excelize.CellType, error) {
	return excelize.CellTypeSharedString, nil
}

func (w *fakeWorkbook) Close() error { return nil }

func TestParse_NoSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nosheets.xlsx")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser(DefaultClassifier())
	p.open = func(string) (workbook, error) { return &fakeWorkbook{}, nil }

	_, err := p.Parse(path, Options{})
	if !errors.Is(err, ErrNoSheets) {
		t.Fatalf("err = %v, want ErrNoSheets", err)
	}
}

func TestParse_DuplicateHeadersAreRenamed(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{
			{"Date", "Date", "Amount", "Date"},
			{"a", "b", 1, "c"},
		},
	})

	res, err := NewParser(DefaultClassifier()).Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"Date", "Date_2", "Amount", "Date_3"}
	if diff := cmp.Diff(want, res.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if got := res.Data[0].Values["Date_2"]; got != "b" {
		t.Errorf("Date_2 = %v, want b", got)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("len(Warnings) = %d, want 2", len(res.Warnings))
	}
}

func TestParse_Idempotent(t *testing.T) {
	path := writeWorkbook(t, sheetData{
		name: "Sheet",
		rows: [][]any{
			{"k", "v", "when"},
			{"a", 1, "2024-01-15"},
			{"b", 2, "2024-02-20"},
		},
	})

	p := NewParser(DefaultClassifier())
	first, err := p.Parse(path, Options{SheetName: "Sheet"})
	if err != nil {
		t.Fatalf("first Parse() error = %v", err)
	}
	second, err := p.Parse(path, Options{SheetName: "Sheet"})
	if err != nil {
		t.Fatalf("second Parse() error = %v", err)
	}

	ignore := cmpopts.IgnoreFields(Metadata{}, "ProcessedAt")
	if diff := cmp.Diff(first, second, ignore); diff != "" {
		t.Errorf("re-parse differs (-first +second):\n%s", diff)
	}
}

func TestParse_ProcessedAtFromClock(t *testing.T) {
	path := writeWorkbook(t, sheetData{name: "S", rows: [][]any{{"a"}, {1}}})
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p := NewParser(DefaultClassifier())
	p.now = func() time.Time { return fixed }

	res, err := p.Parse(path, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !res.Metadata.ProcessedAt.Equal(fixed) {
		t.Errorf("ProcessedAt = %v, want %v", res.Metadata.ProcessedAt, fixed)
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		name string
		typ  excelize.CellType
		raw  string
		want any
	}{
		{"unset numeric", excelize.CellTypeUnset, "42", 42.0},
		{"number", excelize.CellTypeNumber, "3.5", 3.5},
		{"unset text", excelize.CellTypeUnset, "abc", "abc"},
		{"shared string digits stay text", excelize.CellTypeSharedString, "123", "123"},
		{"bool true", excelize.CellTypeBool, "1", true},
		{"bool false", excelize.CellTypeBool, "0", false},
		{"iso date", excelize.CellTypeDate, "2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"formula string", excelize.CellTypeFormula, "total", "total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cellValue(tt.typ, tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("cellValue(%v, %q) mismatch (-want +got):\n%s", tt.typ, tt.raw, diff)
			}
		})
	}
}
