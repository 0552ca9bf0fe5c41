package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// newTestGateway returns a gateway over a temp dir and a counter of parser opens.
func newTestGateway(t *testing.T, maxSize int64) (*Gateway, string, *int) {
	t.Helper()

	dir := t.TempDir()
	p := NewParser(DefaultClassifier())
	calls := 0
	open := p.open
	p.open = func(path string) (workbook, error) {
		calls++
		return open(path)
	}

	g, err := NewGateway(dir, maxSize, p)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}
	return g, dir, &calls
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestGateway_Validate(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)

	tests := []struct {
		name    string
		mime    string
		size    int64
		wantErr error
	}{
		{"xlsx accepted", xlsxMIME, 1024, nil},
		{"xls accepted", "application/vnd.ms-excel", 1024, nil},
		{"exactly at limit", xlsxMIME, DefaultMaxFileSize, nil},
		{"one byte over", xlsxMIME, DefaultMaxFileSize + 1, ErrFileTooLarge},
		{"plain text", "text/plain", 10, ErrInvalidFileType},
		{"csv", "text/csv", 10, ErrInvalidFileType},
		{"case differs", "Application/Vnd.Ms-Excel", 10, ErrInvalidFileType},
		{"parameters not stripped", "application/vnd.ms-excel; charset=binary", 10, ErrInvalidFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.mime, tt.size)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateway_DefaultCeiling(t *testing.T) {
	g, _, _ := newTestGateway(t, 0)
	if g.MaxFileSize() != 10485760 {
		t.Errorf("MaxFileSize() = %d, want 10485760", g.MaxFileSize())
	}
}

func TestGateway_RejectsBeforeParsing(t *testing.T) {
	g, dir, calls := newTestGateway(t, 0)

	_, _, err := g.Ingest(context.Background(), Upload{
		Reader:       strings.NewReader("hello"),
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
		Size:         5,
	})
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("Ingest() error = %v, want ErrInvalidFileType", err)
	}
	if *calls != 0 {
		t.Errorf("parser called %d times, want 0", *calls)
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Errorf("%d files written, want 0", n)
	}
}

func TestGateway_DeclaredSizeTooLarge(t *testing.T) {
	g, dir, calls := newTestGateway(t, 100)

	_, _, err := g.Ingest(context.Background(), Upload{
		Reader:       strings.NewReader("x"),
		OriginalName: "big.xlsx",
		MimeType:     xlsxMIME,
		Size:         101,
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Ingest() error = %v, want ErrFileTooLarge", err)
	}
	if *calls != 0 || dirEntries(t, dir) != 0 {
		t.Errorf("rejected upload reached parser (%d) or disk", *calls)
	}
}

func TestGateway_StreamLongerThanCeiling(t *testing.T) {
	g, dir, calls := newTestGateway(t, 16)

	_, _, err := g.Ingest(context.Background(), Upload{
		Reader:       bytes.NewReader(make([]byte, 64)),
		OriginalName: "liar.xlsx",
		MimeType:     xlsxMIME,
		Size:         8,
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Ingest() error = %v, want ErrFileTooLarge", err)
	}
	if *calls != 0 {
		t.Errorf("parser called %d times, want 0", *calls)
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Errorf("%d files left behind, want 0", n)
	}
}

func TestGateway_ParseFailureRemovesFile(t *testing.T) {
	g, dir, calls := newTestGateway(t, 0)

	_, _, err := g.Ingest(context.Background(), Upload{
		Reader:       strings.NewReader("not a workbook"),
		OriginalName: "broken.xlsx",
		MimeType:     xlsxMIME,
		Size:         14,
	})
	if err == nil {
		t.Fatal("Ingest() expected error")
	}
	if !strings.HasPrefix(err.Error(), "Failed to process Excel file: ") {
		t.Errorf("error %q missing prefix", err)
	}
	if *calls != 1 {
		t.Errorf("parser called %d times, want 1", *calls)
	}
	if n := dirEntries(t, dir); n != 0 {
		t.Errorf("%d files left after parse failure, want 0", n)
	}
}

func TestGateway_SuccessKeepsFile(t *testing.T) {
	g, dir, _ := newTestGateway(t, 0)

	src := writeWorkbook(t, sheetData{
		name: "Sheet1",
		rows: [][]any{{"a", "b"}, {1, "x"}},
	})
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	stored, res, err := g.Ingest(context.Background(), Upload{
		Reader:       bytes.NewReader(data),
		OriginalName: "Report.XLSX",
		MimeType:     xlsxMIME,
		Size:         int64(len(data)),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.RowCount != 1 {
		t.Errorf("RowCount = %d, want 1", res.RowCount)
	}
	if filepath.Dir(stored.Path) != dir {
		t.Errorf("stored in %s, want %s", filepath.Dir(stored.Path), dir)
	}
	if !strings.HasPrefix(stored.Filename, "file-") || !strings.HasSuffix(stored.Filename, ".xlsx") {
		t.Errorf("Filename = %q, want file-*.xlsx", stored.Filename)
	}
	if stored.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", stored.Size, len(data))
	}
	if _, err := os.Stat(stored.Path); err != nil {
		t.Errorf("stored file missing after success: %v", err)
	}

	if err := g.Remove(stored.Path); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
	if err := g.Remove(stored.Path); err != nil {
		t.Errorf("second Remove() error = %v, want nil", err)
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid type", ErrInvalidFileType, true},
		{"too large", fileTooLarge(DefaultMaxFileSize), true},
		{"parse error", &ParseError{Err: ErrEmptySheet}, true},
		{"other", errors.New("disk full"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClientError(tt.err); got != tt.want {
				t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFileTooLargeMessage(t *testing.T) {
	err := fileTooLarge(10 << 20)
	if !strings.Contains(err.Error(), "10MB") {
		t.Errorf("message %q does not state the limit", err)
	}
}
