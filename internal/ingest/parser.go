package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Options tunes a single parse.
type Options struct {
	// SheetName selects the sheet to read. Empty means the first sheet.
	SheetName string
}

// workbook is the part of *excelize.File the parser reads through.
type workbook interface {
	GetSheetList() []string
	GetRows(sheet string, opts ...excelize.Options) ([][]string, error)
	GetCellType(sheet, cell string) (excelize.CellType, error)
	Close() error
}

func openWorkbook(path string) (workbook, error) {
	return excelize.OpenFile(path)
}

// Parser converts a workbook on disk into a ParseResult.
type Parser struct {
	classifier Classifier
	open       func(path string) (workbook, error)
	now        func() time.Time
}

// NewParser creates a Parser that types columns with c.
func NewParser(c Classifier) *Parser {
	return &Parser{
		classifier: c,
		open:       openWorkbook,
		now:        time.Now,
	}
}

// Parse reads the workbook at path. Any failure aborts the whole parse and
// comes back as a *ParseError wrapping the root cause, so errors.Is works
// against ErrNoSheets, ErrSheetNotFound, ErrEmptySheet and ErrNoHeaders.
func (p *Parser) Parse(path string, opts Options) (*ParseResult, error) {
	res, err := p.parse(path, opts)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return res, nil
}

func (p *Parser) parse(path string, opts Options) (*ParseResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ProcessingError{Op: "stat", Err: err}
	}

	f, err := p.open(path)
	if err != nil {
		return nil, &ProcessingError{Op: "open workbook", Err: err}
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, ErrNoSheets
	}

	sheet := opts.SheetName
	if sheet == "" {
		sheet = sheetNames[0]
	}
	if !slices.Contains(sheetNames, sheet) {
		return nil, sheetNotFound(sheet)
	}

	rows, err := readRows(f, sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	headers := cleanHeaders(rows[0], rowWidth(rows))
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}
	headers, warnings := dedupeHeaders(headers)
	for _, w := range warnings {
		slog.Warn("duplicate column header", "sheet", sheet, "detail", w)
	}

	data := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := NewRecord(len(headers))
		for i, h := range headers {
			var v any
			if i < len(row) {
				v = row[i]
			}
			rec.Set(h, v)
		}
		data = append(data, rec)
	}

	return &ParseResult{
		Columns:       headers,
		Data:          data,
		RowCount:      len(data),
		SheetNames:    sheetNames,
		SelectedSheet: sheet,
		DataTypes:     p.classifier.Classify(headers, data),
		Metadata: Metadata{
			TotalSheets: len(sheetNames),
			FileSize:    info.Size(),
			ProcessedAt: p.now(),
		},
		Warnings: warnings,
	}, nil
}

// readRows returns the typed, non-blank rows of a sheet. Numbers are read
// raw, so date-formatted numeric cells come back as their serial value.
func readRows(f workbook, sheet string) ([][]any, error) {
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ProcessingError{Op: "read rows", Err: err}
	}

	rows := make([][]any, 0, len(raw))
	for r, cells := range raw {
		row := make([]any, len(cells))
		blank := true
		for c, s := range cells {
			if s == "" {
				continue
			}
			blank = false

			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, &ProcessingError{Op: "cell name", Err: err}
			}
			typ, err := f.GetCellType(sheet, cell)
			if err != nil {
				return nil, &ProcessingError{Op: "cell type " + cell, Err: err}
			}
			row[c] = cellValue(typ, s)
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// cellValue converts a raw cell string to its scalar form.
func cellValue(typ excelize.CellType, s string) any {
	switch typ {
	case excelize.CellTypeBool:
		return s == "1" || strings.EqualFold(s, "true")
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return s
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
		return s
	default:
		return s
	}
}

// rowWidth is the widest row in the sheet. The header row is padded to it
// so trailing blank header cells still produce columns.
func rowWidth(rows [][]any) int {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	return width
}

// cleanHeaders stringifies and trims the header row. A blank header at
// 0-based position i becomes Column_<i+1>.
func cleanHeaders(row []any, width int) []string {
	headers := make([]string, width)
	for i := range headers {
		var h string
		if i < len(row) {
			h = strings.TrimSpace(formatScalar(row[i]))
		}
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// dedupeHeaders renames repeated headers to <name>_<n>, n counting from 2,
// so no column silently overwrites another in a record.
func dedupeHeaders(headers []string) ([]string, []string) {
	seen := make(map[string]int, len(headers))
	for _, h := range headers {
		seen[h] = 0
	}

	var warnings []string
	out := make([]string, len(headers))
	for i, h := range headers {
		seen[h]++
		if seen[h] == 1 {
			out[i] = h
			continue
		}

		name := h
		for n := seen[h]; ; n++ {
			name = fmt.Sprintf("%s_%d", h, n)
			if _, taken := seen[name]; !taken {
				seen[h] = n
				break
			}
		}
		seen[name] = 1
		out[i] = name
		warnings = append(warnings, fmt.Sprintf("column %d header %q renamed to %q", i+1, h, name))
	}
	return out, warnings
}

// formatScalar renders a cell value the way it reads in a header.
func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
