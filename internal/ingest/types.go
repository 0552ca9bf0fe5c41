// Package ingest turns an uploaded Excel workbook into header-keyed records.
//
// The pipeline has three parts:
//
//   - Gateway: checks the declared MIME type and size, spools the stream to
//     disk and hands the file to the Parser. The file is removed when parsing
//     fails and kept when it succeeds; the caller owns it from then on.
//   - Parser: opens the workbook, selects a sheet, cleans the header row and
//     zips every non-blank data row into a [Record].
//   - Classifier: assigns each column one [ColumnType] from a bounded,
//     order-dependent sample of its values.
//
// A parse is all-or-nothing: any failure returns a single wrapped error and
// no partial result.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ColumnType is the inferred semantic type of a column.
type ColumnType string

const (
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
	TypeString ColumnType = "string"
	TypeEmpty  ColumnType = "empty"
)

// Record is one parsed data row. Values are float64, string, time.Time,
// bool or nil. Keys keeps the column order so the record encodes the way
// the sheet reads.
type Record struct {
	Keys   []string
	Values map[string]any
}

// NewRecord returns an empty record sized for n columns.
func NewRecord(n int) Record {
	return Record{
		Keys:   make([]string, 0, n),
		Values: make(map[string]any, n),
	}
}

// Set assigns a value, appending the key on first use.
func (r *Record) Set(key string, v any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = v
}

// Get returns the value for key and whether it is present.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// MarshalJSON encodes the record as an object with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("record: expected JSON object")
	}

	*r = NewRecord(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if n, ok := raw.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return err
			}
			raw = f
		}
		r.Set(key, raw)
	}
	_, err = dec.Token()
	return err
}

// Metadata describes the source workbook.
type Metadata struct {
	TotalSheets int       `json:"totalSheets"`
	FileSize    int64     `json:"fileSize"`
	ProcessedAt time.Time `json:"processedAt"`
}

// ParseResult is the output of a successful parse. It is not modified after
// the Parser returns.
type ParseResult struct {
	Columns       []string              `json:"columns"`
	Data          []Record              `json:"data"`
	RowCount      int                   `json:"rowCount"`
	SheetNames    []string              `json:"sheetNames"`
	SelectedSheet string                `json:"selectedSheet"`
	DataTypes     map[string]ColumnType `json:"dataTypes"`
	Metadata      Metadata              `json:"metadata"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// Preview returns at most n records from the start of the data.
func (p *ParseResult) Preview(n int) []Record {
	if n < 0 || n >= len(p.Data) {
		return p.Data
	}
	return p.Data[:n]
}
