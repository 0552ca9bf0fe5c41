package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

func TestLeadingNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{42.5, 42.5},
		{"12kg", 12},
		{" 3.5 units", 3.5},
		{"-7", -7},
		{".25", 0.25},
		{"1e3", 1000},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{true, 0},
		{math.Inf(1), 0},
		{math.NaN(), 0},
		{"1e999", 0},
	}
	for _, tt := range tests {
		if got := leadingNumber(tt.in); got != tt.want {
			t.Errorf("leadingNumber(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// record builds a record from alternating keys and values.
func record(kv ...any) ingest.Record {
	r := ingest.NewRecord(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

func TestDeriveChartData(t *testing.T) {
	records := []ingest.Record{
		record("Month", "Jan", "Sales", 10.0),
		record("Month", "Feb", "Sales", "20 units"),
		record("Month", "Mar"),
	}
	got := DeriveChartData(records, "Month", "Sales")
	want := ChartData{
		Labels:   []any{"Jan", "Feb", "Mar"},
		Datasets: []Dataset{{Label: "Sales", Data: []float64{10, 20, 0}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeriveChartData mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveChartData_CapsRows(t *testing.T) {
	records := make([]ingest.Record, DerivedChartRows+5)
	for i := range records {
		records[i] = record("x", float64(i), "y", float64(i))
	}
	got := DeriveChartData(records, "x", "y")
	if len(got.Labels) != DerivedChartRows || len(got.Datasets[0].Data) != DerivedChartRows {
		t.Errorf("derived %d labels and %d values, want %d", len(got.Labels), len(got.Datasets[0].Data), DerivedChartRows)
	}

	empty := DeriveChartData(nil, "x", "y")
	if len(empty.Labels) != 0 || len(empty.Datasets) != 1 {
		t.Errorf("empty derive = %+v", empty)
	}
}

func TestParseChartConfig(t *testing.T) {
	cfg, err := parseChartConfig([]byte(`{"data":null}`))
	if err != nil {
		t.Fatalf("parseChartConfig: %v", err)
	}
	if cfg.Data != nil {
		t.Errorf("null data = %s, want nil", cfg.Data)
	}
	out, err := cfg.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != `{"data":null,"options":{}}` {
		t.Errorf("encode = %s", out)
	}

	if _, err := parseChartConfig([]byte(`"text"`)); err == nil {
		t.Error("string config accepted")
	}
}
