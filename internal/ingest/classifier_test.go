package ingest

import (
	"fmt"
	"testing"
	"time"
)

// column builds a slice of n values: numbers first, then dates, then text.
func column(numbers, dates, text int) []any {
	values := make([]any, 0, numbers+dates+text)
	for i := 0; i < numbers; i++ {
		values = append(values, float64(i))
	}
	for i := 0; i < dates; i++ {
		values = append(values, "2024-01-15")
	}
	for i := 0; i < text; i++ {
		values = append(values, fmt.Sprintf("item %d", i))
	}
	return values
}

func TestClassifyValues_Thresholds(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name   string
		values []any
		want   ColumnType
	}{
		{"81 of 100 numeric is number", column(81, 0, 19), TypeNumber},
		{"80 of 100 numeric is string", column(80, 0, 20), TypeString},
		{"81 of 100 dates is date", column(0, 81, 19), TypeDate},
		{"80 of 100 dates is string", column(0, 80, 20), TypeString},
		{"all numeric", column(10, 0, 0), TypeNumber},
		{"mixed below both cutoffs", column(50, 40, 10), TypeString},
		{"no values is empty", nil, TypeEmpty},
		{"time values count as dates", []any{time.Now(), time.Now()}, TypeDate},
		{"booleans are strings", []any{true, false, true}, TypeString},
		{"numeric text is not a number", []any{"1", "2", "3"}, TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ClassifyValues(tt.values); got != tt.want {
				t.Errorf("ClassifyValues() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyValues_SampleIsFirstValuesInOrder(t *testing.T) {
	c := DefaultClassifier()

	// 100 numbers followed by 300 strings: only the first 100 are sampled.
	values := append(column(100, 0, 0), column(0, 0, 300)...)
	if got := c.ClassifyValues(values); got != TypeNumber {
		t.Errorf("numbers first: got %s, want number", got)
	}

	// Same values reversed: the sample is now all text.
	reversed := append(column(0, 0, 300), column(100, 0, 0)...)
	if got := c.ClassifyValues(reversed); got != TypeString {
		t.Errorf("text first: got %s, want string", got)
	}
}

func TestClassifyValues_ConfigurableThresholds(t *testing.T) {
	c := Classifier{SampleSize: 10, NumberThreshold: 0.5, DateThreshold: 0.5}

	if got := c.ClassifyValues(column(6, 0, 4)); got != TypeNumber {
		t.Errorf("6/10 with 0.5 cutoff: got %s, want number", got)
	}
	if got := c.ClassifyValues(column(5, 0, 5)); got != TypeString {
		t.Errorf("5/10 with 0.5 cutoff: got %s, want string", got)
	}
}

func TestClassify_EmptyColumnIndependentOfOthers(t *testing.T) {
	data := make([]Record, 0, 5)
	for i := 0; i < 5; i++ {
		rec := NewRecord(2)
		rec.Set("filled", float64(i))
		rec.Set("blank", nil)
		data = append(data, rec)
	}

	types := DefaultClassifier().Classify([]string{"filled", "blank"}, data)
	if types["filled"] != TypeNumber {
		t.Errorf("filled = %s, want number", types["filled"])
	}
	if types["blank"] != TypeEmpty {
		t.Errorf("blank = %s, want empty", types["blank"])
	}
}

func TestClassify_SkipsNullsBeforeSampling(t *testing.T) {
	// 150 rows: the first 50 are null, the next 100 numeric. Nulls never
	// count toward the sample.
	data := make([]Record, 0, 150)
	for i := 0; i < 150; i++ {
		rec := NewRecord(1)
		if i < 50 {
			rec.Set("x", nil)
		} else {
			rec.Set("x", float64(i))
		}
		data = append(data, rec)
	}

	types := DefaultClassifier().Classify([]string{"x"}, data)
	if types["x"] != TypeNumber {
		t.Errorf("x = %s, want number", types["x"])
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"2024-01-15", true},
		{"2024-01-15T10:30:00Z", true},
		{"2024-01-15 10:30:00", true},
		{"01/15/2024", true},
		{"1/5/24", true},
		{"Jan 15, 2024", true},
		{"15 Jan 2024", true},
		{"20240115", false},
		{"12345", false},
		{"hello", false},
		{"", false},
		{"2024-13-45", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if _, got := parseDate(tt.in); got != tt.want {
				t.Errorf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	got, ok := parseDate("1/2/99")
	if !ok {
		t.Fatal("parseDate(1/2/99) failed")
	}
	if got.Year() != 1999 {
		t.Errorf("year = %d, want 1999", got.Year())
	}
}
