package ingest

import "time"

// Classifier defaults.
const (
	DefaultSampleSize      = 100
	DefaultNumberThreshold = 0.8
	DefaultDateThreshold   = 0.8
)

// Classifier infers a ColumnType for each column of a parse.
//
// For every column it takes the first SampleSize non-null values in row
// order (not a random sample) and counts numbers and dates. A column is
// number when the numeric share is strictly greater than NumberThreshold,
// otherwise date when the date share is strictly greater than DateThreshold,
// otherwise string. A column with no non-null values is empty.
type Classifier struct {
	SampleSize      int
	NumberThreshold float64
	DateThreshold   float64
}

// DefaultClassifier returns a Classifier with the standard 100-value sample
// and 0.8 cutoffs.
func DefaultClassifier() Classifier {
	return Classifier{
		SampleSize:      DefaultSampleSize,
		NumberThreshold: DefaultNumberThreshold,
		DateThreshold:   DefaultDateThreshold,
	}
}

// Classify returns the inferred type of every column.
func (c Classifier) Classify(columns []string, data []Record) map[string]ColumnType {
	types := make(map[string]ColumnType, len(columns))
	for _, col := range columns {
		values := make([]any, 0, c.sampleSize())
		for _, rec := range data {
			v := rec.Values[col]
			if v == nil {
				continue
			}
			values = append(values, v)
			if len(values) == c.sampleSize() {
				break
			}
		}
		types[col] = c.ClassifyValues(values)
	}
	return types
}

// ClassifyValues classifies one column from its non-null values. Only the
// first SampleSize values are inspected.
func (c Classifier) ClassifyValues(values []any) ColumnType {
	if len(values) == 0 {
		return TypeEmpty
	}

	sample := values
	if len(sample) > c.sampleSize() {
		sample = sample[:c.sampleSize()]
	}

	var numbers, dates int
	for _, v := range sample {
		switch {
		case isNumber(v):
			numbers++
		case isDate(v):
			dates++
		}
	}

	total := float64(len(sample))
	switch {
	case float64(numbers)/total > c.NumberThreshold:
		return TypeNumber
	case float64(dates)/total > c.DateThreshold:
		return TypeDate
	default:
		return TypeString
	}
}

func (c Classifier) sampleSize() int {
	if c.SampleSize <= 0 {
		return DefaultSampleSize
	}
	return c.SampleSize
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

func isDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case string:
		_, ok := parseDate(t)
		return ok
	}
	return false
}
