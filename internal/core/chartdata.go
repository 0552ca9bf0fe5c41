package core

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/excel-analytics/internal/ingest"
)

// DerivedChartRows is how many records feed server-derived chart data.
const DerivedChartRows = 20

// ChartData is the label/dataset shape chart libraries render.
type ChartData struct {
	Labels   []any     `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of ChartData.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// DeriveChartData builds a single-series dataset from the first
// DerivedChartRows records: labels are the raw x values, data the y values
// read as numbers with anything unreadable counted as 0.
func DeriveChartData(records []ingest.Record, xAxis, yAxis string) ChartData {
	n := min(len(records), DerivedChartRows)
	cd := ChartData{
		Labels:   make([]any, 0, n),
		Datasets: []Dataset{{Label: yAxis, Data: make([]float64, 0, n)}},
	}
	for _, r := range records[:n] {
		x, _ := r.Get(xAxis)
		y, _ := r.Get(yAxis)
		cd.Labels = append(cd.Labels, x)
		cd.Datasets[0].Data = append(cd.Datasets[0].Data, leadingNumber(y))
	}
	return cd
}

var numberPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// leadingNumber reads v as a number. Strings contribute their longest
// numeric prefix ("12kg" is 12). Everything else, and any non-finite
// result, is 0.
func leadingNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		m := numberPrefix.FindString(strings.TrimSpace(t))
		if m == "" {
			return 0
		}
		var err error
		if f, err = strconv.ParseFloat(m, 64); err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0
		}
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// chartConfig is the part of a client chart config the server reads.
type chartConfig struct {
	Data    json.RawMessage `json:"data"`
	Options json.RawMessage `json:"options"`
}

// parseChartConfig decodes a client config. Empty input is an empty config.
func parseChartConfig(raw json.RawMessage) (chartConfig, error) {
	var cfg chartConfig
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	if string(cfg.Data) == "null" {
		cfg.Data = nil
	}
	return cfg, nil
}

// encode renders the stored config with data and options always present.
func (c chartConfig) encode() (json.RawMessage, error) {
	if len(c.Options) == 0 || string(c.Options) == "null" {
		c.Options = json.RawMessage(`{}`)
	}
	return json.Marshal(c)
}
