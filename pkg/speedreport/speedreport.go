// Package speedreport holds the speed-up table of active learning over random
// sampling and renders it as LaTeX, as a plain text table, as JSON and as a chart.
package speedreport

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const ParametersColumn = "n_parameters"

// Stats are the intermediate aggregates a row was projected from.
type Stats struct {
	ALSamples          float64 `json:"al_samples"`
	RSSamples          float64 `json:"rs_samples"`
	ALTime             float64 `json:"al_time"`
	RSTime             float64 `json:"rs_time"`
	ALTimeRaw          float64 `json:"al_time_raw"`
	Iterations         int     `json:"iterations"`
	MatchedIterations  int     `json:"matched_iterations"`
	DroppedIterations  []int   `json:"dropped_iterations,omitempty"`
	OrphanedIterations []int   `json:"orphaned_iterations,omitempty"`
}

// Row is the result of one configuration. Speedups follow the sample time
// columns of the table it belongs to.
type Row struct {
	NParameters int
	Speedups    []float64
	Stats       Stats
}

type Table struct {
	// Columns is ParametersColumn followed by one label per sample time.
	Columns []string
	Rows    []Row
}

func NewTable(labels []string, rows []Row) (Table, error) {
	cols := make([]string, 0, len(labels)+1)
	cols = append(cols, ParametersColumn)
	cols = append(cols, labels...)
	t := Table{Columns: cols, Rows: rows}
	for _, r := range rows {
		if len(r.Speedups) != len(labels) {
			return Table{}, fmt.Errorf("row for %d parameters has %d values, want %d",
				r.NParameters, len(r.Speedups), len(labels))
		}
	}
	return t, nil
}

// Labels returns the sample time columns.
func (t Table) Labels() []string {
	if len(t.Columns) == 0 {
		return nil
	}
	return t.Columns[1:]
}

// Cells returns every row as strings, n_parameters first, values rounded to precision places.
func (t Table) Cells(precision int) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		cells := make([]string, 0, len(t.Columns))
		cells = append(cells, strconv.Itoa(r.NParameters))
		for _, v := range r.Speedups {
			cells = append(cells, FormatValue(v, precision))
		}
		out = append(out, cells)
	}
	return out
}

// Round rounds half to even at the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	pow := math.Pow10(places)
	scaled := v * pow
	if math.IsInf(scaled, 0) {
		return v
	}
	return math.RoundToEven(scaled) / pow
}

// FormatValue rounds v and prints it the way it reads in the tables:
// "2.0", "1.2346", "1e+20", "inf", "nan".
func FormatValue(v float64, precision int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	r := Round(v, precision)
	if a := math.Abs(r); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(r, 'e', -1, 64)
	}
	s := strconv.FormatFloat(r, 'f', -1, 64)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}
