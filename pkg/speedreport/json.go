package speedreport

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
)

const ReportVersion = "1"

// Ratio is a speed-up value. Non-finite values are encoded as the strings
// "inf", "-inf" and "nan" since JSON has no representation for them.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(FormatValue(v, 0))
	}
	return json.Marshal(v)
}

type SampleTime struct {
	Label   string  `json:"label"`
	Seconds float64 `json:"seconds"`
}

type ReportRow struct {
	NParameters int     `json:"n_parameters"`
	Speedups    []Ratio `json:"speedups"`
	Stats       Stats   `json:"stats"`
}

type Report struct {
	Version          string       `json:"version"`
	TimestampRFC3339 string       `json:"timestamp_rfc3339"`
	DataDir          string       `json:"data_dir"`
	SampleTimes      []SampleTime `json:"sample_times"`
	Rows             []ReportRow  `json:"rows"`
}

// NewReport pairs the labels of t with seconds, which must be in the same order.
func NewReport(t Table, seconds []float64, dataDir string, now time.Time) Report {
	r := Report{
		Version:          ReportVersion,
		TimestampRFC3339: now.Format(time.RFC3339),
		DataDir:          dataDir,
	}
	for i, l := range t.Labels() {
		st := SampleTime{Label: l}
		if i < len(seconds) {
			st.Seconds = seconds[i]
		}
		r.SampleTimes = append(r.SampleTimes, st)
	}
	for _, row := range t.Rows {
		rr := ReportRow{NParameters: row.NParameters, Stats: row.Stats}
		for _, v := range row.Speedups {
			rr.Speedups = append(rr.Speedups, Ratio(v))
		}
		r.Rows = append(r.Rows, rr)
	}
	return r
}

func EncodeJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteJSON writes r to outPath, creating parent directories. An empty
// outPath writes to stdout.
func WriteJSON(r Report, outPath string) error {
	if outPath == "" {
		return EncodeJSON(os.Stdout, r)
	}
	if dir := filepath.Dir(outPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeJSON(f, r)
}
