package speedreport

import (
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var ErrNothingToPlot = errors.New("no finite speed-up value to plot")

type PlotOptions struct {
	Title    string
	LogScale bool
	Width    vg.Length
	Height   vg.Length
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width == 0 {
		o.Width = 9 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 6 * vg.Inch
	}
	if o.Title == "" {
		o.Title = "Active learning speed-up over random sampling"
	}
	return o
}

// Series returns the points of one sample time column: x is the row index,
// y the unrounded speed-up. Values that cannot be drawn (non-finite, or
// non-positive on a log axis) are left out.
func (t Table) Series(col int, logScale bool) plotter.XYs {
	xys := make(plotter.XYs, 0, len(t.Rows))
	for i, r := range t.Rows {
		if col >= len(r.Speedups) {
			continue
		}
		v := r.Speedups[col]
		if math.IsNaN(v) || math.IsInf(v, 0) || (logScale && v <= 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(i), Y: v})
	}
	return xys
}

// NewPlot draws one line per sample time label over the configurations of t.
func NewPlot(t Table, opts PlotOptions) (*plot.Plot, error) {
	opts = opts.withDefaults()
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = ParametersColumn
	p.Y.Label.Text = "speed-up"
	if opts.LogScale {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	ticks := make([]plot.Tick, len(t.Rows))
	for i, r := range t.Rows {
		ticks[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(r.NParameters)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Add(plotter.NewGrid())

	labels := t.Labels()
	colors := lineColors(len(labels))
	drawn := 0
	for i, label := range labels {
		xys := t.Series(i, opts.LogScale)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(label, line)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNothingToPlot
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Padding = 1 * vg.Millimeter
	return p, nil
}

// SavePlot renders t to path; the image format follows the file extension.
func SavePlot(t Table, path string, opts PlotOptions) error {
	p, err := NewPlot(t, opts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	opts = opts.withDefaults()
	return p.Save(opts.Width, opts.Height, path)
}

func lineColors(n int) []color.Color {
	if pal, err := brewer.GetPalette(brewer.TypeQualitative, "Paired", n); err == nil {
		return pal.Colors()
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = plotutil.Color(i)
	}
	return out
}
