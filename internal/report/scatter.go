// Package report renders validation scatter plots. Plotting is a thin wrapper
// around gonum/plot; a failed render is a warning upstream, never fatal.
package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ScatterPlot writes a measured-vs-predicted scatter with a 1:1 reference
// line to a PNG file.
func ScatterPlot(predicted, measured []float64, title, path string) error {
	if len(predicted) == 0 || len(predicted) != len(measured) {
		return fmt.Errorf("need matching non-empty predicted and measured series")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Measured"

	pts := make(plotter.XYs, len(predicted))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range predicted {
		pts[i].X = predicted[i]
		pts[i].Y = measured[i]
		lo = math.Min(lo, math.Min(predicted[i], measured[i]))
		hi = math.Max(hi, math.Max(predicted[i], measured[i]))
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("building scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	oneToOne := plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}}
	line, err := plotter.NewLine(oneToOne)
	if err != nil {
		return fmt.Errorf("building reference line: %w", err)
	}
	line.LineStyle.Color = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(line, scatter)

	if err := p.Save(5*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
