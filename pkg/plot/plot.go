// Package plot renders the diagnostic figures of the pipeline: the elbow
// curve with its chosen k and plain line traces. Styling is always passed
// in; nothing here holds figure state between calls.
package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Style configures one figure.
type Style struct {
	Title  string
	XLabel string
	YLabel string

	Width  vg.Length
	Height vg.Length

	LineColor   color.Color
	LineWidth   vg.Length
	MarkerColor color.Color // elbow marker line

	// Points draws a glyph at every data point.
	Points bool
	// DashedMarker draws the optimal-k marker dashed.
	DashedMarker bool
}

// ElbowStyle is the default elbow figure: blue crosses joined by a line,
// a dashed red marker at the chosen k.
func ElbowStyle() Style {
	return Style{
		Title:        "The Elbow Method showing the optimal k",
		XLabel:       "Number of clusters (k)",
		YLabel:       "Distortion",
		Width:        8 * vg.Inch,
		Height:       6 * vg.Inch,
		LineColor:    color.RGBA{B: 255, A: 255},
		LineWidth:    vg.Points(1.5),
		MarkerColor:  color.RGBA{R: 255, A: 255},
		Points:       true,
		DashedMarker: true,
	}
}

// TraceStyle is the default line-trace figure.
func TraceStyle() Style {
	return Style{
		XLabel:    "Elution volume (ml)",
		YLabel:    "Relative absorbance units",
		Width:     6 * vg.Inch,
		Height:    4 * vg.Inch,
		LineColor: color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 255},
		LineWidth: vg.Points(1.5),
	}
}

// Renderer produces figure files. The format follows the path extension
// (svg, pdf, png, ...).
type Renderer interface {
	Elbow(path string, k, inertia []float64, optimalK int, style Style) error
	Line(path string, x, y []float64, style Style) error
}

// Gonum renders with gonum.org/v1/plot.
type Gonum struct{}

// NewRenderer returns the default renderer.
func NewRenderer() Renderer { return Gonum{} }

func xys(x, y []float64) (plotter.XYs, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("have %d x values and %d y values", len(x), len(y))
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("no points to plot")
	}
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts, nil
}

func newPlot(style Style) *gplot.Plot {
	p := gplot.New()
	p.Title.Text = style.Title
	p.X.Label.Text = style.XLabel
	p.Y.Label.Text = style.YLabel
	return p
}

func (s Style) line(l *plotter.Line) {
	if s.LineColor != nil {
		l.Color = s.LineColor
	}
	if s.LineWidth > 0 {
		l.Width = s.LineWidth
	}
}

// Elbow draws the (k, inertia) curve and a vertical marker at optimalK.
func (Gonum) Elbow(path string, k, inertia []float64, optimalK int, style Style) error {
	pts, err := xys(k, inertia)
	if err != nil {
		return fmt.Errorf("elbow plot: %w", err)
	}
	p := newPlot(style)

	if style.Points {
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("elbow plot: %w", err)
		}
		style.line(line)
		points.Shape = draw.CrossGlyph{}
		if style.LineColor != nil {
			points.Color = style.LineColor
		}
		p.Add(line, points)
	} else {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("elbow plot: %w", err)
		}
		style.line(line)
		p.Add(line)
	}

	ymin, ymax := pts[0].Y, pts[0].Y
	for _, pt := range pts {
		ymin = min(ymin, pt.Y)
		ymax = max(ymax, pt.Y)
	}
	marker, err := plotter.NewLine(plotter.XYs{
		{X: float64(optimalK), Y: ymin},
		{X: float64(optimalK), Y: ymax},
	})
	if err != nil {
		return fmt.Errorf("elbow plot: %w", err)
	}
	if style.MarkerColor != nil {
		marker.Color = style.MarkerColor
	}
	if style.DashedMarker {
		marker.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	}
	p.Add(marker)

	return save(p, path, style)
}

// Line draws y against x as a single line.
func (Gonum) Line(path string, x, y []float64, style Style) error {
	pts, err := xys(x, y)
	if err != nil {
		return fmt.Errorf("line plot: %w", err)
	}
	p := newPlot(style)
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("line plot: %w", err)
	}
	style.line(line)
	p.Add(line)
	return save(p, path, style)
}

func save(p *gplot.Plot, path string, style Style) error {
	w, h := style.Width, style.Height
	if w <= 0 {
		w = 6 * vg.Inch
	}
	if h <= 0 {
		h = 4 * vg.Inch
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
