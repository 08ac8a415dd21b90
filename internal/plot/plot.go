// Package plot renders ensemble uncertainty charts as PNG images: stacked
// per-variable panels with individual model traces, the ensemble mean, and
// the interquartile envelope.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"ensemblecast/internal/ensemble"
)

const (
	imageWidth  = 1120
	panelHeight = 250
	headerH     = 36
	marginLeft  = 70
	marginRight = 30
	marginTop   = 28
	marginBot   = 34
)

var (
	colorBG     = color.RGBA{255, 255, 255, 255}
	colorAxis   = color.RGBA{80, 80, 80, 255}
	colorText   = color.RGBA{30, 30, 30, 255}
	colorMean   = color.RGBA{0, 0, 0, 255}
	colorBand   = color.RGBA{210, 210, 210, 255}
	colorHint   = color.RGBA{120, 120, 120, 255}
	modelColors = []color.RGBA{
		{31, 119, 180, 255},  // blue
		{255, 127, 14, 255},  // orange
		{44, 160, 44, 255},   // green
		{214, 39, 40, 255},   // red
		{148, 103, 189, 255}, // purple
		{140, 86, 75, 255},   // brown
	}
)

type panel struct {
	title    string
	variable ensemble.Variable
	useMax   bool
}

func panelsFor(shape ensemble.Shape) []panel {
	if shape == ensemble.ShapeDaily {
		return []panel{
			{"Daily High Temperature (F)", ensemble.Temperature, true},
			{"Daily Low Temperature (F)", ensemble.Temperature, false},
			{"Precipitation (in)", ensemble.Precipitation, true},
			{"Max Wind Speed (mph)", ensemble.WindSpeed, true},
		}
	}
	return []panel{
		{"Temperature (F)", ensemble.Temperature, true},
		{"Precipitation (in)", ensemble.Precipitation, true},
		{"Wind Speed (mph)", ensemble.WindSpeed, true},
	}
}

// Render draws the uncertainty chart for a dataset. Panels whose variable is
// absent from every model are skipped; at least one drawable panel is
// required.
func Render(ds ensemble.Dataset, title string) ([]byte, error) {
	valid := ds.ValidModels()
	if len(valid) == 0 {
		return nil, ensemble.ErrNoValidModels
	}
	shape := ds[valid[0]].Shape()

	type renderable struct {
		panel panel
		stats *ensemble.StatisticsResult
	}
	var drawable []renderable
	for _, p := range panelsFor(shape) {
		st, err := ensemble.Statistics(ds, p.variable, p.useMax)
		if err != nil {
			continue
		}
		drawable = append(drawable, renderable{p, st})
	}
	if len(drawable) == 0 {
		return nil, errors.New("no plottable variables in dataset")
	}

	height := headerH + len(drawable)*panelHeight
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, height))
	fill(img, img.Bounds(), colorBG)

	drawText(img, marginLeft, 22, title, colorText)

	for i, r := range drawable {
		top := headerH + i*panelHeight
		drawPanel(img, ds, top, r.panel, r.stats)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawPanel(img *image.RGBA, ds ensemble.Dataset, top int, p panel, st *ensemble.StatisticsResult) {
	steps := len(st.EnsembleMean)
	plotLeft := marginLeft
	plotRight := imageWidth - marginRight
	plotTop := top + marginTop
	plotBot := top + panelHeight - marginBot

	// Y range covers every model trace, padded slightly so flat series
	// don't collapse onto an axis.
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, name := range st.Models {
		for _, v := range ds[name].Series(st.Field) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if hi-lo < 1e-9 {
		lo -= 1
		hi += 1
	}
	pad := (hi - lo) * 0.08
	lo -= pad
	hi += pad

	x := func(i int) int {
		if steps <= 1 {
			return (plotLeft + plotRight) / 2
		}
		return plotLeft + i*(plotRight-plotLeft)/(steps-1)
	}
	y := func(v float64) int {
		frac := (v - lo) / (hi - lo)
		return plotBot - int(frac*float64(plotBot-plotTop))
	}

	// Interquartile envelope first so every line draws over it.
	for i := 0; i+1 < steps; i++ {
		fillBandSegment(img, x(i), x(i+1),
			y(st.Percentile25[i]), y(st.Percentile25[i+1]),
			y(st.Percentile75[i]), y(st.Percentile75[i+1]))
	}

	// Axes.
	vline(img, plotLeft, plotTop, plotBot, colorAxis)
	hline(img, plotLeft, plotRight, plotBot, colorAxis)

	// Model traces.
	for mi, name := range st.Models {
		c := modelColors[mi%len(modelColors)]
		series := ds[name].Series(st.Field)
		for i := 0; i+1 < steps; i++ {
			drawLine(img, x(i), y(series[i]), x(i+1), y(series[i+1]), c, 1)
		}
	}

	// Ensemble mean on top.
	for i := 0; i+1 < steps; i++ {
		drawLine(img, x(i), y(st.EnsembleMean[i]), x(i+1), y(st.EnsembleMean[i+1]), colorMean, 2)
	}

	drawText(img, plotLeft, top+18, p.title, colorText)
	drawText(img, 6, plotTop+6, fmt.Sprintf("%.1f", hi), colorHint)
	drawText(img, 6, plotBot, fmt.Sprintf("%.1f", lo), colorHint)

	// Legend: model names in their trace colors.
	lx := plotLeft
	for mi, name := range st.Models {
		drawText(img, lx, plotBot+24, name, modelColors[mi%len(modelColors)])
		lx += 8*len(name) + 24
	}

	// First and last axis labels.
	if len(st.Times) > 0 {
		drawText(img, plotLeft, plotBot+12, st.Times[0], colorHint)
		last := st.Times[len(st.Times)-1]
		drawText(img, plotRight-8*len(last), plotBot+12, last, colorHint)
	}
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for yy := r.Min.Y; yy < r.Max.Y; yy++ {
		for xx := r.Min.X; xx < r.Max.X; xx++ {
			img.SetRGBA(xx, yy, c)
		}
	}
}

// fillBandSegment fills the area between two interpolated edges over one
// x interval.
func fillBandSegment(img *image.RGBA, x0, x1, lo0, lo1, hi0, hi1 int) {
	if x1 <= x0 {
		return
	}
	for xx := x0; xx <= x1; xx++ {
		frac := float64(xx-x0) / float64(x1-x0)
		yLo := lo0 + int(frac*float64(lo1-lo0))
		yHi := hi0 + int(frac*float64(hi1-hi0))
		if yLo < yHi {
			yLo, yHi = yHi, yLo
		}
		for yy := yHi; yy <= yLo; yy++ {
			img.SetRGBA(xx, yy, colorBand)
		}
	}
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for xx := x0; xx <= x1; xx++ {
		img.SetRGBA(xx, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for yy := y0; yy <= y1; yy++ {
		img.SetRGBA(x, yy, c)
	}
}

// drawLine draws a straight segment by stepping the longer axis one pixel
// at a time. thickness widens the stroke vertically.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, thickness int) {
	dx := x1 - x0
	dy := y1 - y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.SetRGBA(x0, y0, c)
		return
	}
	for s := 0; s <= steps; s++ {
		xx := x0 + dx*s/steps
		yy := y0 + dy*s/steps
		for t := 0; t < thickness; t++ {
			img.SetRGBA(xx, yy+t, c)
		}
	}
}

func drawText(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
