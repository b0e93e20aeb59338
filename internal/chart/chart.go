// Package chart renders the trap-rate bar chart: one bar per species with
// asymmetric 95% error bars, drawn onto an in-memory canvas and saved as PNG.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/camtrapnz/camtrap/internal/models"
)

// ErrNoRates is returned when there is nothing to plot.
var ErrNoRates = errors.New("no trap rates to plot")

// Options controls the chart size and captions.
type Options struct {
	Width  int
	Height int
	Title  string
	YLabel string
}

// DefaultOptions returns the standard 1200x720 chart.
func DefaultOptions() Options {
	return Options{
		Width:  1200,
		Height: 720,
		Title:  "Camera Trap Rate per Species",
		YLabel: "Trap Rate per 100 Camera Days",
	}
}

var (
	background = color.White
	ink        = color.Black
	barFill    = mustHex("#87CEEB") // skyblue
	// Saturated estimates have no interval; their bars are greyed out.
	saturatedFill = barFill.BlendLab(colorful.Color{R: 0.75, G: 0.75, B: 0.75}, 0.6).Clamped()
	gridColor     = color.NRGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF}

	face = basicfont.Face7x13
)

const (
	marginLeft   = 90
	marginRight  = 30
	marginTop    = 50
	marginBottom = 140
	tickLength   = 5
	barFraction  = 0.6
)

// plotArea maps data coordinates onto the canvas.
type plotArea struct {
	x0, y0, x1, y1 int // Plot rectangle; y grows downward
	yMax           float64
	step           float64
}

func newPlotArea(width, height int, rates []models.TrapRate) plotArea {
	top := 0.0
	for _, r := range rates {
		top = math.Max(top, math.Max(r.Upper95, r.Rate))
	}
	step := niceStep(top / 5)
	yMax := math.Ceil(top*1.05/step) * step
	if yMax <= 0 {
		yMax = step
	}
	return plotArea{
		x0:   marginLeft,
		y0:   marginTop,
		x1:   width - marginRight,
		y1:   height - marginBottom,
		yMax: yMax,
		step: step,
	}
}

// yPos returns the canvas row for value v.
func (p plotArea) yPos(v float64) int {
	frac := v / p.yMax
	return p.y1 - int(math.Round(frac*float64(p.y1-p.y0)))
}

// barRect returns the rectangle of bar i of n for value v.
func (p plotArea) barRect(i, n int, v float64) image.Rectangle {
	slot := float64(p.x1-p.x0) / float64(n)
	center := float64(p.x0) + slot*(float64(i)+0.5)
	half := slot * barFraction / 2
	return image.Rect(int(math.Round(center-half)), p.yPos(v), int(math.Round(center+half)), p.y1)
}

// RenderTrapRates draws a bar chart of rates in the given order.
func RenderTrapRates(rates []models.TrapRate, opts Options) (*image.NRGBA, error) {
	if len(rates) == 0 {
		return nil, ErrNoRates
	}
	if opts.Width < marginLeft+marginRight+50 || opts.Height < marginTop+marginBottom+50 {
		return nil, fmt.Errorf("chart size %dx%d is too small", opts.Width, opts.Height)
	}

	canvas := imaging.New(opts.Width, opts.Height, background)
	area := newPlotArea(opts.Width, opts.Height, rates)

	drawYAxis(canvas, area)

	n := len(rates)
	for i, r := range rates {
		fill := color.Color(barFill)
		if r.Saturated {
			fill = saturatedFill
		}
		rect := area.barRect(i, n, r.Rate)
		fillRect(canvas, rect, fill)
		strokeRect(canvas, rect, ink)
		drawErrorBar(canvas, area, rect, r)
	}

	// Axes on top of the bars.
	hline(canvas, area.x0, area.x1, area.y1, ink)
	vline(canvas, area.x0, area.y0, area.y1, ink)

	drawTitle(canvas, opts.Title)
	canvas = drawYLabel(canvas, area, opts.YLabel)
	for i, r := range rates {
		rect := area.barRect(i, n, r.Rate)
		canvas = drawXLabel(canvas, area, (rect.Min.X+rect.Max.X)/2, r.Species)
	}

	return canvas, nil
}

// Save encodes img as PNG and writes it atomically to path.
func Save(img image.Image, path string, filePermissions, dirPermissions os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode chart: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), filePermissions); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename chart: %w", err)
	}
	return nil
}

func drawYAxis(canvas *image.NRGBA, area plotArea) {
	decimals := 0
	if area.step < 1 {
		decimals = int(math.Ceil(-math.Log10(area.step)))
	}
	for v := 0.0; v <= area.yMax+area.step/2; v += area.step {
		y := area.yPos(v)
		if v > 0 {
			hline(canvas, area.x0+1, area.x1, y, gridColor)
		}
		hline(canvas, area.x0-tickLength, area.x0, y, ink)

		label := fmt.Sprintf("%.*f", decimals, v)
		w := font.MeasureString(face, label).Ceil()
		drawText(canvas, area.x0-tickLength-4-w, y+face.Ascent/2, label, ink)
	}
}

func drawErrorBar(canvas *image.NRGBA, area plotArea, bar image.Rectangle, r models.TrapRate) {
	if r.MinusBar == 0 && r.PlusBar == 0 {
		return
	}
	cx := (bar.Min.X + bar.Max.X) / 2
	capHalf := bar.Dx() / 8
	if capHalf < 3 {
		capHalf = 3
	}
	top := area.yPos(r.Rate + r.PlusBar)
	bottom := area.yPos(r.Rate - r.MinusBar)

	vline(canvas, cx, top, bottom, ink)
	hline(canvas, cx-capHalf, cx+capHalf, top, ink)
	hline(canvas, cx-capHalf, cx+capHalf, bottom, ink)
}

func drawTitle(canvas *image.NRGBA, title string) {
	w := font.MeasureString(face, title).Ceil()
	drawText(canvas, (canvas.Bounds().Dx()-w)/2, marginTop/2+face.Ascent/2, title, ink)
}

// drawYLabel renders the axis caption on its own strip and rotates it upright.
func drawYLabel(canvas *image.NRGBA, area plotArea, label string) *image.NRGBA {
	strip := textImage(label)
	rotated := imaging.Rotate90(strip)
	x := 8
	y := area.y0 + (area.y1-area.y0-rotated.Bounds().Dy())/2
	return imaging.Overlay(canvas, rotated, image.Pt(x, y), 1.0)
}

// drawXLabel draws a species name rotated 45 degrees, ending under the bar.
func drawXLabel(canvas *image.NRGBA, area plotArea, cx int, label string) *image.NRGBA {
	rotated := imaging.Rotate(textImage(label), 45, color.Transparent)
	pos := image.Pt(cx-rotated.Bounds().Dx()+face.Height/2, area.y1+tickLength+2)
	vline(canvas, cx, area.y1, area.y1+tickLength, ink)
	return imaging.Overlay(canvas, rotated, pos, 1.0)
}

// textImage renders s on a transparent strip exactly as tall as the font.
func textImage(s string) *image.NRGBA {
	w := font.MeasureString(face, s).Ceil() + 2
	img := imaging.New(w, face.Height, color.Transparent)
	drawText(img, 1, face.Ascent, s, ink)
	return img
}

func drawText(dst draw.Image, x, baseline int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func fillRect(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst *image.NRGBA, r image.Rectangle, c color.Color) {
	if r.Empty() {
		hline(dst, r.Min.X, r.Max.X, r.Max.Y, c)
		return
	}
	hline(dst, r.Min.X, r.Max.X-1, r.Min.Y, c)
	hline(dst, r.Min.X, r.Max.X-1, r.Max.Y-1, c)
	vline(dst, r.Min.X, r.Min.Y, r.Max.Y-1, c)
	vline(dst, r.Max.X-1, r.Min.Y, r.Max.Y-1, c)
}

func hline(dst *image.NRGBA, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		dst.Set(x, y, c)
	}
}

func vline(dst *image.NRGBA, x, y0, y1 int, c color.Color) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		dst.Set(x, y, c)
	}
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / exp; {
	case f <= 1:
		return exp
	case f <= 2:
		return 2 * exp
	case f <= 5:
		return 5 * exp
	default:
		return 10 * exp
	}
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
