package scope

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/meter"
	"github.com/itohio/gomultitool/pkg/sample"
)

var (
	colorGrid   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	colorAxis   = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	colorValue  = color.RGBA{R: 255, G: 165, B: 0, A: 255}   // Orange
	colorRate   = color.RGBA{R: 100, G: 200, B: 255, A: 255} // Light blue
	colorStats  = color.RGBA{R: 200, G: 200, B: 200, A: 255} // Light gray
	colorShort  = color.RGBA{R: 0, G: 200, B: 80, A: 60}
	colorFailed = color.RGBA{R: 220, G: 40, B: 40, A: 60}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plot maps data coordinates into the plot area.
type plot struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (p plot) px(t time.Time) float32 {
	return p.x + float32(t.Sub(p.xMin).Seconds()/p.xMax.Sub(p.xMin).Seconds())*p.w
}

func (p plot) py(v float64) float32 {
	return p.y + p.h - float32((v-p.yMin)/(p.yMax-p.yMin))*p.h
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	// Background fills entire widget
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		// Size changed, redraw with new dimensions
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	derivatives := r.scope.displayDerivatives
	spans := r.scope.spans
	full := r.scope.samples
	stats := r.scope.stats
	showRate := r.scope.showRate
	mode := r.scope.mode()
	p := plot{
		yMin: r.scope.yMin,
		yMax: r.scope.yMax,
		xMin: r.scope.xMin,
		xMax: r.scope.xMax,
	}
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	// Calculate margins
	marginLeft := float32(70.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	p.x = marginLeft
	p.y = marginTop
	p.w = size.Width - marginLeft - marginRight
	p.h = size.Height - marginTop - marginBottom

	unit := sample.Unit(mode)
	r.drawGrid(p, unit)
	// Spans index the full buffer, not the downsampled one
	r.drawSpans(p, spans, full)
	r.drawValueLine(p, samples)
	if showRate {
		r.drawRateLine(p, derivatives, samples)
	}
	r.drawStats(p, stats, unit)
}

// drawGrid draws the oscilloscope-style grid.
func (r *scopeRenderer) drawGrid(p plot, unit string) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.h/float32(numHLines)
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(p.x, y)
		line.Position2 = fyne.NewPos(p.x+p.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/float64(numHLines)
		text := canvas.NewText(formatValue(value, unit), colorAxis)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(p.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	numVLines := 10
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.w/float32(numVLines)
		line := canvas.NewLine(colorGrid)
		line.Position1 = fyne.NewPos(x, p.y)
		line.Position2 = fyne.NewPos(x, p.y+p.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		offset := time.Duration(float64(i) * float64(p.xMax.Sub(p.xMin)) / float64(numVLines))
		text := canvas.NewText(formatTime(offset), colorAxis)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, p.y+p.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawValueLine draws the measured values (orange). Samples without a value
// break the line.
func (r *scopeRenderer) drawValueLine(p plot, samples []sample.Sample) {
	for i := 1; i < len(samples); i++ {
		prev, curr := samples[i-1], samples[i]
		if !prev.OK() || !curr.OK() {
			continue
		}
		line := canvas.NewLine(colorValue)
		line.Position1 = fyne.NewPos(p.px(prev.Timestamp), p.py(prev.Value))
		line.Position2 = fyne.NewPos(p.px(curr.Timestamp), p.py(curr.Value))
		line.StrokeWidth = 1.5
		r.objects = append(r.objects, line)
	}
}

// drawRateLine draws the rate of change (light blue).
func (r *scopeRenderer) drawRateLine(p plot, derivatives []float64, samples []sample.Sample) {
	points := make([]fyne.Position, 0, len(derivatives))
	for i, deriv := range derivatives {
		if i+1 >= len(samples) {
			break
		}
		// Use midpoint between samples for derivative position
		mid := samples[i].Timestamp.Add(samples[i+1].Timestamp.Sub(samples[i].Timestamp) / 2)
		points = append(points, fyne.NewPos(p.px(mid), p.py(deriv)))
	}

	for i := range len(points) - 1 {
		line := canvas.NewLine(colorRate)
		line.Position1 = points[i]
		line.Position2 = points[i+1]
		line.StrokeWidth = 2.5
		r.objects = append(r.objects, line)
	}
}

// drawSpans shades the stretches without a value and names their status.
func (r *scopeRenderer) drawSpans(p plot, spans []meter.Span, samples []sample.Sample) {
	for _, span := range spans {
		if span.StartIndex < 0 || span.EndIndex >= len(samples) || span.StartIndex > span.EndIndex {
			continue
		}

		fill := colorFailed
		if span.Status == measure.Short {
			fill = colorShort
		}

		x0 := p.px(span.StartTime)
		x1 := max(p.px(span.EndTime), x0+2)
		rect := canvas.NewRectangle(fill)
		rect.Move(fyne.NewPos(x0, p.y))
		rect.Resize(fyne.NewSize(x1-x0, p.h))
		r.objects = append(r.objects, rect)

		text := canvas.NewText(span.Status.String(), colorStats)
		text.TextSize = 10
		text.Move(fyne.NewPos(x0+2, p.y+2))
		r.objects = append(r.objects, text)
	}
}

// drawStats draws the window summary in the top left corner.
func (r *scopeRenderer) drawStats(p plot, st meter.Stats, unit string) {
	if st.Last.Timestamp.IsZero() {
		return
	}

	line := st.Mode.String() + "  " + st.Last.String()
	if st.Count > 0 {
		line += "   min " + formatValue(st.Min, unit) +
			"  max " + formatValue(st.Max, unit) +
			"  mean " + formatValue(st.Mean, unit)
	}
	text := canvas.NewText(line, colorStats)
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(p.x+10, p.y+10))
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}
