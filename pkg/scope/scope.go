// Package scope is a fyne widget that plots the windowed readings of the
// multitool.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gomultitool/pkg/config"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/meter"
	"github.com/itohio/gomultitool/pkg/sample"
)

// ScopeWidget is a custom Fyne widget that displays oscilloscope-style measurement graphs.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.Config

	// Data (protected by mu)
	mu          sync.RWMutex
	samples     []sample.Sample
	derivatives []float64
	spans       []meter.Span
	stats       meter.Stats
	showRate    bool

	// Display buffers (reused for downsampling)
	displaySamples     []sample.Sample
	displayDerivatives []float64

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget instance.
func New(cfg *config.Config) *ScopeWidget {
	s := &ScopeWidget{
		cfg:                cfg,
		samples:            make([]sample.Sample, 0),
		derivatives:        make([]float64, 0),
		spans:              make([]meter.Span, 0),
		displaySamples:     make([]sample.Sample, 0, 1000),
		displayDerivatives: make([]float64, 0, 1000),
		maxDisplayPoints:   1000, // Limit points for efficient rendering
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// SetShowRate toggles the rate-of-change trace.
func (s *ScopeWidget) SetShowRate(show bool) {
	s.mu.Lock()
	s.showRate = show
	s.updateAutoScale()
	s.mu.Unlock()
	s.Refresh()
}

// UpdateData updates the widget with new measurement data.
// This should be called from the measurement callback using fyne.Do().
func (s *ScopeWidget) UpdateData(samples []sample.Sample, derivatives []float64, spans []meter.Span) {
	s.mu.Lock()

	// Downsample for display (reuse buffers)
	s.displaySamples = sample.DownsampleSamples(s.displaySamples, samples, s.maxDisplayPoints)
	s.displayDerivatives = sample.DownsampleValues(s.displayDerivatives, derivatives, s.maxDisplayPoints)

	// Store full data
	s.samples = samples
	s.derivatives = derivatives
	s.spans = spans
	s.stats = meter.Summarize(samples)

	s.updateAutoScale()

	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// mode returns the mode of the displayed data.
func (s *ScopeWidget) mode() measure.Mode {
	if len(s.displaySamples) == 0 {
		return measure.ModeCurrent
	}
	return s.displaySamples[0].Mode
}

// updateAutoScale calculates the axis ranges from current data.
func (s *ScopeWidget) updateAutoScale() {
	window := time.Duration(s.cfg.Measurement.WindowSeconds * float64(time.Second))
	if len(s.displaySamples) == 0 {
		s.yMin = 0.0
		s.yMax = 1.0
		s.xMin = time.Now()
		s.xMax = s.xMin.Add(window)
		return
	}

	s.yMin, s.yMax = valueRange(s.displaySamples)
	if s.showRate {
		for _, deriv := range s.displayDerivatives {
			s.yMin = min(s.yMin, deriv)
			s.yMax = max(s.yMax, deriv)
		}
	}

	// Add 10% margin
	span := s.yMax - s.yMin
	if span == 0 {
		span = max(1.0, abs(s.yMax))
	}
	margin := span * 0.1
	s.yMin -= margin
	s.yMax += margin

	// Time range
	s.xMin = s.displaySamples[0].Timestamp
	s.xMax = s.displaySamples[len(s.displaySamples)-1].Timestamp
	// Ensure minimum window
	if s.xMax.Sub(s.xMin) < window {
		s.xMax = s.xMin.Add(window)
	}
}

// valueRange returns the min and max value of samples that carry one, or
// 0..0 when none do.
func valueRange(samples []sample.Sample) (lo, hi float64) {
	first := true
	for _, s := range samples {
		if !s.OK() {
			continue
		}
		if first {
			lo, hi = s.Value, s.Value
			first = false
			continue
		}
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}
	return lo, hi
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
