// Package meter keeps a time window of samples from the multitool, their rate
// of change and the stretches where no value could be measured.
package meter

import (
	"math"
	"sync"
	"time"

	"github.com/itohio/gomultitool/pkg/config"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/sample"
)

var _ Recorder = (*Meter)(nil)

// Span is a run of consecutive samples sharing a status other than OK, such
// as an overflow or a short.
type Span struct {
	StartIndex int       // Start sample index in buffer
	EndIndex   int       // End sample index in buffer (updated as the span continues)
	StartTime  time.Time // Start timestamp
	EndTime    time.Time // End timestamp (updated as the span continues)
	Status     measure.Status
}

// Stats summarizes the values in the window.
type Stats struct {
	Mode  measure.Mode
	Count int // Samples with a value
	Min   float64
	Max   float64
	Mean  float64
	Last  sample.Sample
}

// Recorder processes samples, maintains buffers, and tracks failure spans.
type Recorder interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                                    // Get current samples buffer (FIFO, ordered first to last)
	Derivatives() []float64                                                      // Rate of change per second (n-1 derivatives for n samples)
	Spans() []Span                                                               // Get failure spans within window
	Stats() Stats                                                                // Summary of the window
	OnUpdate(func(samples []sample.Sample, derivatives []float64, spans []Span)) // Register callback for updates
}

// Meter implements Recorder.
// Externally exposes ordered slices (first sample/derivative first, latest last).
//
// Samples of one mode share a unit, so a mode change empties the window.
type Meter struct {
	cfg *config.Config

	// Both samples and derivatives are FIFO buffers that maintain order.
	// Removal is based on timestamp (time window), not number of samples.
	//
	// derivative[i] = (sample[i+1] - sample[i]) / dt, or 0 when either
	// sample has no value.
	samples     []sample.Sample
	derivatives []float64
	spans       []Span

	// Thread safety
	mu sync.RWMutex

	// Update callbacks
	callbacks []func(samples []sample.Sample, derivatives []float64, spans []Span)
	cbMu      sync.RWMutex

	windowDuration time.Duration

	// Shutdown control
	shutdown bool // Set to true when input channel closes, prevents further callbacks
}

// New creates a new Meter instance.
func New(cfg *config.Config) *Meter {
	return &Meter{
		cfg:            cfg,
		samples:        make([]sample.Sample, 0),
		derivatives:    make([]float64, 0),
		spans:          make([]Span, 0),
		windowDuration: time.Duration(cfg.Measurement.WindowSeconds * float64(time.Second)),
	}
}

// ProcessSamples processes samples from the input channel until it closes.
// After that no more callbacks are sent.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample adds a sample to the buffer, updates derivatives and spans.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	if len(m.samples) > 0 && m.samples[0].Mode != s.Mode {
		m.samples = m.samples[:0]
		m.derivatives = m.derivatives[:0]
		m.spans = m.spans[:0]
	}

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.windowDuration))

	if n := len(m.samples); n >= 2 {
		prev, curr := m.samples[n-2], m.samples[n-1]
		var derivative float64
		dt := curr.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt > 0 && prev.OK() && curr.OK() {
			derivative = (curr.Value - prev.Value) / dt
		}
		m.derivatives = append(m.derivatives, derivative)
	}

	m.updateSpans()

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim drops samples at or before cutoff, keeping the newest one.
func (m *Meter) trim(cutoff time.Time) {
	cut := 0
	for cut < len(m.samples)-1 && !m.samples[cut].Timestamp.After(cutoff) {
		cut++
	}
	if cut == 0 {
		return
	}

	m.samples = m.samples[cut:]
	// derivative[i] involves sample[i], so the same number goes
	m.derivatives = m.derivatives[min(cut, len(m.derivatives)):]

	valid := m.spans[:0]
	for _, span := range m.spans {
		span.StartIndex -= cut
		span.EndIndex -= cut
		if span.EndIndex < 0 {
			continue
		}
		if span.StartIndex < 0 {
			span.StartIndex = 0
			span.StartTime = m.samples[0].Timestamp
		}
		valid = append(valid, span)
	}
	m.spans = valid
}

// updateSpans extends the last span or starts a new one for the newest sample.
func (m *Meter) updateSpans() {
	last := len(m.samples) - 1
	s := m.samples[last]
	if s.OK() {
		return
	}

	if n := len(m.spans); n > 0 {
		span := &m.spans[n-1]
		if span.EndIndex == last-1 && span.Status == s.Status {
			span.EndIndex = last
			span.EndTime = s.Timestamp
			return
		}
	}

	m.spans = append(m.spans, Span{
		StartIndex: last,
		EndIndex:   last,
		StartTime:  s.Timestamp,
		EndTime:    s.Timestamp,
		Status:     s.Status,
	})
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Derivatives returns a copy of the current derivatives buffer.
func (m *Meter) Derivatives() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.derivatives))
	copy(result, m.derivatives)
	return result
}

// Spans returns a copy of the current spans.
func (m *Meter) Spans() []Span {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Span, len(m.spans))
	copy(result, m.spans)
	return result
}

// Stats summarizes the current window.
func (m *Meter) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Summarize(m.samples)
}

// Summarize computes the statistics of samples. Only samples with a value
// count towards Min, Max and Mean.
func Summarize(samples []sample.Sample) Stats {
	var st Stats
	if len(samples) == 0 {
		return st
	}
	st.Last = samples[len(samples)-1]
	st.Mode = st.Last.Mode
	st.Min = math.Inf(1)
	st.Max = math.Inf(-1)

	var sum float64
	for _, s := range samples {
		if !s.OK() {
			continue
		}
		st.Count++
		sum += s.Value
		st.Min = min(st.Min, s.Value)
		st.Max = max(st.Max, s.Value)
	}

	if st.Count == 0 {
		st.Min, st.Max = 0, 0
		return st
	}
	st.Mean = sum / float64(st.Count)
	return st
}

// OnUpdate registers a callback function that will be called when samples are updated.
// The callback should copy data quickly and return as fast as possible.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, derivatives []float64, spans []Span)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown resets the shutdown flag, allowing callbacks to be sent again.
// This should be called before starting a new measurement chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// Reset empties the window.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = m.samples[:0]
	m.derivatives = m.derivatives[:0]
	m.spans = m.spans[:0]
}

// notifyCallbacks invokes all registered callbacks with current data.
// Makes copies of data while holding read lock, then calls callbacks without lock.
func (m *Meter) notifyCallbacks() {
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	derivativesCopy := make([]float64, len(m.derivatives))
	copy(derivativesCopy, m.derivatives)
	spansCopy := make([]Span, len(m.spans))
	copy(spansCopy, m.spans)
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, derivatives []float64, spans []Span), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, derivativesCopy, spansCopy)
		}
	}
}
