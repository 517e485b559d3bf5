package measure

import (
	"github.com/itohio/gomultitool/pkg/pga"
)

// Meter measures current, voltage and resistance through one amplifier.
// Each call does at most one gain step or one conversion.
//
// Current uses the current input; voltage and resistance share the voltage
// input and its gain index. Alternating between current and resistance pays a
// channel switch and a settling delay on every call.
type Meter struct {
	sampler *pga.Sampler
	cal     Calibration

	voltage *pga.Channel
	current *pga.Channel
}

// New creates a meter. Both channels start at the lowest gain.
func New(sampler *pga.Sampler, table *pga.Table, cal Calibration) *Meter {
	return &Meter{
		sampler: sampler,
		cal:     cal,
		voltage: pga.NewChannel(pga.VoltageChannel, table),
		current: pga.NewChannel(pga.CurrentChannel, table),
	}
}

// Calibration returns the constants the meter converts with.
func (m *Meter) Calibration() Calibration { return m.cal }

// VoltageChannel returns the voltage input channel.
func (m *Meter) VoltageChannel() *pga.Channel { return m.voltage }

// CurrentChannel returns the current input channel.
func (m *Meter) CurrentChannel() *pga.Channel { return m.current }

// Current measures the current channel in milliamps.
func (m *Meter) Current() (Result, error) {
	step, err := m.sampler.Sample(m.current)
	if err != nil {
		return Result{}, err
	}
	res, ok := m.pending(step)
	if !ok {
		return res, nil
	}
	res.Value = Current(step.Raw, m.current.Table().Gain(step.Index), m.cal)
	return res, nil
}

// Voltage measures the voltage channel in millivolts, compensating for the
// drop of currentMA across the shunt.
func (m *Meter) Voltage(currentMA int64) (Result, error) {
	step, err := m.sampler.Sample(m.voltage)
	if err != nil {
		return Result{}, err
	}
	res, ok := m.pending(step)
	if !ok {
		return res, nil
	}
	res.Value = Voltage(step.Raw, m.voltage.Table().Gain(step.Index), currentMA, m.cal)
	return res, nil
}

// Resistance measures the unknown resistor against the reference divider.
//
// With lowRange set the call is a short-circuit probe: it reads once at the
// lowest gain without autoranging and reports Short above pga.ShortLevel.
// Anything else is Undefined. The voltage channel keeps its autoranged gain.
func (m *Meter) Resistance(lowRange bool) (Result, error) {
	if lowRange {
		raw, err := m.sampler.ReadAtGain(m.voltage, 0)
		if err != nil {
			return Result{}, err
		}
		res := Result{Status: Undefined, Index: 0, Raw: raw}
		if raw > pga.ShortLevel {
			res.Status = Short
		}
		return res, nil
	}

	step, err := m.sampler.Sample(m.voltage)
	if err != nil {
		return Result{}, err
	}
	res, ok := m.pending(step)
	if !ok {
		return res, nil
	}
	res.Ohms, res.Status = Resistance(step.Raw, m.voltage.Table().Gain(step.Index), m.cal)
	return res, nil
}

// pending fills in the non-value fields and reports whether step can be
// converted.
func (m *Meter) pending(step pga.Step) (Result, bool) {
	res := Result{Index: step.Index, Raw: step.Raw}
	switch {
	case step.Changed:
		res.Status = Retry
		return res, false
	case step.State == pga.SaturatedLow:
		res.Status = Overflow
		return res, false
	}
	return res, true
}
