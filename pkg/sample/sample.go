// Package sample turns readings from the multitool into samples in physical
// units and provides the stream stages between the device and the display.
package sample

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/wire"
)

// Sample represents a processed reading with its value in SI units.
type Sample struct {
	Timestamp time.Time
	Mode      measure.Mode
	Status    measure.Status
	Index     uint8   // Gain index the reading settled at
	Value     float64 // Amperes, volts or ohms depending on Mode; 0 unless Status is OK
}

// OK reports whether the sample carries a value.
func (s Sample) OK() bool { return s.Status == measure.OK }

// Current returns the value as a current. Only meaningful in current mode.
func (s Sample) Current() physic.ElectricCurrent {
	return physic.ElectricCurrent(math.Round(s.Value * float64(physic.Ampere)))
}

// Voltage returns the value as a potential. Only meaningful in voltage mode.
func (s Sample) Voltage() physic.ElectricPotential {
	return physic.ElectricPotential(math.Round(s.Value * float64(physic.Volt)))
}

// Resistance returns the value as a resistance. Only meaningful in
// resistance mode.
func (s Sample) Resistance() physic.ElectricResistance {
	return physic.ElectricResistance(math.Round(s.Value * float64(physic.Ohm)))
}

// String formats the value with its unit, or the status when there is none.
func (s Sample) String() string {
	if !s.OK() {
		return s.Status.String()
	}
	switch s.Mode {
	case measure.ModeCurrent:
		return s.Current().String()
	case measure.ModeVoltage:
		return s.Voltage().String()
	case measure.ModeResistance:
		return s.Resistance().String()
	default:
		return fmt.Sprintf("%g", s.Value)
	}
}

// Unit returns the SI unit symbol of the mode.
func Unit(m measure.Mode) string {
	switch m {
	case measure.ModeCurrent:
		return "A"
	case measure.ModeVoltage:
		return "V"
	case measure.ModeResistance:
		return "Ω"
	default:
		return ""
	}
}

// Converter is a function type that converts a wire.Line channel to a Sample channel.
type Converter func(in <-chan wire.Line) <-chan Sample

// NewConverter creates a converter function that transforms lines to samples.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan wire.Line) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for l := range in {
				select {
				case out <- convertLine(l):
				case <-time.After(time.Second):
					log.Printf("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// convertLine scales the firmware units (mA, mV, ohm) to SI.
func convertLine(l wire.Line) Sample {
	s := Sample{
		Timestamp: l.Timestamp,
		Mode:      l.Mode,
		Status:    l.Status,
		Index:     l.Index,
	}
	if l.Status != measure.OK {
		return s
	}

	switch l.Mode {
	case measure.ModeCurrent, measure.ModeVoltage:
		s.Value = float64(l.Value) / 1000
	case measure.ModeResistance:
		s.Value = l.Ohms
	}
	return s
}
