// Package pga drives the programmable-gain amplifier that sits in front of the
// ADC and implements the autoranging state machine on top of it.
package pga

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Steps is the number of selectable gains.
	Steps = 8
	// MaxIndex is the highest gain index.
	MaxIndex = Steps - 1

	// MaxRaw is the full scale of the 10-bit ADC.
	MaxRaw = 1023
	// OverflowLevel is the highest raw sample still treated as in range.
	OverflowLevel = 1021
	// ShortLevel is the raw level above which the low-range resistance probe
	// reports a short circuit.
	ShortLevel = 1020

	// DefaultSettle is the analog settling time after a gain or channel change.
	DefaultSettle = 25 * time.Millisecond
)

var (
	ErrGains      = errors.New("pga: gains must be non-zero and strictly increasing")
	ErrThresholds = errors.New("pga: switch thresholds out of range")
)

// Table holds the gain multipliers and the per-gain switch-up thresholds.
// Thresholds[i] is the raw level below which gain i has room to go up one step.
type Table struct {
	Gains      [Steps]uint8
	Thresholds [Steps]uint16
}

// DefaultTable returns the factory gain table. The thresholds leave some
// headroom below the theoretical 512/204/102 switch points so a step up does
// not land straight in overflow for common signal levels.
func DefaultTable() Table {
	return Table{
		Gains:      [Steps]uint8{1, 2, 5, 10, 20, 50, 100, 200},
		Thresholds: [Steps]uint16{480, 170, 70, 480, 170, 70, 480, 0},
	}
}

// Validate checks the invariants the sampler relies on.
func (t *Table) Validate() error {
	for i, g := range t.Gains {
		if g == 0 || (i > 0 && g <= t.Gains[i-1]) {
			return fmt.Errorf("%w: gain[%d]=%d", ErrGains, i, g)
		}
	}
	for i, th := range t.Thresholds {
		if th > OverflowLevel {
			return fmt.Errorf("%w: threshold[%d]=%d above %d", ErrThresholds, i, th, OverflowLevel)
		}
	}
	// At the top of the table there is nowhere to go.
	if t.Thresholds[MaxIndex] != 0 {
		return fmt.Errorf("%w: threshold[%d] must be 0", ErrThresholds, MaxIndex)
	}
	return nil
}

// Gain returns the multiplier for index i.
func (t *Table) Gain(i uint8) int64 {
	return int64(t.Gains[i&MaxIndex])
}
