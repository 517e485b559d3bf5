// Package measure turns autoranged PGA samples into milliamps, millivolts and
// ohms.
package measure

import "errors"

// Status tags the outcome of one measurement call.
type Status uint8

const (
	// OK carries a converted value.
	OK Status = iota
	// Retry means the gain was stepped and the reading must be repeated.
	Retry
	// Overflow means the signal is too large even at the lowest gain.
	Overflow
	// Short means the resistance probe sees a short circuit.
	Short
	// OutOfRange means the divider formula is singular for this sample.
	OutOfRange
	// Undefined marks the low-range probe result for anything that is not a
	// short. The intended behaviour is unresolved.
	Undefined
)

var (
	ErrRetry      = errors.New("measure: gain changed, retry")
	ErrOverflow   = errors.New("measure: signal above range at lowest gain")
	ErrShort      = errors.New("measure: short circuit")
	ErrOutOfRange = errors.New("measure: resistance out of range")
	ErrUndefined  = errors.New("measure: measurement undefined")
)

var statusNames = [...]string{
	OK:         "ok",
	Retry:      "retry",
	Overflow:   "overflow",
	Short:      "short",
	OutOfRange: "out_of_range",
	Undefined:  "undefined",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// Result is the outcome of one measurement call.
type Result struct {
	Status Status
	// Index is the gain index the sample was taken at.
	Index uint8
	Raw   uint16
	// Value is in milliamps or millivolts for OK current and voltage results.
	Value int64
	// Ohms is set for OK resistance results.
	Ohms float64
}

// Ready reports whether the result carries a value.
func (r Result) Ready() bool { return r.Status == OK }

// Err maps the status to a sentinel error; nil for OK.
func (r Result) Err() error {
	switch r.Status {
	case OK:
		return nil
	case Retry:
		return ErrRetry
	case Overflow:
		return ErrOverflow
	case Short:
		return ErrShort
	case OutOfRange:
		return ErrOutOfRange
	default:
		return ErrUndefined
	}
}
