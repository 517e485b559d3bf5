package measure

// Mode selects what the scanner measures.
type Mode uint8

const (
	ModeCurrent Mode = iota
	ModeVoltage
	ModeResistance
	ModeShortTest
)

var modeLetters = [...]byte{
	ModeCurrent:    'I',
	ModeVoltage:    'V',
	ModeResistance: 'R',
	ModeShortTest:  'S',
}

// Letter returns the one-letter code used on the wire.
func (m Mode) Letter() byte {
	if int(m) < len(modeLetters) {
		return modeLetters[m]
	}
	return '?'
}

func (m Mode) String() string {
	switch m {
	case ModeCurrent:
		return "current"
	case ModeVoltage:
		return "voltage"
	case ModeResistance:
		return "resistance"
	case ModeShortTest:
		return "short_test"
	default:
		return "unknown"
	}
}

// ModeFromLetter is the inverse of Mode.Letter.
func ModeFromLetter(c byte) (Mode, bool) {
	for i, l := range modeLetters {
		if l == c {
			return Mode(i), true
		}
	}
	return 0, false
}

// Reading is a settled measurement.
type Reading struct {
	Mode Mode
	Result
}

// Scanner is the polling side of the meter: call Poll from the main loop no
// faster than the settling delay and display only what it returns.
//
// In voltage mode every other poll measures current so the voltage can be
// compensated for the shunt drop.
type Scanner struct {
	meter *Meter
	mode  Mode

	// lastCurrent is the most recent settled current in milliamps.
	lastCurrent int64
	// wantVoltage alternates between the two channels in voltage mode.
	wantVoltage bool
}

// NewScanner creates a scanner in current mode.
func NewScanner(m *Meter) *Scanner {
	return &Scanner{meter: m}
}

// Mode returns the active mode.
func (s *Scanner) Mode() Mode { return s.mode }

// SetMode switches what Poll measures. Channel gains are kept.
func (s *Scanner) SetMode(mode Mode) {
	if mode == s.mode {
		return
	}
	s.mode = mode
	s.lastCurrent = 0
	s.wantVoltage = false
}

// LastCurrent returns the current used for voltage compensation.
func (s *Scanner) LastCurrent() int64 { return s.lastCurrent }

// Poll runs one measurement call. ok is false while the gain is still
// settling; any other status, including failures, is returned as a reading.
func (s *Scanner) Poll() (r Reading, ok bool, err error) {
	r.Mode = s.mode

	switch s.mode {
	case ModeCurrent:
		r.Result, err = s.meter.Current()
		if err == nil && r.Status == OK {
			s.lastCurrent = r.Value
		}
	case ModeVoltage:
		if !s.wantVoltage {
			var cur Result
			cur, err = s.meter.Current()
			if err != nil {
				return r, false, err
			}
			switch cur.Status {
			case Retry:
				return r, false, nil
			case OK:
				s.lastCurrent = cur.Value
			default:
				// No usable current; compensate with nothing.
				s.lastCurrent = 0
			}
			s.wantVoltage = true
			return r, false, nil
		}
		r.Result, err = s.meter.Voltage(s.lastCurrent)
		if err == nil && r.Status != Retry {
			s.wantVoltage = false
		}
	case ModeResistance:
		r.Result, err = s.meter.Resistance(false)
	case ModeShortTest:
		r.Result, err = s.meter.Resistance(true)
	}

	if err != nil {
		return r, false, err
	}
	return r, r.Status != Retry, nil
}
