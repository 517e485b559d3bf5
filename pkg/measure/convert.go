package measure

// Calibration holds the board constants the converters scale by.
//
//	Vin     R1      V      R2      A      R3
//	 o----/\/\/\----+----/\/\/\----+----/\/\/\---- GND
type Calibration struct {
	// DividerRatio scales the amplifier input back to the probe voltage.
	DividerRatio int64 `yaml:"divider_ratio"`
	// ShuntTenths is the current shunt R3 in tenths of an ohm.
	ShuntTenths int64 `yaml:"shunt_tenths"`
	// ReferenceMilliVolts is the divider supply used for resistance.
	ReferenceMilliVolts int64 `yaml:"reference_mv"`
	// KnownResistorTenths is the reference leg R2 in tenths of an ohm.
	KnownResistorTenths int64 `yaml:"known_resistor_tenths"`
	// ResistanceOffset is added to every resistance result (ohms).
	ResistanceOffset float64 `yaml:"resistance_offset"`
}

// DefaultCalibration returns the constants of the production board.
func DefaultCalibration() Calibration {
	return Calibration{
		DividerRatio:        97,
		ShuntTenths:         10,
		ReferenceMilliVolts: 2036,
		KnownResistorTenths: 99800,
		ResistanceOffset:    50,
	}
}

// AmpInput undoes the 2x pre-scale of the ADC front end and its one count
// offset, giving millivolts at the amplifier output.
func AmpInput(raw uint16) int64 {
	return (int64(raw) - 1) << 1
}

// Current converts a current-channel sample taken at gain to milliamps.
// Every division truncates, so results sit up to one unit low.
func Current(raw uint16, gain int64, cal Calibration) int64 {
	v := AmpInput(raw)
	v *= cal.DividerRatio
	v /= gain
	v /= cal.ShuntTenths
	return v / 10
}

// Voltage converts a voltage-channel sample taken at gain to millivolts.
// currentMA is the latest current reading; the shunt shares a node with the
// voltage divider, so its drop is subtracted. Pass 0 when no current flows.
func Voltage(raw uint16, gain int64, currentMA int64, cal Calibration) int64 {
	v := AmpInput(raw) * 100 // hundredths of a millivolt
	v /= gain
	v -= currentMA * 100
	v *= cal.DividerRatio
	return v / 100
}

// Resistance solves the reference divider for the unknown resistor. The
// formula is singular at both ends: a zero amplifier input is an open circuit
// and an input at or above the reference is a short.
func Resistance(raw uint16, gain int64, cal Calibration) (float64, Status) {
	v := AmpInput(raw) / gain
	if v <= 0 {
		return 0, OutOfRange
	}
	if v >= cal.ReferenceMilliVolts {
		return 0, Short
	}
	known := cal.KnownResistorTenths / 10
	ohms := float64((cal.ReferenceMilliVolts-v)*known) / float64(v)
	return ohms + cal.ResistanceOffset, OK
}
