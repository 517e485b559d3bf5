package measure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
	"github.com/itohio/gomultitool/pkg/sim"
)

func newSimScanner(t *testing.T) (*measure.Scanner, *sim.Frontend) {
	t.Helper()
	tbl := pga.DefaultTable()
	fe := sim.New(tbl)
	s := pga.NewSampler(pga.NewRegister(fe, nil), fe, 0, func(time.Duration) {})
	return measure.NewScanner(measure.New(s, &tbl, measure.DefaultCalibration())), fe
}

// pollUntil polls until a reading comes back or the budget runs out.
func pollUntil(t *testing.T, s *measure.Scanner, budget int) measure.Reading {
	t.Helper()
	for range budget {
		r, ok, err := s.Poll()
		require.NoError(t, err)
		if ok {
			return r
		}
	}
	t.Fatalf("no reading after %d polls", budget)
	return measure.Reading{}
}

func TestModeLetters(t *testing.T) {
	for _, m := range []measure.Mode{measure.ModeCurrent, measure.ModeVoltage, measure.ModeResistance, measure.ModeShortTest} {
		back, ok := measure.ModeFromLetter(m.Letter())
		require.True(t, ok)
		assert.Equal(t, m, back)
	}
	_, ok := measure.ModeFromLetter('x')
	assert.False(t, ok)
}

func TestScannerCurrent(t *testing.T) {
	cal := measure.DefaultCalibration()

	for _, mA := range []float32{5, 42, 100, 250, 800, 1500} {
		s, fe := newSimScanner(t)
		fe.SetSource(pga.CurrentChannel, sim.Current(mA, cal))

		// One poll per gain level at most, plus the conversion.
		r := pollUntil(t, s, pga.Steps+1)
		assert.Equal(t, measure.ModeCurrent, r.Mode)
		require.Equal(t, measure.OK, r.Status, "mA=%v", mA)
		assert.InDelta(t, mA, float64(r.Value), float64(mA)*0.03+1, "mA=%v", mA)
		assert.Equal(t, r.Value, s.LastCurrent())
	}
}

func TestScannerCurrentOverflow(t *testing.T) {
	s, fe := newSimScanner(t)
	fe.SetSource(pga.CurrentChannel, sim.Level(5000))

	r := pollUntil(t, s, 1)
	assert.Equal(t, measure.Overflow, r.Status)
}

func TestScannerVoltageCompensates(t *testing.T) {
	cal := measure.DefaultCalibration()
	s, fe := newSimScanner(t)
	fe.SetSource(pga.CurrentChannel, sim.Current(100, cal))
	fe.SetSource(pga.VoltageChannel, sim.Voltage(5000, 100, cal))

	s.SetMode(measure.ModeVoltage)
	r := pollUntil(t, s, 2*(pga.Steps+1))
	require.Equal(t, measure.OK, r.Status)
	assert.Equal(t, measure.ModeVoltage, r.Mode)
	assert.Equal(t, int64(100), s.LastCurrent())
	assert.InDelta(t, 5000, float64(r.Value), 100)

	// Following readings alternate current and voltage and stay put.
	for range 3 {
		next := pollUntil(t, s, 2)
		assert.Equal(t, r.Value, next.Value)
	}
}

func TestScannerResistance(t *testing.T) {
	cal := measure.DefaultCalibration()

	for _, ohms := range []float32{200, 1000, 4700, 22000} {
		s, fe := newSimScanner(t)
		fe.SetSource(pga.VoltageChannel, sim.Divider(ohms, cal))
		s.SetMode(measure.ModeResistance)

		r := pollUntil(t, s, pga.Steps+1)
		require.Equal(t, measure.OK, r.Status, "ohms=%v", ohms)
		assert.InEpsilon(t, float64(ohms), r.Ohms, 0.05, "ohms=%v", ohms)
	}
}

func TestScannerShortTest(t *testing.T) {
	s, fe := newSimScanner(t)
	fe.SetSource(pga.VoltageChannel, sim.Level(3000))
	s.SetMode(measure.ModeShortTest)

	r, ok, err := s.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, measure.Short, r.Status)

	fe.SetSource(pga.VoltageChannel, sim.Level(100))
	r, ok, err = s.Poll()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, measure.Undefined, r.Status)
}

func TestScannerShortTestAfterVoltage(t *testing.T) {
	cal := measure.DefaultCalibration()
	s, fe := newSimScanner(t)
	fe.SetSource(pga.VoltageChannel, sim.Voltage(500, 0, cal))
	s.SetMode(measure.ModeVoltage)

	var r measure.Reading
	for range 4 * (pga.Steps + 1) {
		r = pollUntil(t, s, 2*(pga.Steps+1))
		if r.Mode == measure.ModeVoltage && r.Status == measure.OK {
			break
		}
	}
	require.Equal(t, measure.OK, r.Status)
	require.Equal(t, uint8(5), r.Index, "a small voltage autoranges to a high gain")

	// 50 ohm is no short, whatever gain voltage mode left behind.
	fe.SetSource(pga.VoltageChannel, sim.Continuity(50, cal))
	s.SetMode(measure.ModeShortTest)
	r = pollUntil(t, s, 1)
	assert.Equal(t, measure.Undefined, r.Status)
	assert.Equal(t, uint8(0), r.Index)
	assert.Equal(t, uint16(41), r.Raw)

	fe.SetSource(pga.VoltageChannel, sim.Continuity(0, cal))
	r = pollUntil(t, s, 1)
	assert.Equal(t, measure.Short, r.Status)
}

func TestScannerSetModeKeepsGains(t *testing.T) {
	cal := measure.DefaultCalibration()
	s, fe := newSimScanner(t)
	fe.SetSource(pga.CurrentChannel, sim.Current(5, cal))

	pollUntil(t, s, pga.Steps+1)
	idx, sel := fe.Gain()
	assert.Equal(t, pga.CurrentChannel, sel)
	assert.Greater(t, idx, uint8(0))

	s.SetMode(measure.ModeResistance)
	s.SetMode(measure.ModeCurrent)
	assert.Equal(t, int64(0), s.LastCurrent())

	r, ok, err := s.Poll()
	require.NoError(t, err)
	assert.True(t, ok, "a settled channel converts on the first poll")
	assert.Equal(t, idx, r.Index)
}
