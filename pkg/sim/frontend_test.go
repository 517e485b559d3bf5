package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
)

func TestFrontendDecodesGainCommand(t *testing.T) {
	fe := New(pga.DefaultTable())

	require.NoError(t, fe.Tx([]byte{pga.Command, 3<<4 | 1}, nil))
	index, sel := fe.Gain()
	assert.Equal(t, uint8(3), index)
	assert.Equal(t, pga.CurrentChannel, sel)

	// Bytes outside a command are ignored, split commands are reassembled.
	_, err := fe.Transfer(0x00)
	require.NoError(t, err)
	_, err = fe.Transfer(pga.Command)
	require.NoError(t, err)
	_, err = fe.Transfer(5 << 4)
	require.NoError(t, err)
	index, sel = fe.Gain()
	assert.Equal(t, uint8(5), index)
	assert.Equal(t, pga.VoltageChannel, sel)

	writes, reads := fe.Counters()
	assert.Equal(t, 2, writes)
	assert.Equal(t, 0, reads)
}

func TestFrontendRead(t *testing.T) {
	fe := New(pga.DefaultTable())
	fe.SetSource(pga.VoltageChannel, Level(100))
	fe.SetSource(pga.CurrentChannel, Level(3000))

	raw, err := fe.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(51), raw)

	require.NoError(t, fe.Tx([]byte{pga.Command, 2<<4 | 0}, nil))
	raw, err = fe.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(251), raw)

	require.NoError(t, fe.Tx([]byte{pga.Command, 0<<4 | 1}, nil))
	raw, err = fe.Read()
	require.NoError(t, err)
	assert.Equal(t, uint16(pga.MaxRaw), raw, "clamped at full scale")

	_, reads := fe.Counters()
	assert.Equal(t, 3, reads)
}

func TestFrontendNoise(t *testing.T) {
	fe := New(pga.DefaultTable())
	fe.SetSource(pga.VoltageChannel, Level(400))
	fe.SetNoise(4)

	for range 50 {
		raw, err := fe.Read()
		require.NoError(t, err)
		assert.InDelta(t, 201, float64(raw), 3)
	}
}

func TestSourcesRoundTrip(t *testing.T) {
	cal := measure.DefaultCalibration()

	// Current: the converter inverts the shunt source.
	in := Current(500, cal).AmpInput()
	raw := uint16(in/2 + 1)
	assert.InDelta(t, 500, measure.Current(raw, 1, cal), 10)

	// Divider: the solver inverts the reference divider.
	in = Divider(4700, cal).AmpInput()
	ohms, status := measure.Resistance(uint16(in/2+1), 1, cal)
	require.Equal(t, measure.OK, status)
	assert.InEpsilon(t, 4700, ohms, 0.02)

	assert.Equal(t, float32(cal.ReferenceMilliVolts), Divider(0, cal).AmpInput())
	assert.Equal(t, float32(2*cal.ReferenceMilliVolts), Continuity(0, cal).AmpInput())
	assert.Less(t, Continuity(1000, cal).AmpInput(), float32(5))
	assert.Equal(t, float32(7), SourceFunc(func() float32 { return 7 }).AmpInput())
}
