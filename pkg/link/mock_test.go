package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/calib"
	"github.com/itohio/gomultitool/pkg/config"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
	"github.com/itohio/gomultitool/pkg/wire"
)

func newTestMock(t *testing.T) *Mock {
	t.Helper()
	cfg := config.Default()
	cfg.Mock.NoiseMV = 0
	cfg.Mock.SampleRate = time.Millisecond
	cfg.PGA.Settle = time.Millisecond
	return NewMock(cfg)
}

// next waits for the next reading in mode.
func next(t *testing.T, m *Mock, mode measure.Mode) wire.Line {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case l, ok := <-m.Readings():
			require.True(t, ok, "readings channel closed")
			if l.Mode == mode {
				return l
			}
		case <-timeout:
			t.Fatalf("no %v reading", mode)
		}
	}
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	assert.NotNil(t, dev)
	assert.Equal(t, config.Default().Mock, dev.cfg)
	assert.Equal(t, measure.DefaultCalibration(), dev.cal)
	assert.Equal(t, measure.ModeCurrent, dev.start)
	assert.False(t, dev.IsConnected())
}

func TestMock_Settle(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.SampleRate = time.Millisecond
	cfg.PGA.Settle = 3 * time.Millisecond

	dev := NewMock(cfg)
	require.NoError(t, dev.Connect())
	defer dev.Close()
	assert.Equal(t, 3*time.Millisecond, dev.sampler.Settle())

	// Gain writes while autoranging wait out the settle time.
	start := time.Now()
	next(t, dev, measure.ModeCurrent)
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)

	// Zero falls back to the amplifier default.
	cfg.PGA.Settle = 0
	dev = NewMock(cfg)
	require.NoError(t, dev.Connect())
	defer dev.Close()
	assert.Equal(t, pga.DefaultSettle, dev.sampler.Settle())
}

func TestNewMock_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.PGA.Gains = []int{1, 2}
	cfg.Measurement.Mode = "bogus"
	cfg.Mock.SampleRate = 0

	dev := NewMock(cfg)
	assert.Equal(t, uint8(200), dev.table.Gains[7])
	assert.Equal(t, measure.ModeCurrent, dev.start)
	assert.Equal(t, config.Default().Mock.SampleRate, dev.cfg.SampleRate)
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := newTestMock(t)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	err := dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestMock_Close_NotConnected(t *testing.T) {
	dev := newTestMock(t)
	assert.NoError(t, dev.Close())
}

func TestMock_SeedsCalibration(t *testing.T) {
	dev := newTestMock(t)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	buf := make([]byte, 8)
	_, err := dev.eeprom.ReadAt(buf, calib.GainsOffset)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 5, 10, 20, 50, 100, 200}, buf)
}

func TestMock_Current(t *testing.T) {
	dev := newTestMock(t)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	l := next(t, dev, measure.ModeCurrent)
	require.Equal(t, measure.OK, l.Status)
	assert.InDelta(t, 120, l.Value, 5)
}

func TestMock_SetMode(t *testing.T) {
	dev := newTestMock(t)

	err := dev.SetMode(measure.ModeVoltage)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	require.NoError(t, dev.Connect())
	defer dev.Close()

	require.NoError(t, dev.SetMode(measure.ModeVoltage))
	l := next(t, dev, measure.ModeVoltage)
	require.Equal(t, measure.OK, l.Status)
	assert.InEpsilon(t, 5000, float64(l.Value), 0.05)

	require.NoError(t, dev.SetMode(measure.ModeResistance))
	l = next(t, dev, measure.ModeResistance)
	require.Equal(t, measure.OK, l.Status)
	assert.InEpsilon(t, 4700, l.Ohms, 0.05)
}

func TestMock_ShortTest(t *testing.T) {
	dev := newTestMock(t)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	load := config.Default().Mock
	load.ResistanceOhms = 0
	dev.SetLoad(load)

	require.NoError(t, dev.SetMode(measure.ModeShortTest))
	l := next(t, dev, measure.ModeShortTest)
	assert.Equal(t, measure.Short, l.Status)

	// Readings already queued may still report the short.
	load.ResistanceOhms = 4700
	dev.SetLoad(load)
	for l.Status == measure.Short {
		l = next(t, dev, measure.ModeShortTest)
	}
	assert.Equal(t, measure.Undefined, l.Status)
}

// TestMock_GracefulShutdown tests that the Mock closes its readings channel
// when Close() is called.
func TestMock_GracefulShutdown(t *testing.T) {
	dev := newTestMock(t)
	require.NoError(t, dev.Connect())

	readings := dev.Readings()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range readings {
			received++
			if received == 3 {
				// Got enough readings, now close device
				dev.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Readings channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive readings before channel closes")
	assert.False(t, dev.IsConnected())

	_, ok := <-readings
	assert.False(t, ok, "Channel should be closed")
}
