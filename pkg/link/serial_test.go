package link

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/wire"
)

// fakePort feeds lines written to in to the reader and records commands.
type fakePort struct {
	r  *io.PipeReader
	in *io.PipeWriter

	mu  sync.Mutex
	out bytes.Buffer
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, in: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *fakePort) Close() error { return p.r.Close() }

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func newTestSerial(t *testing.T) (*Serial, *fakePort) {
	t.Helper()
	port := newFakePort()
	dev := New("test", 0, 0)
	dev.open = func(name string, baudRate int) (io.ReadWriteCloser, error) {
		assert.Equal(t, "test", name)
		assert.Equal(t, DefaultBaudRate, baudRate)
		return port, nil
	}
	return dev, port
}

func TestNew(t *testing.T) {
	dev := New("COM3", 57600, 10)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 57600, dev.baudRate)
	assert.Equal(t, 10, dev.bufSize)
	assert.NotNil(t, dev.readings)
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("COM3", 0, 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_Readings(t *testing.T) {
	dev, port := newTestSerial(t)
	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())

	go func() {
		io.WriteString(port.in, "1234567890123,I,ok,0,1162\r\n")
		io.WriteString(port.in, "calib: no gain calibration stored\n")
		io.WriteString(port.in, "\n")
		io.WriteString(port.in, "1234567890124,R,short,0,0.0\n")
	}()

	var got []wire.Line
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case l := <-dev.Readings():
			got = append(got, l)
		case <-timeout:
			t.Fatalf("received %d readings", len(got))
		}
	}

	assert.Equal(t, measure.ModeCurrent, got[0].Mode)
	assert.Equal(t, int64(1162), got[0].Value)
	assert.Equal(t, measure.ModeResistance, got[1].Mode)
	assert.Equal(t, measure.Short, got[1].Status)

	require.NoError(t, dev.Close())
}

func TestSerial_SetMode(t *testing.T) {
	dev, port := newTestSerial(t)

	err := dev.SetMode(measure.ModeVoltage)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	require.NoError(t, dev.Connect())
	require.NoError(t, dev.SetMode(measure.ModeVoltage))
	require.NoError(t, dev.SetMode(measure.ModeShortTest))
	assert.Equal(t, "V\nS\n", port.written())
	assert.Equal(t, measure.ModeShortTest, dev.Mode())

	require.NoError(t, dev.Close())
}

func TestSerial_ConnectTwice(t *testing.T) {
	dev, _ := newTestSerial(t)
	require.NoError(t, dev.Connect())

	err := dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")

	require.NoError(t, dev.Close())
}

func TestSerial_OpenError(t *testing.T) {
	dev := New("missing", 0, 0)
	boom := errors.New("no such port")
	dev.open = func(string, int) (io.ReadWriteCloser, error) { return nil, boom }

	err := dev.Connect()
	assert.ErrorIs(t, err, boom)
	assert.False(t, dev.IsConnected())
}

// TestSerial_GracefulShutdown tests that the readings channel closes after
// Close() and that the device cannot be reused.
func TestSerial_GracefulShutdown(t *testing.T) {
	dev, _ := newTestSerial(t)
	require.NoError(t, dev.Connect())
	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())

	select {
	case _, ok := <-dev.Readings():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("Readings channel did not close within timeout")
	}

	assert.NoError(t, dev.Close(), "closing twice is harmless")
	assert.Error(t, dev.Connect())
}
