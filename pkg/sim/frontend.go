// Package sim simulates the amplifier and ADC of the measurement front end so
// the autoranging and conversion code can run without hardware.
package sim

import (
	"sync"

	"github.com/chewxy/math32"
	"tinygo.org/x/drivers"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
)

var (
	_ drivers.SPI = (*Frontend)(nil)
	_ pga.ADC     = (*Frontend)(nil)
)

// Source produces the signal at one amplifier input, in millivolts before
// gain.
type Source interface {
	AmpInput() float32
}

// SourceFunc adapts a function to Source.
type SourceFunc func() float32

func (f SourceFunc) AmpInput() float32 { return f() }

// Level is a constant amplifier input in millivolts.
type Level float32

func (l Level) AmpInput() float32 { return float32(l) }

// Current is the shunt drop for a load current in milliamps.
func Current(mA float32, cal measure.Calibration) Source {
	return Level(mA * float32(cal.ShuntTenths) * 10 / float32(cal.DividerRatio))
}

// Voltage is the divided probe voltage in millivolts with mA flowing through
// the shunt that shares the divider node.
func Voltage(mV, mA float32, cal measure.Calibration) Source {
	return Level(mV/float32(cal.DividerRatio) + mA)
}

// Divider is the reference-divider voltage for an unknown resistor in ohms.
func Divider(ohms float32, cal measure.Calibration) Source {
	x := ohms - float32(cal.ResistanceOffset)
	if x < 0 {
		x = 0
	}
	known := float32(cal.KnownResistorTenths / 10)
	return Level(float32(cal.ReferenceMilliVolts) * known / (known + x))
}

// Continuity is the low-range probe input for an unknown resistor in ohms. The
// probe drives the unknown through the shunt from a doubled reference, so a
// short saturates the ADC at unity gain.
func Continuity(ohms float32, cal measure.Calibration) Source {
	shunt := float32(cal.ShuntTenths) / 10
	if ohms < 0 {
		ohms = 0
	}
	return Level(2 * float32(cal.ReferenceMilliVolts) * shunt / (shunt + ohms))
}

// Frontend is a simulated PGA on an SPI bus and the ADC behind it.
type Frontend struct {
	mu sync.Mutex

	table   pga.Table
	sources [2]Source
	noise   float32
	phase   float32

	index  uint8
	sel    pga.Selector
	cmd    []byte
	writes int
	reads  int
}

// New creates a frontend with both inputs at zero.
func New(table pga.Table) *Frontend {
	return &Frontend{
		table:   table,
		sources: [2]Source{Level(0), Level(0)},
	}
}

// SetSource connects src to one amplifier input.
func (f *Frontend) SetSource(sel pga.Selector, src Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[sel&1] = src
}

// SetNoise sets the peak noise added to every sample, in millivolts.
func (f *Frontend) SetNoise(mV float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noise = mV
}

// Gain returns the commanded gain index and input.
func (f *Frontend) Gain() (uint8, pga.Selector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index, f.sel
}

// Counters returns how many register writes and ADC reads happened.
func (f *Frontend) Counters() (writes, reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.reads
}

// Tx decodes gain commands written to the amplifier.
func (f *Frontend) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range w {
		f.push(b)
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

// Transfer feeds a single byte to the command decoder.
func (f *Frontend) Transfer(b byte) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push(b)
	return 0, nil
}

func (f *Frontend) push(b byte) {
	if len(f.cmd) == 0 && b != pga.Command {
		return
	}
	f.cmd = append(f.cmd, b)
	if len(f.cmd) < 2 {
		return
	}
	f.index = (f.cmd[1] >> 4) & pga.MaxIndex
	f.sel = pga.Selector(f.cmd[1] & 1)
	f.cmd = f.cmd[:0]
	f.writes++
}

// Read returns the 10-bit sample of the selected input at the commanded gain.
func (f *Frontend) Read() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	in := f.sources[f.sel].AmpInput()
	if f.noise != 0 {
		f.phase += 0.7
		in += f.noise * 0.5 * (math32.Sin(f.phase) + math32.Cos(f.phase*1.3))
	}
	// The ADC sees half the amplifier output plus a one count offset.
	v := math32.Round(in*float32(f.table.Gains[f.index])/2) + 1
	v = math32.Max(0, math32.Min(v, pga.MaxRaw))
	f.reads++
	return uint16(v), nil
}
