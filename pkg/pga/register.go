package pga

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Command is the write-gain instruction byte.
const Command byte = 0x2A

var (
	ErrIndex    = errors.New("pga: gain index out of range")
	ErrSelector = errors.New("pga: channel selector out of range")
)

// Pin is a chip-select output. machine.Pin satisfies it.
type Pin interface {
	High()
	Low()
}

// Register is the write-only gain/channel register of the amplifier. It
// remembers the last pair it commanded and nothing else.
type Register struct {
	bus drivers.SPI
	cs  Pin

	index uint8
	sel   Selector
	valid bool

	buf [2]byte
}

// NewRegister creates a register on an already configured SPI bus. The chip
// select is driven high so the amplifier ignores unrelated bus traffic.
func NewRegister(bus drivers.SPI, cs Pin) *Register {
	if cs != nil {
		cs.High()
	}
	return &Register{bus: bus, cs: cs}
}

// Set commands the amplifier to gain index and input sel. The caller owns the
// settling delay that must follow before the next sample is valid.
func (r *Register) Set(index uint8, sel Selector) error {
	if index > MaxIndex {
		return fmt.Errorf("%w: %d", ErrIndex, index)
	}
	if sel > CurrentChannel {
		return fmt.Errorf("%w: %d", ErrSelector, sel)
	}

	r.buf[0] = Command
	r.buf[1] = index<<4 | byte(sel)

	if r.cs != nil {
		r.cs.Low()
	}
	err := r.bus.Tx(r.buf[:], nil)
	if r.cs != nil {
		r.cs.High()
	}
	if err != nil {
		// The amplifier state is unknown after a failed transfer.
		r.valid = false
		return fmt.Errorf("pga: write gain: %w", err)
	}

	r.index, r.sel, r.valid = index, sel, true
	return nil
}

// Last returns the last commanded pair. ok is false until the first
// successful write.
func (r *Register) Last() (index uint8, sel Selector, ok bool) {
	return r.index, r.sel, r.valid
}

// periphSPI lets a periph.io SPI connection stand in for a TinyGo bus.
type periphSPI struct {
	conn spi.Conn
}

// FromPeriph adapts a periph.io SPI connection to drivers.SPI. The periph
// port drives its own chip select, so pass a nil Pin to NewRegister.
func FromPeriph(conn spi.Conn) drivers.SPI {
	return &periphSPI{conn: conn}
}

func (p *periphSPI) Tx(w, r []byte) error {
	return p.conn.Tx(w, r)
}

func (p *periphSPI) Transfer(b byte) (byte, error) {
	var w, r [1]byte
	w[0] = b
	if err := p.conn.Tx(w[:], r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}
