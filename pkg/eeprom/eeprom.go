// Package eeprom drives 25LC512-class SPI EEPROMs (16-bit address, 128 byte
// pages) that share the bus with the amplifier.
package eeprom

import (
	"errors"
	"fmt"
	"io"
	"time"

	"tinygo.org/x/drivers"
)

const (
	cmdRead  byte = 0x03
	cmdWrite byte = 0x02
	cmdWREN  byte = 0x06
	cmdRDSR  byte = 0x05

	statusWIP byte = 0x01

	// PageSize is the write page of the part. A write must not cross it.
	PageSize = 128
	// Size is the capacity in bytes.
	Size = 0x10000

	// writeCycle is the worst case page write time.
	writeCycle = 5 * time.Millisecond
	maxPolls   = 10
)

var (
	ErrRange = errors.New("eeprom: address out of range")
	ErrBusy  = errors.New("eeprom: write cycle did not finish")
)

// Pin is the chip-select output.
type Pin interface {
	High()
	Low()
}

// Device is an SPI EEPROM. It implements io.ReaderAt and io.WriterAt.
type Device struct {
	bus   drivers.SPI
	cs    Pin
	sleep func(time.Duration)

	hdr [3]byte
	st  [2]byte
	rx  [2]byte
}

// New creates a device on a configured bus. sleep may be nil.
func New(bus drivers.SPI, cs Pin, sleep func(time.Duration)) *Device {
	if sleep == nil {
		sleep = time.Sleep
	}
	cs.High()
	return &Device{bus: bus, cs: cs, sleep: sleep}
}

// ReadAt reads len(p) bytes starting at off.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= Size {
		return 0, fmt.Errorf("%w: %d", ErrRange, off)
	}
	n := len(p)
	var err error
	if off+int64(n) > Size {
		n = int(Size - off)
		err = io.EOF
	}

	d.header(cmdRead, off)
	d.cs.Low()
	txErr := d.bus.Tx(d.hdr[:], nil)
	if txErr == nil {
		txErr = d.bus.Tx(nil, p[:n])
	}
	d.cs.High()
	if txErr != nil {
		return 0, fmt.Errorf("eeprom: read: %w", txErr)
	}
	return n, err
}

// WriteAt writes p starting at off, one page at a time, waiting for each write
// cycle to finish.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > Size {
		return 0, fmt.Errorf("%w: %d+%d", ErrRange, off, len(p))
	}

	written := 0
	for len(p) > 0 {
		chunk := PageSize - int(off%PageSize)
		if chunk > len(p) {
			chunk = len(p)
		}
		if err := d.writePage(p[:chunk], off); err != nil {
			return written, err
		}
		written += chunk
		off += int64(chunk)
		p = p[chunk:]
	}
	return written, nil
}

func (d *Device) writePage(p []byte, off int64) error {
	if err := d.command(cmdWREN); err != nil {
		return err
	}

	d.header(cmdWrite, off)
	d.cs.Low()
	err := d.bus.Tx(d.hdr[:], nil)
	if err == nil {
		err = d.bus.Tx(p, nil)
	}
	d.cs.High()
	if err != nil {
		return fmt.Errorf("eeprom: write: %w", err)
	}

	for range maxPolls {
		d.sleep(writeCycle)
		st, err := d.status()
		if err != nil {
			return err
		}
		if st&statusWIP == 0 {
			return nil
		}
	}
	return ErrBusy
}

func (d *Device) status() (byte, error) {
	d.st = [2]byte{cmdRDSR, 0}
	d.cs.Low()
	err := d.bus.Tx(d.st[:], d.rx[:])
	d.cs.High()
	if err != nil {
		return 0, fmt.Errorf("eeprom: status: %w", err)
	}
	return d.rx[1], nil
}

func (d *Device) command(c byte) error {
	d.cs.Low()
	_, err := d.bus.Transfer(c)
	d.cs.High()
	if err != nil {
		return fmt.Errorf("eeprom: command %#x: %w", c, err)
	}
	return nil
}

func (d *Device) header(c byte, off int64) {
	d.hdr = [3]byte{c, byte(off >> 8), byte(off)}
}
