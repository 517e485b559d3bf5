// Package calib keeps the amplifier gain calibration in non-volatile memory.
package calib

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/itohio/gomultitool/pkg/pga"
)

// GainsOffset is where the eight calibrated gain bytes live, at the top of a
// 64 KiB part.
const GainsOffset = 0xFFFF - pga.Steps

var ErrCorrupt = errors.New("calib: stored gains are invalid")

// Storage is random access non-volatile memory. The SPI EEPROM driver, an
// *os.File and Memory all satisfy it.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

// LoadTable reads the calibrated gains into t. A blank cell (first byte 0x00
// or 0xFF) is seeded with the gains already in t and written back; seeded
// reports that. Gains that fail validation leave t unchanged and return
// ErrCorrupt.
func LoadTable(s Storage, t *pga.Table) (seeded bool, err error) {
	var buf [pga.Steps]byte
	if _, err := s.ReadAt(buf[:], GainsOffset); err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("calib: read gains: %w", err)
	}

	if buf[0] == 0x00 || buf[0] == 0xFF {
		log.Printf("calib: no gain calibration stored, seeding %v", t.Gains)
		return true, SaveTable(s, t)
	}

	next := *t
	copy(next.Gains[:], buf[:])
	if err := next.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	*t = next
	return false, nil
}

// SaveTable writes the gains of t.
func SaveTable(s Storage, t *pga.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := s.WriteAt(t.Gains[:], GainsOffset); err != nil {
		return fmt.Errorf("calib: write gains: %w", err)
	}
	return nil
}

// Memory is Storage backed by a byte slice. New memory reads as erased
// (0xFF), like a fresh EEPROM.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory creates size bytes of erased memory.
func NewMemory(size int) *Memory {
	m := &Memory{data: make([]byte, size)}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("calib: write %d bytes at %d: out of range", len(p), off)
	}
	return copy(m.data[off:], p), nil
}
