// Package wire is the line protocol between the firmware and the host.
//
// Firmware to host, one line per settled reading:
//
//	unix_micros,mode,status,gain_index,value
//	1234567890123,I,ok,0,1162
//	1234567890123,R,ok,2,4709.3
//	1234567890123,S,short,0,0.0
//
// Host to firmware, one mode letter per line: I, V, R or S.
package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/gomultitool/pkg/measure"
)

// Line is one reading on the wire.
type Line struct {
	Timestamp time.Time
	measure.Reading
}

// Append encodes l with a trailing newline.
func Append(dst []byte, l Line) []byte {
	dst = strconv.AppendInt(dst, l.Timestamp.UnixMicro(), 10)
	dst = append(dst, ',', l.Mode.Letter(), ',')
	dst = append(dst, l.Status.String()...)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(l.Index), 10)
	dst = append(dst, ',')
	if isResistance(l.Mode) {
		dst = strconv.AppendFloat(dst, l.Ohms, 'f', 1, 64)
	} else {
		dst = strconv.AppendInt(dst, l.Value, 10)
	}
	return append(dst, '\n')
}

// Parse decodes a line without its newline.
func Parse(line string) (Line, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return Line{}, fmt.Errorf("invalid line format: expected 5 comma-separated values, got %d", len(parts))
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Line{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	if len(parts[1]) != 1 {
		return Line{}, fmt.Errorf("invalid mode %q", parts[1])
	}
	mode, ok := measure.ModeFromLetter(parts[1][0])
	if !ok {
		return Line{}, fmt.Errorf("invalid mode %q", parts[1])
	}

	status, ok := measure.ParseStatus(parts[2])
	if !ok {
		return Line{}, fmt.Errorf("invalid status %q", parts[2])
	}

	index, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return Line{}, fmt.Errorf("invalid gain index: %w", err)
	}
	if index > 7 {
		return Line{}, fmt.Errorf("gain index out of range: %d (max 7)", index)
	}

	l := Line{Timestamp: time.UnixMicro(micros)}
	l.Mode = mode
	l.Status = status
	l.Index = uint8(index)

	if isResistance(mode) {
		l.Ohms, err = strconv.ParseFloat(parts[4], 64)
	} else {
		l.Value, err = strconv.ParseInt(parts[4], 10, 64)
	}
	if err != nil {
		return Line{}, fmt.Errorf("invalid value: %w", err)
	}
	return l, nil
}

// Command returns the host command that switches the firmware to mode.
func Command(mode measure.Mode) []byte {
	return []byte{mode.Letter(), '\n'}
}

func isResistance(m measure.Mode) bool {
	return m == measure.ModeResistance || m == measure.ModeShortTest
}
