// Package link connects the host to a multitool over its serial line, or to
// a simulated one.
package link

import (
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/wire"
)

// Device defines the interface for multitool devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Readings() <-chan wire.Line
	SetMode(mode measure.Mode) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
