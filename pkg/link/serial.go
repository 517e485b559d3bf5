package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/wire"
)

const (
	// DefaultBaudRate is the firmware UART baud rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the readings channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a connection to the multitool firmware.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	// open is replaced in tests.
	open func(name string, baudRate int) (io.ReadWriteCloser, error)

	conn      io.ReadWriteCloser
	readings  chan wire.Line
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	mode      measure.Mode
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		open:     openPort,
		readings: make(chan wire.Line, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func openPort(name string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
	})
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading lines.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if d.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	port, err := d.open(d.port, d.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readLines(port)

	return nil
}

// Close closes the connection and stops reading. The readings channel is
// closed once the reader has exited.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	// Closing the port unblocks the reader
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Readings returns the channel of parsed lines.
func (d *Serial) Readings() <-chan wire.Line {
	return d.readings
}

// SetMode sends the mode command to the firmware.
func (d *Serial) SetMode(mode measure.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected")
	}

	if _, err := d.conn.Write(wire.Command(mode)); err != nil {
		return fmt.Errorf("failed to send mode command: %w", err)
	}
	d.mode = mode

	return nil
}

// Mode returns the last mode sent to the firmware.
func (d *Serial) Mode() measure.Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readLines reads lines from r until it fails or the device is closed.
func (d *Serial) readLines(r io.Reader) {
	defer close(d.readings)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if d.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		l, err := wire.Parse(line)
		if err != nil {
			// Firmware diagnostics share the line
			log.Printf("Ignoring line '%s': %v", line, err)
			continue
		}

		// Non-blocking send
		select {
		case d.readings <- l:
		case <-d.ctx.Done():
			return
		default:
			log.Printf("Readings channel full, dropping reading")
		}
	}

	if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}
