package link

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/gomultitool/pkg/calib"
	"github.com/itohio/gomultitool/pkg/config"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
	"github.com/itohio/gomultitool/pkg/sim"
	"github.com/itohio/gomultitool/pkg/wire"
)

// Mock runs the measurement code of the firmware against a simulated front
// end and reports its readings like a connected device would.
type Mock struct {
	cfg   config.MockConfig
	cal   measure.Calibration
	table  pga.Table
	settle time.Duration
	start  measure.Mode

	// eeprom survives reconnects, like the real part.
	eeprom *calib.Memory

	readings  chan wire.Line
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	frontend *sim.Frontend
	sampler  *pga.Sampler
	scanner  *measure.Scanner
}

// NewMock creates a mocked device. A nil cfg uses config.Default().
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	table, err := cfg.PGA.Table()
	if err != nil {
		log.Printf("Mock: invalid gain table, using defaults: %v", err)
		table = pga.DefaultTable()
	}
	start, err := cfg.Measurement.StartMode()
	if err != nil {
		start = measure.ModeCurrent
	}
	mock := cfg.Mock
	if mock.SampleRate <= 0 {
		mock.SampleRate = config.Default().Mock.SampleRate
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:      mock,
		cal:      cfg.Calibration,
		table:    table,
		settle:   cfg.PGA.Settle,
		start:    start,
		eeprom:   calib.NewMemory(0x10000),
		readings: make(chan wire.Line, DefaultBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect boots the simulated firmware and starts producing readings.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	if m.ctx.Err() != nil {
		return fmt.Errorf("device closed")
	}

	// Boot like the firmware: gains come from the EEPROM, seeded if blank.
	table := m.table
	if _, err := calib.LoadTable(m.eeprom, &table); err != nil {
		return fmt.Errorf("failed to load gain calibration: %w", err)
	}

	m.frontend = sim.New(table)
	m.frontend.SetNoise(m.cfg.NoiseMV)
	// The simulated amplifier settles instantly but the sampler still waits
	// out the configured delay after every gain write, like the firmware.
	m.sampler = pga.NewSampler(pga.NewRegister(m.frontend, nil), m.frontend, m.settle, nil)
	log.Printf("Mock: gains %v, settle %v", table.Gains, m.sampler.Settle())
	m.scanner = measure.NewScanner(measure.New(m.sampler, &table, m.cal))
	m.scanner.SetMode(m.start)
	m.applySources()

	m.connected = true

	go m.generateReadings()

	return nil
}

// Close stops the mocked device. The readings channel is closed once the
// generator has exited.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// Readings returns the channel of simulated readings.
func (m *Mock) Readings() <-chan wire.Line {
	return m.readings
}

// SetMode switches the simulated firmware to mode.
func (m *Mock) SetMode(mode measure.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	m.scanner.SetMode(mode)
	m.applySources()

	return nil
}

// SetLoad changes what is connected to the simulated probes.
func (m *Mock) SetLoad(cfg config.MockConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate := m.cfg.SampleRate
	m.cfg = cfg
	m.cfg.SampleRate = rate
	if m.connected {
		m.frontend.SetNoise(cfg.NoiseMV)
		m.applySources()
	}
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// applySources wires the probes for the current mode. Voltage and resistance
// share the voltage input.
func (m *Mock) applySources() {
	m.frontend.SetSource(pga.CurrentChannel, sim.Current(m.cfg.CurrentMA, m.cal))
	switch m.scanner.Mode() {
	case measure.ModeResistance:
		m.frontend.SetSource(pga.VoltageChannel, sim.Divider(m.cfg.ResistanceOhms, m.cal))
	case measure.ModeShortTest:
		m.frontend.SetSource(pga.VoltageChannel, sim.Continuity(m.cfg.ResistanceOhms, m.cal))
	default:
		m.frontend.SetSource(pga.VoltageChannel, sim.Voltage(m.cfg.VoltageMV, m.cfg.CurrentMA, m.cal))
	}
}

// generateReadings polls the scanner once per sample period.
func (m *Mock) generateReadings() {
	defer close(m.readings)

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			l, ok := m.poll()
			if !ok {
				continue
			}
			select {
			case m.readings <- l:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

func (m *Mock) poll() (wire.Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok, err := m.scanner.Poll()
	if err != nil {
		log.Printf("Mock: measurement failed: %v", err)
		return wire.Line{}, false
	}
	if !ok {
		return wire.Line{}, false
	}
	return wire.Line{Timestamp: time.Now(), Reading: r}, true
}
