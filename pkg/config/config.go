package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig        `yaml:"serial"`
	Calibration measure.Calibration `yaml:"calibration"`
	PGA         PGAConfig           `yaml:"pga"`
	Measurement MeasurementConfig   `yaml:"measurement"`
	Mock        MockConfig          `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// PGAConfig describes the amplifier gain table and its settling delay.
type PGAConfig struct {
	Settle     time.Duration `yaml:"settle"`
	Gains      []int         `yaml:"gains"`      // Gain per index, strictly increasing
	Thresholds []int         `yaml:"thresholds"` // Step-up threshold per index
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	Mode           string  `yaml:"mode"` // Initial mode: current, voltage, resistance or short
	WindowSeconds  float64 `yaml:"window_seconds"`
	AverageSamples int     `yaml:"average_samples"` // Number of samples to average (0 = disabled, default)
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	CurrentMA      float32       `yaml:"current_ma"`      // Load current (mA)
	VoltageMV      float32       `yaml:"voltage_mv"`      // Probe voltage (mV)
	ResistanceOhms float32       `yaml:"resistance_ohms"` // Unknown resistor (ohm)
	NoiseMV        float32       `yaml:"noise_mv"`        // Peak noise at the amplifier input (mV)
	SampleRate     time.Duration `yaml:"sample_rate"`     // Poll interval
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	cfg := &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Calibration: measure.DefaultCalibration(),
		PGA: PGAConfig{
			Settle:     pga.DefaultSettle,
			Gains:      make([]int, pga.Steps),
			Thresholds: make([]int, pga.Steps),
		},
		Measurement: MeasurementConfig{
			Mode:           measure.ModeCurrent.String(),
			WindowSeconds:  10,
			AverageSamples: 0, // No averaging by default
		},
		Mock: MockConfig{
			CurrentMA:      120,
			VoltageMV:      5000,
			ResistanceOhms: 4700,
			NoiseMV:        0.5,
			SampleRate:     30 * time.Millisecond,
		},
	}

	tbl := pga.DefaultTable()
	for i := range pga.Steps {
		cfg.PGA.Gains[i] = int(tbl.Gains[i])
		cfg.PGA.Thresholds[i] = int(tbl.Thresholds[i])
	}
	return cfg
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	if _, err := cfg.PGA.Table(); err != nil {
		return nil, fmt.Errorf("invalid pga config: %w", err)
	}
	if _, err := cfg.Measurement.StartMode(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Table builds the gain table.
func (p PGAConfig) Table() (pga.Table, error) {
	var t pga.Table
	if len(p.Gains) != pga.Steps {
		return t, fmt.Errorf("expected %d gains, got %d", pga.Steps, len(p.Gains))
	}
	if len(p.Thresholds) != pga.Steps {
		return t, fmt.Errorf("expected %d thresholds, got %d", pga.Steps, len(p.Thresholds))
	}
	for i := range pga.Steps {
		if p.Gains[i] < 1 || p.Gains[i] > 255 {
			return t, fmt.Errorf("%w: gain[%d]=%d", pga.ErrGains, i, p.Gains[i])
		}
		if p.Thresholds[i] < 0 || p.Thresholds[i] > pga.MaxRaw {
			return t, fmt.Errorf("%w: threshold[%d]=%d", pga.ErrThresholds, i, p.Thresholds[i])
		}
		t.Gains[i] = uint8(p.Gains[i])
		t.Thresholds[i] = uint16(p.Thresholds[i])
	}
	return t, t.Validate()
}

// StartMode parses the initial measurement mode.
func (m MeasurementConfig) StartMode() (measure.Mode, error) {
	for _, mode := range []measure.Mode{measure.ModeCurrent, measure.ModeVoltage, measure.ModeResistance, measure.ModeShortTest} {
		if m.Mode == mode.String() {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown measurement mode %q", m.Mode)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Calibration.DividerRatio == 0 {
		c.Calibration.DividerRatio = def.Calibration.DividerRatio
	}
	if c.Calibration.ShuntTenths == 0 {
		c.Calibration.ShuntTenths = def.Calibration.ShuntTenths
	}
	if c.Calibration.ReferenceMilliVolts == 0 {
		c.Calibration.ReferenceMilliVolts = def.Calibration.ReferenceMilliVolts
	}
	if c.Calibration.KnownResistorTenths == 0 {
		c.Calibration.KnownResistorTenths = def.Calibration.KnownResistorTenths
	}

	if c.PGA.Settle == 0 {
		c.PGA.Settle = def.PGA.Settle
	}
	if len(c.PGA.Gains) == 0 {
		c.PGA.Gains = def.PGA.Gains
	}
	if len(c.PGA.Thresholds) == 0 {
		c.PGA.Thresholds = def.PGA.Thresholds
	}

	if c.Measurement.Mode == "" {
		c.Measurement.Mode = def.Measurement.Mode
	}
	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
}
