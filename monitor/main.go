package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gomultitool/pkg/config"
	"github.com/itohio/gomultitool/pkg/link"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/meter"
	"github.com/itohio/gomultitool/pkg/sample"
	"github.com/itohio/gomultitool/pkg/scope"
	"github.com/itohio/gomultitool/pkg/wire"
)

func main() {
	var (
		portFlag           = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag         = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag           = flag.Bool("mock", false, "Use simulated device instead of serial port")
		averageSamplesFlag = flag.Int("average-samples", -1, "Number of samples to average (0 = disabled, overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *averageSamplesFlag >= 0 {
		cfg.Measurement.AverageSamples = *averageSamplesFlag
	}

	application := app.NewWithID("com.itohio.gomultitool")

	window := application.NewWindow("Multitool Monitor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		meter:      meter.New(cfg),
		window:     window,
		useMock:    *mockFlag,
	}

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(cfg)

	window.SetContent(container.NewBorder(
		toolbar,
		nil,
		nil,
		nil,
		state.scopeWidget,
	))
	window.SetOnClosed(func() {
		closeMeasurementChain(state.chain)
	})
	window.ShowAndRun()
}

// measurementChain tracks the components of the measurement chain for graceful shutdown.
type measurementChain struct {
	device         link.Device
	modeGoroutine  chan struct{} // Closed when mode sync goroutine exits
	meterGoroutine chan struct{} // Closed when meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	device      link.Device
	meter       *meter.Meter
	scopeWidget *scope.ScopeWidget
	window      fyne.Window
	connectBtn  *widget.Button
	modeBtns    [len(modes)]*widget.Button
	useMock     bool
	mode        measure.Mode      // Mode last reported by the device
	chain       *measurementChain // Current measurement chain (nil if not connected)

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// saveConfig writes the configuration back to where it was loaded from.
func (state *appState) saveConfig() {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createToolbar creates the application toolbar with Connect, Settings and mode buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	rateCheck := widget.NewCheck("Rate", func(on bool) {
		state.scopeWidget.SetShowRate(on)
	})

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(connectBtn, settingsBtn, rateCheck), // left
		createModeButtons(state),                              // right
		nil,                                                   // center (spacer)
	)
}

// closeMeasurementChain gracefully closes the measurement chain.
// Waits for all goroutines to finish and channels to drain.
func closeMeasurementChain(chain *measurementChain) {
	if chain == nil {
		return
	}

	// Close device - this closes the readings channel
	if chain.device != nil {
		chain.device.Close()
	}

	if chain.modeGoroutine != nil {
		<-chain.modeGoroutine
	}

	// The meter goroutine exits once the converters have drained
	if chain.meterGoroutine != nil {
		<-chain.meterGoroutine
	}
}

// newDevice creates the configured device.
func newDevice(state *appState) link.Device {
	if state.useMock {
		return link.NewMock(state.cfg)
	}
	return link.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, link.DefaultBufferSize)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		closeMeasurementChain(state.chain)
		state.chain = nil
		state.device = nil
		setModeButtonsEnabled(state, false)
		state.connectBtn.SetIcon(theme.LoginIcon())
		log.Printf("Disconnected")
		return
	}

	// A device that dropped on its own leaves its chain behind
	closeMeasurementChain(state.chain)
	state.chain = nil

	device := newDevice(state)
	if err := device.Connect(); err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to connect to simulated device: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.device = device
	if state.useMock {
		log.Printf("Connected to simulated device")
	} else {
		log.Printf("Connected to serial port: %s", state.cfg.Serial.Port)
	}

	setModeButtonsEnabled(state, true)
	state.connectBtn.SetIcon(theme.LogoutIcon())

	// Ask for the configured mode; the device reports what it actually runs.
	if mode, err := state.cfg.Measurement.StartMode(); err == nil {
		if err := device.SetMode(mode); err != nil {
			log.Printf("Failed to set mode: %v", err)
		}
	}

	state.meter.Reset()
	state.meter.ResetShutdown()

	// Throttle updates to ~60 FPS to keep the UI smooth
	const updateInterval = 16 * time.Millisecond
	state.meter.OnUpdate(func(samples []sample.Sample, derivatives []float64, spans []meter.Span) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		// Scope widget handles downsampling internally, so pass full data
		fyne.Do(func() {
			state.scopeWidget.UpdateData(samples, derivatives, spans)
		})
	})

	// One branch keeps the mode buttons in sync, the other feeds the meter
	readings, readingsForConverter := teeChannel(device.Readings())

	modeDone := make(chan struct{})
	meterDone := make(chan struct{})

	go func() {
		defer close(modeDone)
		last := measure.Mode(0xFF)
		for l := range readings {
			if l.Mode != last {
				last = l.Mode
				updateModeFromReading(state, l.Mode)
			}
		}
	}()

	baseStream := sample.NewConverter(500)(readingsForConverter)

	var samplesStream <-chan sample.Sample
	if state.cfg.Measurement.AverageSamples > 0 {
		samplesStream = sample.NewAveragingConverter(state.cfg.Measurement.AverageSamples, 500)(baseStream)
	} else {
		samplesStream = baseStream
	}

	m := state.meter
	go func() {
		defer close(meterDone)
		m.ProcessSamples(samplesStream)
	}()

	state.chain = &measurementChain{
		device:         device,
		modeGoroutine:  modeDone,
		meterGoroutine: meterDone,
	}
}

// teeChannel splits in into two channels that each receive every line.
// Both outputs close once in is closed. A slow consumer on the first output
// drops lines rather than stalling the second.
func teeChannel(in <-chan wire.Line) (<-chan wire.Line, <-chan wire.Line) {
	side := make(chan wire.Line, 100)
	out := make(chan wire.Line, 100)

	go func() {
		defer close(side)
		defer close(out)
		for l := range in {
			select {
			case side <- l:
			default:
			}
			out <- l
		}
	}()

	return side, out
}
