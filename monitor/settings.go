package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gomultitool/pkg/link"
	"github.com/itohio/gomultitool/pkg/meter"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createCalibrationTab(state),
		createPGATab(state),
		createMeasurementTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := link.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	} else {
		log.Printf("Failed to list ports: %v", err)
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected
			}
			baud := state.cfg.Serial.BaudRate
			if b, err := strconv.Atoi(baudEntry.Text); err == nil && b > 0 {
				baud = b
			}

			changed := state.cfg.Serial.Port != selectedPort || state.cfg.Serial.BaudRate != baud
			wasConnected := state.device != nil && state.device.IsConnected()

			state.cfg.Serial.Port = selectedPort
			state.cfg.Serial.BaudRate = baud
			state.saveConfig()

			// Restart the measurement chain on the new port
			if changed && wasConnected && !state.useMock {
				handleConnect(state) // disconnect
				handleConnect(state) // connect
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createCalibrationTab creates the board constants tab.
func createCalibrationTab(state *appState) *container.TabItem {
	cal := &state.cfg.Calibration

	dividerEntry := widget.NewEntry()
	dividerEntry.SetText(strconv.FormatInt(cal.DividerRatio, 10))

	shuntEntry := widget.NewEntry()
	shuntEntry.SetText(strconv.FormatInt(cal.ShuntTenths, 10))

	refEntry := widget.NewEntry()
	refEntry.SetText(strconv.FormatInt(cal.ReferenceMilliVolts, 10))

	knownEntry := widget.NewEntry()
	knownEntry.SetText(strconv.FormatInt(cal.KnownResistorTenths, 10))

	offsetEntry := widget.NewEntry()
	offsetEntry.SetText(fmt.Sprintf("%.1f", cal.ResistanceOffset))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Divider Ratio", Widget: dividerEntry},
			{Text: "Shunt (0.1 Ω)", Widget: shuntEntry},
			{Text: "Reference (mV)", Widget: refEntry},
			{Text: "Known Resistor (0.1 Ω)", Widget: knownEntry},
			{Text: "Resistance Offset (Ω)", Widget: offsetEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseInt(dividerEntry.Text, 10, 64); err == nil && v > 0 {
				cal.DividerRatio = v
			}
			if v, err := strconv.ParseInt(shuntEntry.Text, 10, 64); err == nil && v > 0 {
				cal.ShuntTenths = v
			}
			if v, err := strconv.ParseInt(refEntry.Text, 10, 64); err == nil && v > 0 {
				cal.ReferenceMilliVolts = v
			}
			if v, err := strconv.ParseInt(knownEntry.Text, 10, 64); err == nil && v > 0 {
				cal.KnownResistorTenths = v
			}
			if v, err := strconv.ParseFloat(offsetEntry.Text, 64); err == nil {
				cal.ResistanceOffset = v
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Calibration", form)
}

// createPGATab creates the gain table tab. The table drives the simulated
// device; real hardware reads its gains from EEPROM.
func createPGATab(state *appState) *container.TabItem {
	settleEntry := widget.NewEntry()
	settleEntry.SetText(state.cfg.PGA.Settle.String())

	gainsEntry := widget.NewEntry()
	gainsEntry.SetText(joinInts(state.cfg.PGA.Gains))

	thresholdsEntry := widget.NewEntry()
	thresholdsEntry.SetText(joinInts(state.cfg.PGA.Thresholds))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Settle Time", Widget: settleEntry},
			{Text: "Gains", Widget: gainsEntry},
			{Text: "Step-up Thresholds", Widget: thresholdsEntry},
		},
		OnSubmit: func() {
			next := state.cfg.PGA
			if d, err := time.ParseDuration(settleEntry.Text); err == nil && d >= 0 {
				next.Settle = d
			}
			gains, err := splitInts(gainsEntry.Text)
			if err != nil {
				dialog.ShowError(fmt.Errorf("gains: %w", err), state.window)
				return
			}
			thresholds, err := splitInts(thresholdsEntry.Text)
			if err != nil {
				dialog.ShowError(fmt.Errorf("thresholds: %w", err), state.window)
				return
			}
			next.Gains = gains
			next.Thresholds = thresholds
			if _, err := next.Table(); err != nil {
				dialog.ShowError(fmt.Errorf("invalid gain table: %w", err), state.window)
				return
			}
			state.cfg.PGA = next
			state.saveConfig()
		},
	}

	return container.NewTabItem("PGA", form)
}

// createMeasurementTab creates the Measurement configuration tab.
func createMeasurementTab(state *appState) *container.TabItem {
	modeOptions := make([]string, len(modes))
	for i, mode := range modes {
		modeOptions[i] = mode.String()
	}
	modeSelect := widget.NewSelect(modeOptions, nil)
	modeSelect.SetSelected(state.cfg.Measurement.Mode)

	windowSecondsEntry := widget.NewEntry()
	windowSecondsEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Measurement.WindowSeconds))

	averageSamplesEntry := widget.NewEntry()
	averageSamplesEntry.SetText(strconv.Itoa(state.cfg.Measurement.AverageSamples))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Start Mode", Widget: modeSelect},
			{Text: "Window (seconds)", Widget: windowSecondsEntry},
			{Text: "Average Samples (0=disabled)", Widget: averageSamplesEntry},
		},
		OnSubmit: func() {
			if modeSelect.Selected != "" {
				state.cfg.Measurement.Mode = modeSelect.Selected
			}
			if ws, err := strconv.ParseFloat(windowSecondsEntry.Text, 64); err == nil && ws > 0 {
				state.cfg.Measurement.WindowSeconds = ws
			}
			if avg, err := strconv.Atoi(averageSamplesEntry.Text); err == nil && avg >= 0 {
				state.cfg.Measurement.AverageSamples = avg
			}
			state.saveConfig()

			// The running chain holds the old meter
			if state.chain != nil {
				log.Printf("Measurement settings take effect on reconnect")
				return
			}
			state.meter = meter.New(state.cfg)
		},
	}

	return container.NewTabItem("Measurement", form)
}

// createMockTab creates the simulated device tab. A connected simulator
// picks up the new load immediately.
func createMockTab(state *appState) *container.TabItem {
	currentEntry := widget.NewEntry()
	currentEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.CurrentMA))

	voltageEntry := widget.NewEntry()
	voltageEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.VoltageMV))

	resistanceEntry := widget.NewEntry()
	resistanceEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.ResistanceOhms))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.NoiseMV))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Current (mA)", Widget: currentEntry},
			{Text: "Voltage (mV)", Widget: voltageEntry},
			{Text: "Resistance (Ω)", Widget: resistanceEntry},
			{Text: "Noise (mV)", Widget: noiseEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
		},
		OnSubmit: func() {
			m := &state.cfg.Mock
			if v, err := strconv.ParseFloat(currentEntry.Text, 32); err == nil {
				m.CurrentMA = float32(v)
			}
			if v, err := strconv.ParseFloat(voltageEntry.Text, 32); err == nil {
				m.VoltageMV = float32(v)
			}
			if v, err := strconv.ParseFloat(resistanceEntry.Text, 32); err == nil && v >= 0 {
				m.ResistanceOhms = float32(v)
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 32); err == nil && v >= 0 {
				m.NoiseMV = float32(v)
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil && sr > 0 {
				m.SampleRate = sr
			}
			state.saveConfig()

			if mock, ok := state.device.(*link.Mock); ok && mock.IsConnected() {
				mock.SetLoad(*m)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func splitInts(s string) ([]int, error) {
	var values []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
