package main

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gomultitool/pkg/measure"
)

// modes in toolbar order.
var modes = [...]measure.Mode{
	measure.ModeCurrent,
	measure.ModeVoltage,
	measure.ModeResistance,
	measure.ModeShortTest,
}

// createModeButtons creates one toggle per measurement mode, labelled with
// its wire letter. Buttons stay disabled until a device is connected.
func createModeButtons(state *appState) fyne.CanvasObject {
	box := container.NewHBox()
	for i, mode := range modes {
		btn := widget.NewButton(string(mode.Letter()), func() {
			handleModeSelect(state, mode)
		})
		btn.Disable()
		state.modeBtns[i] = btn
		box.Add(btn)
	}
	if mode, err := state.cfg.Measurement.StartMode(); err == nil {
		state.mode = mode
	}
	updateModeButtonStates(state)
	return box
}

// handleModeSelect sends a mode change to the device.
func handleModeSelect(state *appState, mode measure.Mode) {
	if state.device == nil || !state.device.IsConnected() {
		return
	}

	if err := state.device.SetMode(mode); err != nil {
		dialog.ShowError(fmt.Errorf("failed to set mode %s: %w", mode, err), state.window)
		return
	}

	// Optimistic update; the device confirms with its next reading
	state.mode = mode
	updateModeButtonStates(state)
}

// updateModeFromReading follows the mode reported by the device.
// Uses fyne.Do() to ensure thread-safe UI updates from goroutine.
func updateModeFromReading(state *appState, mode measure.Mode) {
	fyne.Do(func() {
		if state.mode == mode {
			return
		}
		state.mode = mode
		updateModeButtonStates(state)
	})
}

// setModeButtonsEnabled enables or disables all mode buttons.
func setModeButtonsEnabled(state *appState, enabled bool) {
	for _, btn := range state.modeBtns {
		if btn == nil {
			continue
		}
		if enabled {
			btn.Enable()
		} else {
			btn.Disable()
		}
	}
}

// updateModeButtonStates highlights the active mode.
func updateModeButtonStates(state *appState) {
	for i, btn := range state.modeBtns {
		if btn == nil {
			continue
		}
		if modes[i] == state.mode {
			btn.Importance = widget.HighImportance
		} else {
			btn.Importance = widget.MediumImportance
		}
		btn.Refresh()
	}
}
