//go:build tinygo

package main

import "machine"

const (
	// Polling: never faster than the amplifier settles.
	POLL_INTERVAL_MS = 30
	SETTLE_MS        = 25

	// ADC configuration. The converters expect 10-bit samples against the
	// external reference.
	ADC_RESOLUTION = 10
	ADC_SHIFT      = 16 - ADC_RESOLUTION

	// SPI bus shared by the amplifier and the calibration EEPROM
	SPI_FREQUENCY = 1000000

	PIN_PGA_CS    = machine.D7
	PIN_EEPROM_CS = machine.D6

	// Amplifier output
	PIN_ADC = machine.A0

	// Serial configuration
	// "1234567890123456,R,out_of_range,7,123456.7\n" is ~45 bytes; at most one
	// line per poll gives ~1.5 kB/s, well inside 115200 baud.
	UART_BAUD_RATE = 115200
)
