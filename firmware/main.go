//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/gomultitool/pkg/calib"
	"github.com/itohio/gomultitool/pkg/eeprom"
	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/pga"
	"github.com/itohio/gomultitool/pkg/wire"
)

var (
	spi  = machine.SPI0
	uart = machine.UART0

	scanner *measure.Scanner

	// Serial buffer for reading command lines
	serialBuffer [4]byte
	serialPos    int

	lineBuffer [64]byte
)

// adc narrows the normalized 16-bit machine.ADC reading to the 10-bit scale
// the converters are calibrated for.
type adc struct {
	machine.ADC
}

func (a adc) Read() (uint16, error) {
	return a.Get() >> ADC_SHIFT, nil
}

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	if err := spi.Configure(machine.SPIConfig{
		Frequency: SPI_FREQUENCY,
		Mode:      0,
	}); err != nil {
		println("spi:", err.Error())
	}

	PIN_PGA_CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_EEPROM_CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	input := adc{machine.ADC{Pin: PIN_ADC}}
	input.Configure(machine.ADCConfig{
		Resolution: ADC_RESOLUTION,
	})

	// Gains are calibrated per board and kept at the top of the EEPROM.
	table := pga.DefaultTable()
	mem := eeprom.New(spi, PIN_EEPROM_CS, time.Sleep)
	if _, err := calib.LoadTable(mem, &table); err != nil {
		println("calib:", err.Error())
	}

	reg := pga.NewRegister(spi, PIN_PGA_CS)
	sampler := pga.NewSampler(reg, input, SETTLE_MS*time.Millisecond, time.Sleep)
	scanner = measure.NewScanner(measure.New(sampler, &table, measure.DefaultCalibration()))

	for {
		processSerial()

		r, ok, err := scanner.Poll()
		switch {
		case err != nil:
			println("measure:", err.Error())
		case ok:
			out := wire.Append(lineBuffer[:0], wire.Line{Timestamp: time.Now(), Reading: r})
			uart.Write(out)
		}

		time.Sleep(POLL_INTERVAL_MS * time.Millisecond)
	}
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos == 1 {
				if mode, ok := measure.ModeFromLetter(serialBuffer[0]); ok {
					scanner.SetMode(mode)
				}
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		}
	}
}
