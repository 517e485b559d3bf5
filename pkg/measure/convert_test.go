package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmpInput(t *testing.T) {
	assert.Equal(t, int64(1198), AmpInput(600))
	assert.Equal(t, int64(0), AmpInput(1))
	assert.Equal(t, int64(2040), AmpInput(1021))
}

func TestCurrent(t *testing.T) {
	cal := DefaultCalibration()

	tests := []struct {
		name string
		raw  uint16
		gain int64
		want int64
	}{
		{"raw 600 at gain 1", 600, 1, 1162},
		{"raw 600 at gain 10", 600, 10, 116},
		{"raw 1021 at gain 200", 1021, 200, 9},
		{"one count offset", 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Current(tt.raw, tt.gain, cal))
		})
	}
}

func TestCurrentRoundTrip(t *testing.T) {
	cal := DefaultCalibration()
	gains := []int64{1, 2, 5, 10, 20, 50, 100, 200}

	for _, mA := range []int64{1, 3, 17, 42, 100, 250, 999, 1162, 2000} {
		for _, g := range gains {
			raw := (mA*10*cal.ShuntTenths*g/cal.DividerRatio+1)>>1 + 1
			if raw > 1021 {
				continue
			}
			got := Current(uint16(raw), g, cal)
			assert.InDelta(t, mA, got, 1, "mA=%d gain=%d raw=%d", mA, g, raw)
			assert.LessOrEqual(t, got, mA, "truncation only ever rounds down")
		}
	}
}

func TestVoltage(t *testing.T) {
	cal := DefaultCalibration()

	tests := []struct {
		name    string
		raw     uint16
		gain    int64
		current int64
		want    int64
	}{
		{"no current", 600, 1, 0, 116206},
		{"100 mA compensation", 600, 1, 100, 106506},
		{"gain 5", 130, 5, 0, 5005},
		{"compensation can go negative", 10, 1, 100, -7954},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Voltage(tt.raw, tt.gain, tt.current, cal))
		})
	}
}

func TestResistance(t *testing.T) {
	cal := DefaultCalibration()

	tests := []struct {
		name       string
		raw        uint16
		gain       int64
		wantOhms   float64
		wantStatus Status
	}{
		{"mid scale", 500, 1, 10430, OK},
		{"open circuit", 1, 1, 0, OutOfRange},
		{"amp input truncates to zero", 2, 5, 0, OutOfRange},
		{"at reference", 1019, 1, 0, Short},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ohms, status := Resistance(tt.raw, tt.gain, cal)
			assert.Equal(t, tt.wantStatus, status)
			assert.InDelta(t, tt.wantOhms, ohms, 0.01)
		})
	}
}

func TestResultErr(t *testing.T) {
	tests := []struct {
		status Status
		want   error
	}{
		{OK, nil},
		{Retry, ErrRetry},
		{Overflow, ErrOverflow},
		{Short, ErrShort},
		{OutOfRange, ErrOutOfRange},
		{Undefined, ErrUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			r := Result{Status: tt.status}
			assert.Equal(t, tt.want, r.Err())
			assert.Equal(t, tt.status == OK, r.Ready())

			back, ok := ParseStatus(tt.status.String())
			assert.True(t, ok)
			assert.Equal(t, tt.status, back)
		})
	}

	_, ok := ParseStatus("bogus")
	assert.False(t, ok)
}
