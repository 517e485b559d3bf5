package scope

import (
	"math"
	"strconv"
	"time"
)

var prefixes = []struct {
	scale  float64
	symbol string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "µ"},
	{1e-9, "n"},
}

// formatValue formats v with an SI prefix and the given unit, keeping three
// significant decimals.
func formatValue(v float64, unit string) string {
	a := math.Abs(v)
	if a < 1e-9 {
		return "0" + unit
	}
	for _, p := range prefixes {
		if a >= p.scale*0.9995 {
			return strconv.FormatFloat(v/p.scale, 'f', 3, 64) + p.symbol + unit
		}
	}
	last := prefixes[len(prefixes)-1]
	return strconv.FormatFloat(v/last.scale, 'f', 3, 64) + last.symbol + unit
}

func formatTime(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}
