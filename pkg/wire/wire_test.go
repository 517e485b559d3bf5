package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/measure"
)

func TestAppend(t *testing.T) {
	ts := time.UnixMicro(1234567890123)

	tests := []struct {
		name string
		line Line
		want string
	}{
		{
			name: "current",
			line: Line{Timestamp: ts, Reading: measure.Reading{Mode: measure.ModeCurrent, Result: measure.Result{Status: measure.OK, Value: 1162}}},
			want: "1234567890123,I,ok,0,1162\n",
		},
		{
			name: "negative voltage",
			line: Line{Timestamp: ts, Reading: measure.Reading{Mode: measure.ModeVoltage, Result: measure.Result{Status: measure.OK, Index: 3, Value: -250}}},
			want: "1234567890123,V,ok,3,-250\n",
		},
		{
			name: "resistance",
			line: Line{Timestamp: ts, Reading: measure.Reading{Mode: measure.ModeResistance, Result: measure.Result{Status: measure.OK, Index: 2, Ohms: 4709.31}}},
			want: "1234567890123,R,ok,2,4709.3\n",
		},
		{
			name: "short",
			line: Line{Timestamp: ts, Reading: measure.Reading{Mode: measure.ModeShortTest, Result: measure.Result{Status: measure.Short}}},
			want: "1234567890123,S,short,0,0.0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Append(nil, tt.line)))
		})
	}
}

func TestParse(t *testing.T) {
	l, err := Parse("1234567890123,V,ok,3,-250")
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890123), l.Timestamp.UnixMicro())
	assert.Equal(t, measure.ModeVoltage, l.Mode)
	assert.Equal(t, measure.OK, l.Status)
	assert.Equal(t, uint8(3), l.Index)
	assert.Equal(t, int64(-250), l.Value)

	l, err = Parse("1,R,out_of_range,0,0.0")
	require.NoError(t, err)
	assert.Equal(t, measure.OutOfRange, l.Status)

	l, err = Parse("1,R,ok,1,994.3")
	require.NoError(t, err)
	assert.InDelta(t, 994.3, l.Ohms, 1e-9)
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"1,I,ok,0",
		"1,I,ok,0,1,2",
		"x,I,ok,0,1",
		"1,Q,ok,0,1",
		"1,II,ok,0,1",
		"1,I,fine,0,1",
		"1,I,ok,8,1",
		"1,I,ok,-1,1",
		"1,I,ok,0,1.5",
		"1,R,ok,0,abc",
	} {
		_, err := Parse(line)
		assert.Error(t, err, line)
	}
}

func TestCommand(t *testing.T) {
	assert.Equal(t, []byte("S\n"), Command(measure.ModeShortTest))
}

func TestShortLineRoundTrip(t *testing.T) {
	const text = "1234567890123,S,short,0,0.0"
	l, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, measure.Short, l.Status)
	assert.Equal(t, text+"\n", string(Append(nil, l)))
}
