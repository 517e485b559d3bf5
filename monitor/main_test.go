package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomultitool/pkg/measure"
	"github.com/itohio/gomultitool/pkg/wire"
)

func TestSplitInts(t *testing.T) {
	values, err := splitInts(" 1, 2,5 ,10,")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5, 10}, values)

	_, err = splitInts("1, two")
	assert.Error(t, err)

	values, err = splitInts("")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestJoinInts(t *testing.T) {
	assert.Equal(t, "1, 2, 5", joinInts([]int{1, 2, 5}))
	assert.Equal(t, "", joinInts(nil))
}

func TestTeeChannel(t *testing.T) {
	in := make(chan wire.Line, 3)
	for _, mode := range []measure.Mode{measure.ModeCurrent, measure.ModeVoltage, measure.ModeShortTest} {
		var l wire.Line
		l.Mode = mode
		in <- l
	}
	close(in)

	side, out := teeChannel(in)

	var got []measure.Mode
	for l := range out {
		got = append(got, l.Mode)
	}
	assert.Equal(t, []measure.Mode{measure.ModeCurrent, measure.ModeVoltage, measure.ModeShortTest}, got)

	// The side branch is buffered, so nothing was dropped.
	got = got[:0]
	for l := range side {
		got = append(got, l.Mode)
	}
	assert.Len(t, got, 3)
}
