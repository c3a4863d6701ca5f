package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCommand_Basic(t *testing.T) {
	buf := []byte("G1 X1 Y2")
	cmd := decodeCommand(buf, 0, DefaultConfig(), Command{}, false)

	assert.Equal(t, byte('G'), cmd.Letter)
	assert.True(t, cmd.HasNumber)
	assert.Equal(t, int32(1), cmd.Number)
	assert.Equal(t, int8(-1), cmd.Fraction)
	assert.Equal(t, 2, cmd.ParameterStart)
	assert.Equal(t, len(buf), cmd.CommandEnd)
}

func TestDecodeCommand_Fraction(t *testing.T) {
	buf := []byte("G28.3 X1")
	cmd := decodeCommand(buf, 0, DefaultConfig(), Command{}, false)

	assert.Equal(t, int32(28), cmd.Number)
	assert.Equal(t, int8(3), cmd.Fraction)
}

func TestDecodeCommand_SubcommandBoundary(t *testing.T) {
	buf := []byte("G1 X1 M3")
	cmd := decodeCommand(buf, 0, DefaultConfig(), Command{}, false)
	assert.Equal(t, 6, cmd.CommandEnd)

	cmd2 := decodeCommand(buf, cmd.CommandEnd, DefaultConfig(), cmd, true)
	assert.Equal(t, byte('M'), cmd2.Letter)
	assert.Equal(t, int32(3), cmd2.Number)
	assert.Equal(t, len(buf), cmd2.CommandEnd)
}

func TestDecodeCommand_SubcommandBoundaryIgnoresQuoted(t *testing.T) {
	buf := []byte(`M117 "go M117"`)
	cmd := decodeCommand(buf, 0, DefaultConfig(), Command{}, false)
	assert.Equal(t, len(buf), cmd.CommandEnd)
}

func TestFanucContinuation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MachineType = MachineTypeCNC

	prev := Command{Letter: 'G', HasNumber: true, Number: 1}
	buf := []byte("X10 Y20")
	cmd := decodeCommand(buf, 0, cfg, prev, true)

	assert.Equal(t, byte('G'), cmd.Letter)
	assert.Equal(t, int32(1), cmd.Number)
	assert.Equal(t, 0, cmd.ParameterStart)
}

func TestFanucContinuation_NotOnFFF(t *testing.T) {
	cfg := DefaultConfig() // FFF
	prev := Command{Letter: 'G', HasNumber: true, Number: 1}
	buf := []byte("X10")
	cmd := decodeCommand(buf, 0, cfg, prev, true)

	assert.Equal(t, byte('X'), cmd.Letter)
	assert.False(t, cmd.valid())
}

func TestFanucContinuation_IJOnArcs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MachineType = MachineTypeCNC
	prev := Command{Letter: 'G', HasNumber: true, Number: 2}
	buf := []byte("I5 J5")
	cmd := decodeCommand(buf, 0, cfg, prev, true)

	assert.Equal(t, byte('G'), cmd.Letter)
	assert.Equal(t, int32(2), cmd.Number)
}
