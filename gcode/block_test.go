package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFileReader struct {
	pos uint64
}

func (f *fakeFileReader) Position() uint64 { return f.pos }
func (f *fakeFileReader) Seek(pos uint64) error {
	f.pos = pos
	return nil
}

func trueCond(keyword, cond string) (bool, error)  { return cond == "true", nil }
func falseCond(keyword, cond string) (bool, error) { return false, nil }

func TestBlockController_IfTrueExecutesBody(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{}
	fr := &fakeFileReader{}

	swallow, err := bc.Accept([]byte("if true"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	swallow, err = bc.Accept([]byte("G1 X1"), LineMeta{CommandIndent: 1}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.False(t, swallow)
}

func TestBlockController_IfFalseSkipsBodyThenElseRuns(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{}
	fr := &fakeFileReader{}

	swallow, err := bc.Accept([]byte("if false"), LineMeta{CommandIndent: 0}, ms, fr, falseCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	swallow, err = bc.Accept([]byte("G1 X1"), LineMeta{CommandIndent: 1}, ms, fr, falseCond)
	assert.NoError(t, err)
	assert.True(t, swallow, "body of a false if must be swallowed")

	swallow, err = bc.Accept([]byte("else"), LineMeta{CommandIndent: 0}, ms, fr, falseCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	swallow, err = bc.Accept([]byte("G1 Y1"), LineMeta{CommandIndent: 1}, ms, fr, falseCond)
	assert.NoError(t, err)
	assert.False(t, swallow, "body of the matching else must execute")
}

func TestBlockController_ElseWithoutIf(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{}
	fr := &fakeFileReader{}

	_, err := bc.Accept([]byte("else"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrElseWithoutIf, pe.Kind)
}

func TestBlockController_WhileRewindsOnDedent(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{LineNumber: 10}
	fr := &fakeFileReader{pos: 100}

	swallow, err := bc.Accept([]byte("while true"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	fr.pos = 150
	ms.LineNumber = 12

	swallow, err = bc.Accept([]byte("G1 X1"), LineMeta{CommandIndent: 1}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.False(t, swallow)

	fr.pos = 200
	ms.LineNumber = 13
	swallow, err = bc.Accept([]byte("G1 X2"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow, "dedenting out of a loop rewinds instead of executing")
	assert.Equal(t, uint64(100), fr.pos)
	assert.Equal(t, uint32(10), ms.LineNumber)
}

func TestBlockController_NestedWhileRewindsInnerLoopNotOuter(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{LineNumber: 1}
	fr := &fakeFileReader{pos: 10}

	// while A (indent 0)
	swallow, err := bc.Accept([]byte("while true"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	fr.pos = 20
	ms.LineNumber = 2

	// while B (indent 1), nested inside A
	swallow, err = bc.Accept([]byte("while true"), LineMeta{CommandIndent: 1}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	fr.pos = 30
	ms.LineNumber = 3

	// G1 X1 (indent 2), B's body
	swallow, err = bc.Accept([]byte("G1 X1"), LineMeta{CommandIndent: 2}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.False(t, swallow)

	// dedent straight from indent 2 back to indent 0: must rewind into B
	// (the innermost loop popped through), not A.
	fr.pos = 40
	ms.LineNumber = 4
	swallow, err = bc.Accept([]byte("G1 X2"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow, "dedenting through a nested loop rewinds into the innermost one")
	assert.Equal(t, uint64(20), fr.pos, "must rewind to B's body start, not A's")
	assert.Equal(t, uint32(2), ms.LineNumber)
}

func TestBlockController_BreakExitsLoop(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{}
	fr := &fakeFileReader{}

	_, _ = bc.Accept([]byte("while true"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	swallow, err := bc.Accept([]byte("break"), LineMeta{CommandIndent: 1}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow)

	swallow, err = bc.Accept([]byte("G1 X1"), LineMeta{CommandIndent: 1}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.True(t, swallow, "remainder of the broken loop body is swallowed")

	swallow, err = bc.Accept([]byte("G1 X2"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.NoError(t, err)
	assert.False(t, swallow, "execution resumes normally after the loop")
}

func TestBlockController_BreakOutsideLoop(t *testing.T) {
	bc := NewBlockController()
	ms := &MachineState{}
	fr := &fakeFileReader{}

	_, err := bc.Accept([]byte("break"), LineMeta{CommandIndent: 0}, ms, fr, trueCond)
	assert.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrBreakOutsideLoop, pe.Kind)
}
