package gcode

// BlockKind is the per-frame variant from spec.md §3's BlockState.
type BlockKind int

const (
	BlockPlain BlockKind = iota
	BlockIfTrue
	BlockIfFalse
	BlockLoop
)

type blockFrame struct {
	kind           BlockKind
	loopFilePos    uint64
	loopLineNumber uint32
	loopCond       string
}

// BlockController owns the indent stack, the loop bookmarks, and the
// if/else/while/break/var dispatch from spec.md §4.2. frames[0] is always
// present and represents the top-level (indent 0) lexical context, so
// IndentLevel() is len(frames)-1.
type BlockController struct {
	frames []blockFrame
	skipTo *uint16

	// set by the step that clears skipTo, consumed by a following "else"
	// on the very next dispatch.
	justEndedIfFalse bool
}

// NewBlockController starts with a single top-level PlainBlock frame.
func NewBlockController() *BlockController {
	return &BlockController{frames: []blockFrame{{kind: BlockPlain}}}
}

// IndentLevel reports the current nesting depth.
func (bc *BlockController) IndentLevel() uint16 { return uint16(len(bc.frames) - 1) }

func (bc *BlockController) current() *blockFrame { return &bc.frames[len(bc.frames)-1] }

// rewindIfLoop checks whether f is an active loop frame and, if its
// condition still holds, seeks fr back to the loop body's start for
// another pass. Returns false (with f reset to BlockPlain) once the
// condition is no longer true.
func (bc *BlockController) rewindIfLoop(f *blockFrame, ms *MachineState, fr FileReader, evalCond func(keyword, cond string) (bool, error)) (bool, error) {
	if f.kind != BlockLoop {
		return false, nil
	}
	ok, err := evalCond("while", f.loopCond)
	if err != nil {
		return false, err
	}
	if !ok {
		f.kind = BlockPlain
		return false, nil
	}
	ms.LineNumber = f.loopLineNumber
	if err := fr.Seek(f.loopFilePos); err != nil {
		return false, err
	}
	return true, nil
}

// Accept implements spec.md §4.2 steps 1-5 for one completed line. It
// returns true when the line must not be decoded as a command (swallowed
// by indent-skip, by a loop rewind, or by being a recognized control
// keyword), and an error for the structural control-flow failures of
// spec.md §7.
func (bc *BlockController) Accept(buf []byte, meta LineMeta, ms *MachineState, fr FileReader, evalCond func(keyword, cond string) (bool, error)) (swallow bool, err error) {
	indent := meta.CommandIndent

	// step 1
	if bc.skipTo != nil && indent > *bc.skipTo {
		return true, nil
	}

	// step 2
	bc.justEndedIfFalse = false
	if bc.skipTo != nil && indent == *bc.skipTo {
		bc.skipTo = nil
		if bc.current().kind == BlockIfFalse {
			bc.justEndedIfFalse = true
		}
		bc.current().kind = BlockPlain
	}

	// step 3 / 4
	for bc.IndentLevel() < indent {
		bc.frames = append(bc.frames, blockFrame{kind: BlockPlain})
	}
	// Pop one frame at a time rather than straight to indent, checking each
	// landing frame for an active loop as we go: a loop frame nested inside
	// another popped-through loop must rewind into ITSELF, not be silently
	// discarded on the way down to the outer loop.
	for bc.IndentLevel() > indent {
		bc.frames = bc.frames[:len(bc.frames)-1]
		rewound, cerr := bc.rewindIfLoop(bc.current(), ms, fr, evalCond)
		if cerr != nil {
			return true, cerr
		}
		if rewound {
			return true, nil
		}
	}

	// Re-entering the depth of an active loop header (no further dedent
	// needed, e.g. a sibling line back at the loop's own indent) means its
	// body has run to completion; re-check the same way before falling
	// through.
	rewound, cerr := bc.rewindIfLoop(bc.current(), ms, fr, evalCond)
	if cerr != nil {
		return true, cerr
	}
	if rewound {
		return true, nil
	}

	// step 5
	word, restStart := firstWord(buf)
	if word == "" {
		return false, nil
	}

	switch word {
	case "if":
		cond := trimSpace(buf[restStart:])
		ok, cerr := evalCond("if", cond)
		if cerr != nil {
			return true, cerr
		}
		if ok {
			bc.current().kind = BlockIfTrue
		} else {
			bc.current().kind = BlockIfFalse
			v := indent
			bc.skipTo = &v
		}
		return true, nil

	case "else":
		if bc.justEndedIfFalse {
			return true, nil
		}
		if bc.current().kind == BlockIfTrue {
			bc.current().kind = BlockPlain
			v := indent
			bc.skipTo = &v
			return true, nil
		}
		return true, newError(ErrElseWithoutIf, 0)

	case "while":
		cond := trimSpace(buf[restStart:])
		ok, cerr := evalCond("while", cond)
		if cerr != nil {
			return true, cerr
		}
		if ok {
			f := bc.current()
			f.kind = BlockLoop
			f.loopFilePos = fr.Position()
			f.loopLineNumber = ms.LineNumber
			f.loopCond = cond
		} else {
			bc.current().kind = BlockPlain
			v := indent
			bc.skipTo = &v
		}
		return true, nil

	case "break":
		idx := -1
		for i := len(bc.frames) - 1; i >= 0; i-- {
			if bc.frames[i].kind == BlockLoop {
				idx = i
				break
			}
		}
		if idx < 0 {
			return true, newError(ErrBreakOutsideLoop, 0)
		}
		bc.frames = bc.frames[:idx+1]
		bc.frames[idx].kind = BlockPlain
		v := uint16(idx)
		bc.skipTo = &v
		return true, nil

	case "var":
		return true, newError(ErrNotImplementedVar, 0)
	}

	return false, nil
}

// firstWord extracts the first word of buf if it is purely lowercase
// letters of length 2-5 followed by end-of-buffer or whitespace, per
// spec.md §4.2 step 5 and §6.
func firstWord(buf []byte) (word string, restStart int) {
	i := 0
	for i < len(buf) && buf[i] >= 'a' && buf[i] <= 'z' {
		i++
	}
	if i < 2 || i > 5 {
		return "", 0
	}
	if i < len(buf) && !isSpaceOrTab(buf[i]) {
		return "", 0
	}
	return string(buf[:i]), i
}

func trimSpace(buf []byte) string {
	start, end := 0, len(buf)
	for start < end && isSpaceOrTab(buf[start]) {
		start++
	}
	for end > start && isSpaceOrTab(buf[end-1]) {
		end--
	}
	return string(buf[start:end])
}
