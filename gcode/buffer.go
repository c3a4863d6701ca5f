package gcode

import "strconv"

// BufferMode distinguishes ordinary decode-and-serve operation from the
// M28-style file-capture mode described in SPEC_FULL.md §4: while
// capturing, completed lines are routed to a sink instead of being decoded.
type BufferMode int

const (
	ModeNormal BufferMode = iota
	ModeCapturingFile
)

// Buffer is the top-level type external consumers own: one LineAssembler,
// one BlockController, the current decoded Command, and the typed
// parameter-reader cursor, all tied to one MachineState for the duration
// of each Put/SetFinished cycle (spec.md §6, "External Interfaces").
type Buffer struct {
	cfg Config

	assembler *LineAssembler
	block     *BlockController

	ms *MachineState

	cmd         Command
	havePrevCmd bool

	readPointer int // -1 = no pending read

	Resolver Resolver
	fileSrc  FileSource

	lastErr error

	mode       BufferMode
	captureBuf []byte
	captureEnd string // terminator line, matched case-sensitively, e.g. "M29"
}

// NewBuffer constructs a Buffer bound to ms for its lifetime. ms may be
// shared with other collaborators (the motion planner, for instance); this
// type reads Previous on it and writes LineNumber, IndentLevel and G53Active.
func NewBuffer(cfg Config, ms *MachineState) *Buffer {
	return &Buffer{
		cfg:         cfg,
		assembler:   NewLineAssembler(cfg),
		block:       NewBlockController(),
		ms:          ms,
		readPointer: -1,
	}
}

// SetFileSource attaches the file collaborator BlockController needs for
// loop-rewind and GetFilePosition. Pass nil for non-file transports.
func (b *Buffer) SetFileSource(fs FileSource) { b.fileSrc = fs }

// Init resets the buffer to NotStarted, discarding any in-progress line
// and any pending command/parameter cursor.
func (b *Buffer) Init() {
	b.assembler.Init()
	b.cmd = Command{}
	b.havePrevCmd = false
	b.readPointer = -1
	b.mode = ModeNormal
}

func (b *Buffer) lineBytes() []byte { return b.assembler.Bytes() }

// Put feeds one byte. It returns true once a command is ready to be read
// via seen()/the typed getters.
func (b *Buffer) Put(c byte) bool {
	lineReady := b.assembler.Put(c, b.ms)
	if !lineReady {
		return false
	}
	return b.onLineReady()
}

// PutBytes feeds a whole byte slice, appending '\n' if the caller omitted
// it, matching spec.md §6's bulk put(bytes[]) operation. It reports
// whether a command became ready during the feed; SetFinished/seen/getters
// should be used against the buffer as usual once it returns true.
func (b *Buffer) PutBytes(data []byte) bool {
	ready := false
	for _, c := range data {
		if b.Put(c) {
			ready = true
		}
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		if b.Put('\n') {
			ready = true
		}
	}
	return ready
}

func (b *Buffer) onLineReady() bool {
	if b.mode == ModeCapturingFile {
		return b.captureLine()
	}

	buf := b.lineBytes()
	meta := b.assembler.Meta()

	if b.fileSrc != nil {
		swallow, err := b.block.Accept(buf, meta, b.ms, b.fileSrc, b.evaluateCondition)
		b.ms.IndentLevel = b.block.IndentLevel()
		if err != nil {
			// A structural control-flow error aborts the current command;
			// it's surfaced through Err() rather than the put(byte) -> bool
			// signature spec.md §6 specifies.
			b.lastErr = err
			return false
		}
		if swallow {
			return false
		}
	}

	b.cmd = decodeCommand(buf, 0, b.cfg, b.cmd, b.havePrevCmd)
	b.havePrevCmd = true
	b.readPointer = -1
	b.latchG53()
	return true
}

// latchG53 sets MachineState.G53Active once the current decoded command is
// a G53, per spec.md §4.3 step 6: it then stays set for every remaining
// sub-command on the same line, until SetFinished's full-line reset clears
// it (the original's GCodes.cpp sets the same latch on decoding G53; not
// part of original_source, but spec.md §3 lists g53Active as a field this
// core both reads and mutates).
func (b *Buffer) latchG53() {
	if b.cmd.Letter == 'G' && b.cmd.HasNumber && b.cmd.Number == 53 {
		b.ms.G53Active = true
	}
}

func (b *Buffer) captureLine() bool {
	buf := b.lineBytes()
	if string(buf) == b.captureEnd {
		b.mode = ModeNormal
		return false
	}
	b.captureBuf = append(b.captureBuf, buf...)
	b.captureBuf = append(b.captureBuf, '\n')
	return false
}

// StartCapture switches the buffer into file-capture mode: subsequent
// completed lines are appended to an internal buffer instead of being
// decoded, until a line exactly equal to until (case-sensitive, as the
// firmware requires) is seen. CapturedBytes retrieves the result.
func (b *Buffer) StartCapture(until string) {
	b.mode = ModeCapturingFile
	b.captureEnd = until
	b.captureBuf = b.captureBuf[:0]
}

// CapturedBytes returns the bytes collected during file-capture mode.
func (b *Buffer) CapturedBytes() []byte { return b.captureBuf }

// SetFinished implements spec.md §6: either advance to the next
// sub-command on the same line, or reset for the next line.
func (b *Buffer) SetFinished() {
	if b.cmd.CommandEnd < len(b.lineBytes()) {
		b.cmd = decodeCommand(b.lineBytes(), b.cmd.CommandEnd, b.cfg, b.cmd, b.havePrevCmd)
		b.readPointer = -1
		b.latchG53()
		return
	}
	b.ms.G53Active = false
	b.assembler.Init()
	b.readPointer = -1
	b.mode = ModeNormal
	// cmd/havePrevCmd deliberately survive this reset: a continuation
	// line on a CNC machine needs the previous G0-G3 command available
	// (spec.md §4.3's Fanuc fallback).
}

// GetCommandLetter, HasCommandNumber, GetCommandNumber, GetCommandFraction
// expose the current Command view (spec.md §6).
func (b *Buffer) GetCommandLetter() byte   { return b.cmd.Letter }
func (b *Buffer) HasCommandNumber() bool   { return b.cmd.HasNumber }
func (b *Buffer) GetCommandNumber() int32  { return b.cmd.Number }
func (b *Buffer) GetCommandFraction() int8 { return b.cmd.Fraction }

// Err returns and clears the last structural control-flow error raised by
// BlockController while vetting a line (spec.md §7: "Structural
// control-flow errors abort the current command and are surfaced as
// normal errors").
func (b *Buffer) Err() error {
	err := b.lastErr
	b.lastErr = nil
	return err
}

// evaluateCondition implements the minimal condition grammar a bare if/while
// keyword accepts: "true", "false", a bare identifier, or a single
// brace-wrapped expression, each resolved through the same coercion rules
// as a typed parameter (spec.md §4.2, "Open Questions"). keyword is the
// controlling statement's own name ("if" or "while"), reported verbatim in
// ConditionEvaluationFailed per spec.md §7, matching the original's
// EvaluateCondition(const char *keyword).
func (b *Buffer) evaluateCondition(keyword, cond string) (bool, error) {
	switch cond {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "":
		return false, newConditionError(0, keyword)
	}

	var v ExpressionValue
	var err error
	if cond[0] == '{' {
		cbuf := []byte(cond)
		v, _, err = b.evalExpr(cbuf, 0)
	} else if b.Resolver != nil {
		v, err = b.Resolver.Resolve(cond)
	} else {
		return false, newConditionError(0, keyword)
	}
	if err != nil {
		return false, newConditionError(0, keyword)
	}
	ok, err := coerceBool(v, 0)
	if err != nil {
		return false, newConditionError(0, keyword)
	}
	return ok, nil
}

// GetFilePosition reports the file offset of the first byte of the
// current command, or NoFilePosition when not executing from a file.
func (b *Buffer) GetFilePosition() uint64 {
	if b.fileSrc == nil {
		return NoFilePosition
	}
	return b.fileSrc.Position() - uint64(b.fileSrc.BytesCached()) - b.assembler.TotalConsumed() + uint64(b.cmd.CommandStart)
}

// PrintCommand returns "<L><N>[.<F>]" for the current command, per spec.md §6.
func (b *Buffer) PrintCommand() string {
	s := string(b.cmd.Letter)
	if b.cmd.HasNumber {
		s += strconv.Itoa(int(b.cmd.Number))
		if b.cmd.Fraction >= 0 {
			s += "." + strconv.Itoa(int(b.cmd.Fraction))
		}
	}
	return s
}

// AppendFullCommand returns the raw line content backing the current
// command, per spec.md §6.
func (b *Buffer) AppendFullCommand() string { return string(b.lineBytes()) }
