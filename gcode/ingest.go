package gcode

import (
	"log"
	"strconv"
)

// ingestState is the byte-level state machine of spec.md §4.1.
type ingestState int

const (
	stateNotStarted ingestState = iota
	stateLineNumber
	stateWhitespace
	stateCode
	stateBracketedComment
	stateQuotedString
	stateChecksum
	stateDiscarding
)

// byteClass buckets an incoming byte into one of the transition table's
// columns. Classification of the "N/n first" column is state-dependent
// (it only applies while still at the very start of a line), so it is
// computed by the assembler rather than here.
type byteClass int

const (
	classDigit byteClass = iota
	classSpaceTab
	classStar
	classSemicolon
	classOpenParen
	classCloseParen
	classQuote
	classTerminator
	class7F
	classNFirst
	classOther
)

func (a *LineAssembler) classify(c byte) byteClass {
	switch {
	case isDigit(c):
		return classDigit
	case isSpaceOrTab(c):
		return classSpaceTab
	case c == '*':
		return classStar
	case c == ';':
		return classSemicolon
	case c == '(':
		return classOpenParen
	case c == ')':
		return classCloseParen
	case c == '"':
		return classQuote
	case c == 0 || c == '\n' || c == '\r':
		return classTerminator
	case c == 0x7F:
		return class7F
	case (c == 'N' || c == 'n') && a.state == stateNotStarted:
		return classNFirst
	default:
		return classOther
	}
}

// LineMeta is the per-line metadata spec.md §3 describes.
type LineMeta struct {
	HadLineNumber      bool
	ReceivedLineNumber uint32
	HadChecksum        bool
	DeclaredChecksum   uint8
	ComputedChecksum   uint8
	CommandIndent      uint16
}

// LineAssembler is the byte-at-a-time ingest state machine: it
// simultaneously validates a checksum, strips comments, honors quoted
// strings, tracks line numbers, and resyncs on serial framing errors.
type LineAssembler struct {
	cfg Config

	state ingestState
	data  []byte // retained bytes only, capacity cfg.MaxLineLength

	indent        uint16
	lineNumberAcc uint32
	computed      uint8
	declared      uint8
	hadLineNumber bool
	hadChecksum   bool

	totalConsumed    uint64
	finishedConsumed uint64

	meta         LineMeta
	finishedData []byte
}

// NewLineAssembler constructs an assembler with an empty line buffer.
func NewLineAssembler(cfg Config) *LineAssembler {
	a := &LineAssembler{cfg: cfg}
	a.data = make([]byte, 0, cfg.MaxLineLength)
	return a
}

// Init resets the assembler to NotStarted, discarding any partial line.
func (a *LineAssembler) Init() {
	a.state = stateNotStarted
	a.data = a.data[:0]
	a.indent = 0
	a.lineNumberAcc = 0
	a.computed = 0
	a.declared = 0
	a.hadLineNumber = false
	a.hadChecksum = false
	a.totalConsumed = 0
}

// Bytes returns the raw-line content of the most recently completed line.
// It remains valid until the next line finishes.
func (a *LineAssembler) Bytes() []byte { return a.finishedData }

// Meta returns the metadata of the most recently completed line.
func (a *LineAssembler) Meta() LineMeta { return a.meta }

// TotalConsumed returns bytes consumed (including stripped ones and the
// terminator) for the most recently completed line; used for file-position
// accounting.
func (a *LineAssembler) TotalConsumed() uint64 { return a.finishedConsumed }

func (a *LineAssembler) store(c byte) {
	if len(a.data) < cap(a.data) {
		a.data = append(a.data, c)
	}
	a.computed ^= c
}

func (a *LineAssembler) xor(c byte) { a.computed ^= c }

func (a *LineAssembler) resync() {
	a.data = a.data[:0]
	a.indent = 0
	a.lineNumberAcc = 0
	a.computed = 0
	a.declared = 0
	a.hadLineNumber = false
	a.hadChecksum = false
	a.state = stateDiscarding
}

// Put feeds one byte through the state machine. It returns true once a
// complete, valid line has been assembled and is ready for BlockController
// and CommandDecoder; it returns false while mid-line, and also after a
// line is recovered from locally (bad checksum with no line number,
// missing required checksum, or buffer overflow) per spec.md §7's
// "ingest errors are recovered locally" policy.
func (a *LineAssembler) Put(c byte, ms *MachineState) bool {
	for {
		a.totalConsumed++
		class := a.classify(c)
		again, finished := a.step(c, class, ms)
		if !again {
			return finished
		}
		// reprocess the same byte in the new state; don't recount it.
		a.totalConsumed--
	}
}

func (a *LineAssembler) step(c byte, class byteClass, ms *MachineState) (again, finished bool) {
	switch a.state {
	case stateNotStarted:
		switch class {
		case classNFirst:
			a.xor(c)
			a.state = stateLineNumber
			a.hadLineNumber = true
			a.lineNumberAcc = 0
		case classDigit:
			a.state = stateCode
			return true, false
		case classSpaceTab:
			a.xor(c)
			a.indent++
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.state = stateCode
			return true, false
		}
	case stateLineNumber:
		switch class {
		case classDigit:
			a.xor(c)
			a.lineNumberAcc = a.lineNumberAcc*10 + uint32(c-'0')
		case classSpaceTab:
			a.state = stateWhitespace
			return true, false
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.state = stateWhitespace
			return true, false
		}
	case stateWhitespace:
		switch class {
		case classDigit:
			a.state = stateCode
			return true, false
		case classSpaceTab:
			a.xor(c)
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.state = stateCode
			return true, false
		}
	case stateCode:
		switch class {
		case classDigit, classSpaceTab, classCloseParen:
			a.store(c)
		case classStar:
			a.state = stateChecksum
			a.hadChecksum = true
		case classSemicolon:
			a.state = stateDiscarding
		case classOpenParen:
			a.xor(c)
			a.state = stateBracketedComment
		case classQuote:
			a.store(c)
			a.state = stateQuotedString
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.store(c)
		}
	case stateBracketedComment:
		switch class {
		case classCloseParen:
			a.xor(c)
			a.state = stateCode
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.xor(c)
		}
	case stateQuotedString:
		switch class {
		case classQuote:
			a.store(c)
			a.state = stateCode
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.store(c)
		}
	case stateChecksum:
		switch class {
		case classDigit:
			a.declared = a.declared*10 + (c - '0')
		case classTerminator:
			return false, a.finish(ms)
		case class7F:
			a.resync()
		default:
			a.state = stateDiscarding
			return true, false
		}
	case stateDiscarding:
		switch class {
		case classTerminator:
			return false, a.finish(ms)
		default:
			// drop everything, including 0x7F: we're already recovering.
		}
	}
	return false, false
}

// finish runs the end-of-line logic from spec.md §4.1. It always leaves
// the assembler ready to accept the next line's first byte.
func (a *LineAssembler) finish(ms *MachineState) bool {
	defer a.Init()

	if len(a.data) == 0 {
		return false
	}

	if len(a.data) == cap(a.data) {
		log.Printf("gcode: line buffer overflow, dropping line")
		return false
	}

	missingChecksum := !a.hadChecksum

	if a.hadChecksum && a.computed != a.declared {
		if !a.hadLineNumber {
			return false
		}
		resend := []byte("M998 P")
		resend = append(resend, []byte(strconv.Itoa(int(a.lineNumberAcc)))...)
		a.data = a.data[:0]
		a.data = append(a.data, resend...)
		a.hadChecksum = false
	} else if a.cfg.ChecksumRequired && ms.Outermost() && missingChecksum {
		return false
	}

	if a.hadLineNumber {
		ms.LineNumber = a.lineNumberAcc
	} else {
		ms.LineNumber++
	}

	a.meta = LineMeta{
		HadLineNumber:      a.hadLineNumber,
		ReceivedLineNumber: a.lineNumberAcc,
		HadChecksum:        a.hadChecksum,
		DeclaredChecksum:   a.declared,
		ComputedChecksum:   a.computed,
		CommandIndent:      a.indent,
	}

	// a.Init() runs via defer right after this returns; snapshot the line
	// bytes now so callers can still read them afterward.
	a.finishedData = append(a.finishedData[:0], a.data...)
	a.finishedConsumed = a.totalConsumed
	return true
}
