package gcode

// MachineState is the external collaborator spec.md §3 describes: the
// buffer borrows a reference to it for the duration of a Put/SetFinished
// cycle, reading and mutating the specific fields the core owns.
type MachineState struct {
	LineNumber  uint32
	IndentLevel uint16

	// Previous points at the invoking macro's state when this state
	// represents a nested macro call. A checksum is only required at the
	// outermost scope (Previous == nil).
	Previous *MachineState

	// G53Active latches once a G53 is decoded and stays set for the
	// remaining sub-commands of the same line; SetFinished's reset path
	// clears it once the whole line is finished.
	G53Active bool
}

// Outermost reports whether this state has no enclosing macro invocation.
func (ms *MachineState) Outermost() bool { return ms.Previous == nil }

// FileReader is the minimal interface BlockController needs from whatever
// is feeding bytes from a file: enough to bookmark a loop head and rewind
// to it. Physical transports that aren't files (serial, network) simply
// don't implement it.
type FileReader interface {
	Position() uint64
	Seek(pos uint64) error
}

// FileSource extends FileReader with the bookkeeping GetFilePosition needs
// to report the file offset of the first byte of the current command.
type FileSource interface {
	FileReader
	// BytesCached reports bytes already read from the file but not yet
	// handed to Put (i.e. sitting in the transport's own read-ahead buffer).
	BytesCached() int
}

// NoFilePosition is returned by Buffer.GetFilePosition when not executing
// from a file.
const NoFilePosition = ^uint64(0)
