// Package macrofile implements gcode.FileSource over a macro file on disk,
// and serves the macro directory over HTTP the way cmd/gcnc/api.go serves
// its data directory.
package macrofile

import (
	"os"

	"github.com/mastercactapus/gcodebuffer/gcode"
)

// Reader implements gcode.FileSource by reading a macro file through a
// small read-ahead buffer, so BlockController can rewind to any position
// a loop header bookmarked.
type Reader struct {
	f        *os.File
	buf      []byte
	bufStart uint64 // absolute file offset of buf[0]
	pos      int    // next unread byte within buf
}

var _ gcode.FileSource = (*Reader)(nil)

// Open opens name for a macro run.
func Open(name string) (*Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &Reader{f: f}, nil
}

// ReadByte returns the next byte of the macro, refilling the read-ahead
// buffer from disk when exhausted.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		r.bufStart += uint64(len(r.buf))
		chunk := make([]byte, 4096)
		n, err := r.f.Read(chunk)
		if n == 0 {
			return 0, err
		}
		r.buf = chunk[:n]
		r.pos = 0
	}
	c := r.buf[r.pos]
	r.pos++
	return c, nil
}

// Position reports the file's read cursor: the offset just past the last
// byte pulled from disk, including any unconsumed read-ahead.
func (r *Reader) Position() uint64 { return r.bufStart + uint64(len(r.buf)) }

// BytesCached reports bytes already read into the read-ahead buffer but
// not yet consumed via ReadByte.
func (r *Reader) BytesCached() int { return len(r.buf) - r.pos }

// Seek rewinds (or advances) to an absolute file offset, discarding the
// read-ahead buffer, for BlockController's loop-rewind.
func (r *Reader) Seek(pos uint64) error {
	if _, err := r.f.Seek(int64(pos), 0); err != nil {
		return err
	}
	r.buf = nil
	r.pos = 0
	r.bufStart = pos
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Run feeds the entire macro through buf, invoking onReady each time a
// command becomes ready; onReady must call buf.SetFinished before Run
// reads the next byte, since SetFinished is what ends the current command
// (and, at the end of the line, clears the G53 latch).
func Run(r *Reader, buf *gcode.Buffer, onReady func(b *gcode.Buffer) error) error {
	buf.SetFileSource(r)
	for {
		c, err := r.ReadByte()
		if err != nil {
			return nil
		}
		if buf.Put(c) {
			if err := onReady(buf); err != nil {
				return err
			}
		}
		if err := buf.Err(); err != nil {
			return err
		}
	}
}
