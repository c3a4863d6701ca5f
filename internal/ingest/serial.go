// Package ingest adapts physical byte transports (serial ports, network
// sockets) into the gcode.Buffer.Put/PutBytes feed, the same role
// machine/grbl/serialadapter.go plays for a Grbl status-line reader.
package ingest

import (
	"log"
	"sync"
	"time"

	"github.com/mastercactapus/gcodebuffer/gcode"
	"github.com/tarm/serial"
)

// SerialSource owns a serial port and a buffer bound to it: a background
// read loop feeds every incoming byte to buf.Put, and a completed-command
// callback fires whenever one becomes ready, matching the mutex-guarded
// background-read-loop shape of SerialAdapter.readLoop/loop.
type SerialSource struct {
	port *serial.Port
	buf  *gcode.Buffer

	mx      sync.Mutex
	onReady func(b *gcode.Buffer)
	closed  chan struct{}
}

// OpenSerialSource opens name at baud and starts feeding buf from it.
// onReady is invoked (under the source's lock) each time buf.Put reports a
// command is ready; the callback is responsible for calling buf.SetFinished
// once it's consumed what it needs.
func OpenSerialSource(name string, baud int, buf *gcode.Buffer, onReady func(b *gcode.Buffer)) (*SerialSource, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, err
	}
	s := &SerialSource{
		port:    port,
		buf:     buf,
		onReady: onReady,
		closed:  make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *SerialSource) readLoop() {
	rbuf := make([]byte, 256)
	for {
		select {
		case <-s.closed:
			return
		default:
		}
		n, err := s.port.Read(rbuf)
		if err != nil {
			log.Println("ERROR: read from port:", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.mx.Lock()
		for _, c := range rbuf[:n] {
			if s.buf.Put(c) && s.onReady != nil {
				s.onReady(s.buf)
			}
		}
		s.mx.Unlock()
	}
}

// Write sends bytes back out the port (ok/resend replies, status pushes).
func (s *SerialSource) Write(p []byte) (int, error) { return s.port.Write(p) }

// Close stops the read loop and closes the underlying port.
func (s *SerialSource) Close() error {
	close(s.closed)
	return s.port.Close()
}
