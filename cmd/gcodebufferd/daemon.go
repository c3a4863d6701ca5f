package main

import (
	"encoding/json"
	"log"

	"github.com/mastercactapus/gcodebuffer/gcode"
	"github.com/mastercactapus/gcodebuffer/internal/ingest"
)

// daemon owns the one gcode.Buffer a running gcodebufferd process feeds
// from whichever transport is configured, plus the SSE fan-out of
// decoded commands, mirroring the role cmd/gcnc/main.go's Machine plays
// for a single serial-backed machine.
type daemon struct {
	cfg gcode.Config
	ms  *gcode.MachineState
	buf *gcode.Buffer
	dir string

	serial  *ingest.SerialSource
	network *ingest.NetworkSource
	events  *events
}

func newDaemon(cfg gcode.Config, dir string) *daemon {
	ms := &gcode.MachineState{}
	d := &daemon{
		cfg:    cfg,
		ms:     ms,
		buf:    gcode.NewBuffer(cfg, ms),
		dir:    dir,
		events: newEvents(),
	}
	d.network = ingest.NewNetworkSource(d.buf, d.onCommandReady)
	return d
}

func (d *daemon) openSerial(port string, baud int) error {
	s, err := ingest.OpenSerialSource(port, baud, d.buf, d.onCommandReady)
	if err != nil {
		return err
	}
	d.serial = s
	return nil
}

// onCommandReady is the callback driven by ingest.SerialSource/NetworkSource
// each time a byte feed completes a command: it reports the decoded
// command over SSE and immediately finishes it, since this daemon has no
// notion of "processing" a command beyond observing it.
func (d *daemon) onCommandReady(b *gcode.Buffer) {
	type decoded struct {
		Command string `json:"command"`
		Line    string `json:"line"`
	}
	data, err := json.Marshal(decoded{Command: b.PrintCommand(), Line: b.AppendFullCommand()})
	if err != nil {
		log.Println("ERROR: marshal command event:", err)
	} else {
		d.events.publish("command", string(data))
	}
	if err := b.Err(); err != nil {
		log.Println("ERROR: control flow:", err)
	}
	b.SetFinished()
}
