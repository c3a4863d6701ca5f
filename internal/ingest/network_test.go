package ingest

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/gcodebuffer/gcode"
	"github.com/stretchr/testify/assert"
)

// TestNetworkSource_FeedsBufferFromWebsocket dials a real websocket
// connection against an httptest.Server fronting a NetworkSource and
// confirms a command sent as one text frame reaches onReady, the same
// round trip cmd/gcodebufferd/api.go's "/ws" route drives in production.
func TestNetworkSource_FeedsBufferFromWebsocket(t *testing.T) {
	buf := gcode.NewBuffer(gcode.DefaultConfig(), &gcode.MachineState{})

	ready := make(chan string, 1)
	src := NewNetworkSource(buf, func(b *gcode.Buffer) {
		ready <- b.PrintCommand()
		b.SetFinished()
	})

	srv := httptest.NewServer(src)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("G1 X1\n")))

	select {
	case cmd := <-ready:
		assert.Equal(t, "G1", cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestNetworkSource_Send_NoConnection(t *testing.T) {
	buf := gcode.NewBuffer(gcode.DefaultConfig(), &gcode.MachineState{})
	src := NewNetworkSource(buf, nil)
	assert.NoError(t, src.Send([]byte("ok\n")))
}
