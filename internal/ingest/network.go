package ingest

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mastercactapus/gcodebuffer/gcode"
)

// NetworkSource is the server-side counterpart of spjs/spjs.go's SPJS
// client loop: instead of dialing out to a bridge, it upgrades inbound
// connections and feeds each message's bytes into a gcode.Buffer.
type NetworkSource struct {
	upgrader websocket.Upgrader
	buf      *gcode.Buffer
	onReady  func(b *gcode.Buffer)

	mx   sync.Mutex
	conn *websocket.Conn
}

// NewNetworkSource constructs a handler that accepts exactly one live
// connection at a time, replacing it on reconnect.
func NewNetworkSource(buf *gcode.Buffer, onReady func(b *gcode.Buffer)) *NetworkSource {
	return &NetworkSource{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		buf:      buf,
		onReady:  onReady,
	}
}

// ServeHTTP upgrades the request to a websocket and reads frames from it
// until the connection drops.
func (n *NetworkSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ERROR: websocket upgrade:", err)
		return
	}
	n.mx.Lock()
	if n.conn != nil {
		n.conn.Close()
	}
	n.conn = conn
	n.mx.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Println("ERROR: websocket read:", err)
			return
		}
		n.mx.Lock()
		for _, c := range data {
			if n.buf.Put(c) && n.onReady != nil {
				n.onReady(n.buf)
			}
		}
		n.mx.Unlock()
	}
}

// Send writes p out to the currently connected client, if any.
func (n *NetworkSource) Send(p []byte) error {
	n.mx.Lock()
	defer n.mx.Unlock()
	if n.conn == nil {
		return nil
	}
	return n.conn.WriteMessage(websocket.TextMessage, p)
}
