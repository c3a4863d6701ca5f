package main

import (
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mastercactapus/gcodebuffer/internal/macrofile"
)

// newAPI wires the HTTP surface for a daemon: macro-directory browsing,
// manual command injection for testing a transport-less buffer, the
// websocket network transport, and the SSE event stream, the same concerns
// cmd/gcnc/api.go's "/data/", "/api/run" and "/events/" routes cover, plus
// cmd/gcnc/spjs.go's websocket bridging on the "/ws" route.
func newAPI(d *daemon) http.Handler {
	r := mux.NewRouter()

	r.PathPrefix("/macros/").Handler(http.StripPrefix("/macros", macrofile.DirHandler(d.dir)))

	r.Handle("/ws", d.network)

	r.HandleFunc("/api/feed", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		data, err := ioutil.ReadAll(req.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, c := range data {
			if d.buf.Put(c) {
				d.onCommandReady(d.buf)
			}
		}
	}).Methods(http.MethodPost)

	r.PathPrefix("/events/").Handler(d.events.Handler())

	return r
}
