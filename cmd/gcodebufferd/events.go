package main

import (
	"io/ioutil"
	"log"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
)

// events wraps a go-sse server the same way cmd/gcnc/api.go does: a single
// server instance pushes "/events/<channel>" messages to every connected
// client.
type events struct {
	srv *sse.Server
}

func newEvents() *events {
	return &events{
		srv: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}
}

func (e *events) publish(channel, data string) {
	e.srv.SendMessage("/events/"+channel, sse.SimpleMessage(data))
}

func (e *events) Handler() http.Handler { return e.srv }
