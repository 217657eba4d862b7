// Package wsfeed carries feed subscriptions over one websocket connection.
//
// The client sends {"op":"subscribe","id":...,"query":{...}} and
// {"op":"unsubscribe","id":...}. The server answers with
// {"type":"snapshot","id":...,"documents":[...]} on every change and
// {"type":"error","id":...,"error":"..."} when a subscription fails.
package wsfeed

import (
	"errors"

	"github.com/okian/livepitch/internal/feed"
)

// Request ops.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

var (
	// ErrDisconnected is reported to every subscription when the connection
	// drops. Subscriptions are restored after reconnect.
	ErrDisconnected = errors.New("wsfeed: disconnected")
	// ErrRemote wraps an error reported by the server.
	ErrRemote = errors.New("wsfeed: remote error")
	// ErrClosed is returned when subscribing on a closed client.
	ErrClosed = errors.New("wsfeed: client closed")
)

// Request is a client to server message.
type Request struct {
	Op    string           `json:"op"`
	ID    string           `json:"id"`
	Query *feed.Descriptor `json:"query,omitempty"`
}

// Message is a server to client message.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Documents []feed.Document `json:"documents,omitempty"`
	Error     string          `json:"error,omitempty"`
}
