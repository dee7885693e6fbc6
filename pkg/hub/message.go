// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "github.com/teslashibe/go-wayfinder/pkg/protocol"

// Message is a text frame to be sent to clients
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from pre-encoded JSON
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}

// Empty reports whether the message carries nothing worth sending.
func (m Message) Empty() bool {
	return protocol.IsEmptyPayload(m.Data)
}
