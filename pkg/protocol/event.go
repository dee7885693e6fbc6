package protocol

import (
	"bytes"
	"encoding/json"
)

// EventType names a server → host event.
type EventType string

const (
	// EventARReady is sent once tracking is stable and commands can run.
	EventARReady EventType = "ar_ready"
)

// Event is pushed to host bridge clients. Navigation state is never pushed;
// hosts poll for it.
type Event struct {
	EventType EventType `json:"eventType"`
	Message   string    `json:"message"`
}

// ARReady returns the tracking-ready event.
func ARReady() Event {
	return Event{EventType: EventARReady, Message: "ok"}
}

// Bytes returns the JSON-encoded event
func (e Event) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// IsEmptyPayload reports whether an outgoing payload carries nothing and
// should not be sent.
func IsEmptyPayload(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null"))
}
