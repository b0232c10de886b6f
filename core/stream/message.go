package stream

import "time"

// EventType is the event tag of a stream frame.
type EventType string

// Event tags emitted by the streaming endpoint.
const (
	EventPut         EventType = "put"
	EventPatch       EventType = "patch"
	EventKeepAlive   EventType = "keep-alive"
	EventAuthRevoked EventType = "auth_revoked"
	EventCancel      EventType = "cancel"
)

// Kind tags every callback invocation of a session so one consumer can
// subscribe to several sessions and tell their events apart.
type Kind string

// Message is a single frame received from the stream.
type Message struct {
	ID         string    // Frame id, when the transport provides one
	Event      EventType // Event tag
	Data       []byte    // Raw payload, nil when the frame carries none
	ReceivedAt time.Time // When the transport decoded the frame
}

// IsControl reports whether the message is a protocol signal consumed by the producer.
func (m Message) IsControl() bool {
	switch m.Event {
	case EventKeepAlive, EventAuthRevoked, EventCancel:
		return true
	}
	return false
}

// IsData reports whether the message is a data event meant for the callback.
func (m Message) IsData() bool {
	return m.Event == EventPut || m.Event == EventPatch
}
