package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind tags an inbound realtime event.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventNotification EventKind = "notification"
	EventConnect      EventKind = "connect"
	EventDisconnect   EventKind = "disconnect"
)

// Event is the tagged envelope for everything arriving on the realtime
// channel. Payload shape depends on Kind: a Message, a Notification, or a
// DisconnectInfo for the synthetic connect/disconnect events.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DisconnectInfo is the payload of synthetic connect/disconnect events.
// Terminal marks a disconnect the transport will not retry, such as the
// server rejecting the session token.
type DisconnectInfo struct {
	Reason   string `json:"reason,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`
}

// DecodeEvent parses and validates a wire frame. Frames with an unknown
// kind are rejected at the transport boundary rather than passed through.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Kind {
	case EventMessage, EventNotification:
		return ev, nil
	case EventConnect, EventDisconnect:
		// Synthetic kinds are generated locally, never accepted from the wire.
		return Event{}, fmt.Errorf("%w: reserved event kind %q", ErrInvalidInput, ev.Kind)
	default:
		return Event{}, fmt.Errorf("%w: unknown event kind %q", ErrInvalidInput, ev.Kind)
	}
}

// MessagePayload decodes the payload of a message event.
func (e Event) MessagePayload() (Message, error) {
	var m Message
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode message payload: %w", err)
	}
	if m.ID == "" || m.ConversationID == "" {
		return Message{}, fmt.Errorf("%w: message event missing id or conversation", ErrInvalidInput)
	}
	return m, nil
}

// NotificationPayload decodes the payload of a notification event.
func (e Event) NotificationPayload() (Notification, error) {
	var n Notification
	if err := json.Unmarshal(e.Payload, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification payload: %w", err)
	}
	if n.ID == "" {
		return Notification{}, fmt.Errorf("%w: notification event missing id", ErrInvalidInput)
	}
	return n, nil
}

// DisconnectPayload decodes the payload of a synthetic connect/disconnect
// event. An empty payload is valid and yields the zero value.
func (e Event) DisconnectPayload() DisconnectInfo {
	var info DisconnectInfo
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &info)
	}
	return info
}

// NewLocalEvent builds a synthetic event for local dispatch.
func NewLocalEvent(kind EventKind, info DisconnectInfo) Event {
	payload, _ := json.Marshal(info)
	return Event{Kind: kind, Payload: payload}
}
