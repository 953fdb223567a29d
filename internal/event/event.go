package event

import "encoding/json"

// Chat Event Types - Client to Server
const (
	EventTyping           = "typing"
	EventStopTyping       = "stopTyping"
	EventSendMessage      = "sendMessage"
	EventMessageDelivered = "messageDelivered"
	EventMessageRead      = "messageRead"
)

// Chat Event Types - Server to Client
const (
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"

	// EventNewMessage - delivered to the recipient's connections
	EventNewMessage = "newMessage"

	// EventMessageSent - echo of a persisted message to the sender's own connections
	EventMessageSent = "messageSent"

	// EventMessageStatusUpdate - delivery/read tick for the sender
	EventMessageStatusUpdate = "messageStatusUpdate"

	// EventUserStatusChange - online/offline presence broadcast
	EventUserStatusChange = "userStatusChange"

	// EventMessageError - synchronous rejection of an inbound chat event
	EventMessageError = "messageError"
)

// WsEvent is the wire envelope for everything exchanged over the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent wraps v in a WsEvent envelope. The payload structs marshalled
// here cannot fail, so the error is dropped the way the handlers drop it.
func NewEvent(name string, v any) WsEvent {
	payload, _ := json.Marshal(v)
	return WsEvent{Event: name, Payload: payload}
}
