package model

import "encoding/json"

// The relay never looks inside a signaling payload; offers, answers and
// ICE candidates all travel as raw JSON.

// -----------------------------------------------------------------
// WebSocket Event Payloads - Client to Server
// -----------------------------------------------------------------

// CallRequestPayload is sent by the caller to ring a callee.
type CallRequestPayload struct {
	CalleeID string `json:"calleeId"`
	RoomID   string `json:"roomId"`
}

// CallAcceptPayload is sent by the callee to accept. CallerSocketID is
// the initiating connection recorded from the incoming-call event, so
// the acceptance targets that one tab rather than every caller device.
type CallAcceptPayload struct {
	CallerSocketID string `json:"callerSocketId"`
	RoomID         string `json:"roomId"`
}

// CallRejectPayload is sent by the callee to reject.
type CallRejectPayload struct {
	CallerSocketID string `json:"callerSocketId"`
	Reason         string `json:"reason,omitempty"`
}

// CallCancelPayload is sent by the caller before any tab answered.
type CallCancelPayload struct {
	CalleeID string `json:"calleeId"`
}

// JoinRoomPayload adds the connection to a signaling room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// SendingSignalPayload carries a joiner's offer to one existing member.
type SendingSignalPayload struct {
	UserToSignal string          `json:"userToSignal"` // target connection id
	CallerID     string          `json:"callerId"`     // joiner's connection id
	Signal       json.RawMessage `json:"signal"`
}

// ReturningSignalPayload carries the answer back to the joiner.
type ReturningSignalPayload struct {
	CallerID string          `json:"callerId"` // joiner's connection id
	Signal   json.RawMessage `json:"signal"`
}

// EndCallPayload ends the call for everyone in the room.
type EndCallPayload struct {
	RoomID string `json:"roomId"`
}

// -----------------------------------------------------------------
// WebSocket Event Payloads - Server to Client
// -----------------------------------------------------------------

// IncomingCallEvent rings every connection of the callee.
type IncomingCallEvent struct {
	CallerID       string `json:"callerId"`
	CallerSocketID string `json:"callerSocketId"`
	RoomID         string `json:"roomId"`
	Timestamp      int64  `json:"timestamp"`
}

// CallAcceptedEvent is sent to the one initiating caller connection.
type CallAcceptedEvent struct {
	AcceptedBy string `json:"acceptedBy"` // accepting connection id
	UserID     string `json:"userId"`     // accepting user id
	RoomID     string `json:"roomId"`
	Timestamp  int64  `json:"timestamp"`
}

// CallRejectedEvent is sent to the one initiating caller connection.
type CallRejectedEvent struct {
	RejectedBy string `json:"rejectedBy"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// CallCanceledEvent is sent to every callee connection.
type CallCanceledEvent struct {
	CanceledBy string `json:"canceledBy"`
	Timestamp  int64  `json:"timestamp"`
}

// AllUsersEvent answers a room join with the other member connections.
type AllUsersEvent struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

// UserJoinedEvent forwards a joiner's offer signal verbatim.
type UserJoinedEvent struct {
	CallerID string          `json:"callerId"`
	Signal   json.RawMessage `json:"signal"`
}

// ReturnedSignalEvent forwards an answer signal back to the joiner.
type ReturnedSignalEvent struct {
	ID     string          `json:"id"` // answering connection id
	Signal json.RawMessage `json:"signal"`
}

// CallEndedEvent is broadcast to the room before it is deleted.
type CallEndedEvent struct {
	RoomID    string `json:"roomId"`
	EndedBy   string `json:"endedBy"`
	Timestamp int64  `json:"timestamp"`
}

// UserLeftEvent is sent to remaining members so they can tear down the
// departed peer's link.
type UserLeftEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"` // departed connection id
}
