package hub

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/event"
	"github.com/ifion/MedSystem-sub000/internal/model"
)

// The call signaling relay routes opaque payloads between connections.
// It never inspects signal contents, keeps no per-call record, and
// treats any missing target as a silent skip; a late accept after the
// caller's ring window falls out the same way.

// IsCallEvent checks if an event is a call-related event
func IsCallEvent(eventType string) bool {
	switch eventType {
	case event.EventCallRequest,
		event.EventCallAccept,
		event.EventCallReject,
		event.EventCallCancel,
		event.EventJoinRoom,
		event.EventSendingSignal,
		event.EventReturningSignal,
		event.EventEndCall:
		return true
	default:
		return false
	}
}

// handleCallEvent processes call-related WebSocket events
func (h *Hub) handleCallEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventCallRequest:
		h.handleCallRequest(ev, c)
	case event.EventCallAccept:
		h.handleCallAccept(ev, c)
	case event.EventCallReject:
		h.handleCallReject(ev, c)
	case event.EventCallCancel:
		h.handleCallCancel(ev, c)
	case event.EventJoinRoom:
		h.handleJoinRoom(ev, c)
	case event.EventSendingSignal:
		h.handleSendingSignal(ev, c)
	case event.EventReturningSignal:
		h.handleReturningSignal(ev, c)
	case event.EventEndCall:
		h.handleEndCall(ev, c)
	}
}

// handleCallRequest rings every open connection of the callee. The
// initiating connection id rides along so the callee can answer that
// one tab directly instead of broadcasting to all of the caller's.
// No room membership is created yet.
func (h *Hub) handleCallRequest(ev event.WsEvent, c *Client) {
	var payload model.CallRequestPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.CalleeID == "" {
		h.logger.Warn("malformed call request", zap.String("client_id", c.ID))
		return
	}

	incoming := event.NewEvent(event.EventIncomingCall, model.IncomingCallEvent{
		CallerID:       c.UserID,
		CallerSocketID: c.ID,
		RoomID:         payload.RoomID,
		Timestamp:      time.Now().Unix(),
	})

	conns := h.registry.connectionsFor(payload.CalleeID)
	if len(conns) == 0 {
		h.logger.Info("callee has no open connections",
			zap.String("caller_id", c.UserID),
			zap.String("callee_id", payload.CalleeID),
		)
		return
	}
	for _, callee := range conns {
		if !callee.SafeSend(incoming, sendTimeout) {
			h.logger.Debug("incoming call not delivered", zap.String("target", callee.ID))
		}
	}
}

// handleCallAccept joins the accepting connection to the room and
// notifies the one caller connection recorded in the request.
func (h *Hub) handleCallAccept(ev event.WsEvent, c *Client) {
	var payload model.CallAcceptPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.CallerSocketID == "" {
		h.logger.Warn("malformed call accept", zap.String("client_id", c.ID))
		return
	}

	h.rooms.join(payload.RoomID, c)

	h.sendToConnection(payload.CallerSocketID, event.NewEvent(event.EventCallAccepted, model.CallAcceptedEvent{
		AcceptedBy: c.ID,
		UserID:     c.UserID,
		RoomID:     payload.RoomID,
		Timestamp:  time.Now().Unix(),
	}))
}

// handleCallReject notifies only the initiating caller connection; no
// room mutation happens.
func (h *Hub) handleCallReject(ev event.WsEvent, c *Client) {
	var payload model.CallRejectPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.CallerSocketID == "" {
		h.logger.Warn("malformed call reject", zap.String("client_id", c.ID))
		return
	}

	h.sendToConnection(payload.CallerSocketID, event.NewEvent(event.EventCallRejected, model.CallRejectedEvent{
		RejectedBy: c.UserID,
		Reason:     payload.Reason,
		Timestamp:  time.Now().Unix(),
	}))
}

// handleCallCancel reaches every callee connection; the caller may bail
// before the callee picked a tab to answer from.
func (h *Hub) handleCallCancel(ev event.WsEvent, c *Client) {
	var payload model.CallCancelPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.CalleeID == "" {
		h.logger.Warn("malformed call cancel", zap.String("client_id", c.ID))
		return
	}

	h.NotifyUser(payload.CalleeID, event.NewEvent(event.EventCallCanceled, model.CallCanceledEvent{
		CanceledBy: c.UserID,
		Timestamp:  time.Now().Unix(),
	}))
}

// handleJoinRoom adds the connection to the room and answers with the
// members already there, so each joiner can open a signaling exchange
// with every existing member (full mesh).
func (h *Hub) handleJoinRoom(ev event.WsEvent, c *Client) {
	var payload model.JoinRoomPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.RoomID == "" {
		h.logger.Warn("malformed room join", zap.String("client_id", c.ID))
		return
	}

	others := h.rooms.join(payload.RoomID, c)

	ids := make([]string, 0, len(others))
	for _, m := range others {
		ids = append(ids, m.ID)
	}

	c.SafeSend(event.NewEvent(event.EventAllUsers, model.AllUsersEvent{
		RoomID: payload.RoomID,
		Users:  ids,
	}), sendTimeout)
}

// handleSendingSignal forwards a joiner's offer verbatim.
func (h *Hub) handleSendingSignal(ev event.WsEvent, c *Client) {
	var payload model.SendingSignalPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.UserToSignal == "" {
		h.logger.Warn("malformed signal", zap.String("client_id", c.ID))
		return
	}

	callerID := payload.CallerID
	if callerID == "" {
		callerID = c.ID
	}

	h.sendToConnection(payload.UserToSignal, event.NewEvent(event.EventUserJoined, model.UserJoinedEvent{
		CallerID: callerID,
		Signal:   payload.Signal,
	}))
}

// handleReturningSignal forwards the answer back to the joiner.
func (h *Hub) handleReturningSignal(ev event.WsEvent, c *Client) {
	var payload model.ReturningSignalPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.CallerID == "" {
		h.logger.Warn("malformed returned signal", zap.String("client_id", c.ID))
		return
	}

	h.sendToConnection(payload.CallerID, event.NewEvent(event.EventReturnedSignal, model.ReturnedSignalEvent{
		ID:     c.ID,
		Signal: payload.Signal,
	}))
}

// handleEndCall broadcasts call_ended to the whole room, then deletes
// the room entry.
func (h *Hub) handleEndCall(ev event.WsEvent, c *Client) {
	var payload model.EndCallPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.RoomID == "" {
		h.logger.Warn("malformed end call", zap.String("client_id", c.ID))
		return
	}

	ended := event.NewEvent(event.EventCallEnded, model.CallEndedEvent{
		RoomID:    payload.RoomID,
		EndedBy:   c.ID,
		Timestamp: time.Now().Unix(),
	})

	for _, m := range h.rooms.drop(payload.RoomID) {
		if !m.SafeSend(ended, sendTimeout) {
			h.logger.Debug("call_ended not delivered", zap.String("target", m.ID))
		}
	}
}
