package hub

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/event"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
	"github.com/ifion/MedSystem-sub000/internal/service"
)

// handleTyping relays a typing indicator to the peer's connections.
func (h *Hub) handleTyping(ev event.WsEvent, c *Client, stopped bool) {
	var payload model.TypingPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.RecipientID == "" {
		h.sendChatError(c, "invalid_payload", "typing event requires a recipientId", nil)
		return
	}

	name := event.EventUserTyping
	if stopped {
		name = event.EventUserStoppedTyping
	}
	h.NotifyUser(payload.RecipientID, event.NewEvent(name, model.TypingEvent{UserID: c.UserID}))
}

// handleSendMessage persists through the delivery engine, echoes the
// stored record to the sender's tabs, then announces it to the target.
// Persistence and announcement are deliberately separate steps; the
// engine never fans out on its own.
func (h *Hub) handleSendMessage(ev event.WsEvent, c *Client) {
	var in model.SendMessageInput
	if err := json.Unmarshal(ev.Payload, &in); err != nil {
		h.sendChatError(c, "invalid_payload", "failed to parse sendMessage payload", nil)
		return
	}

	msg, err := h.messages.Send(h.ctx, c.UserID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			h.sendChatError(c, "validation_error", err.Error(), nil)
		default:
			// Transient persistence failure: the sender sees a
			// failed-status echo it can retry from; the connection
			// itself stays up.
			h.logger.Error("send persistence failed", zap.String("user_id", c.UserID), zap.Error(err))
			h.sendChatError(c, "send_failed", "message could not be stored", failedEcho(c.UserID, in))
		}
		return
	}

	h.NotifyUser(c.UserID, event.NewEvent(event.EventMessageSent, msg))

	newMsg := event.NewEvent(event.EventNewMessage, msg)
	if msg.RecipientID != nil {
		h.NotifyUser(*msg.RecipientID, newMsg)
		return
	}

	participants, err := h.groups.Participants(h.ctx, *msg.GroupID)
	if err != nil {
		h.logger.Error("group fan-out failed",
			zap.String("group_id", *msg.GroupID),
			zap.Error(err),
		)
		return
	}
	for _, userID := range participants {
		if userID == c.UserID {
			continue
		}
		h.NotifyUser(userID, newMsg)
	}
}

// handleReceipt applies a delivery or read receipt. The engine's guard
// makes duplicates and out-of-order receipts forward-idempotent, so the
// only errors surfaced back are unknown message ids.
func (h *Hub) handleReceipt(ev event.WsEvent, c *Client, read bool) {
	var payload model.MessageStatusPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.MessageID == "" {
		h.sendChatError(c, "invalid_payload", "receipt requires a messageId", nil)
		return
	}

	var err error
	if read {
		_, err = h.messages.MarkRead(h.ctx, payload.MessageID)
	} else {
		_, err = h.messages.MarkDelivered(h.ctx, payload.MessageID)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			h.sendChatError(c, "not_found", "unknown message id", nil)
			return
		}
		h.logger.Error("receipt failed",
			zap.String("message_id", payload.MessageID),
			zap.Bool("read", read),
			zap.Error(err),
		)
	}
}

func (h *Hub) sendChatError(c *Client, code, message string, echo *model.Message) {
	payload := model.ErrorPayload{Code: code, Message: message, Echo: echo}
	c.SafeSend(event.NewEvent(event.EventMessageError, payload), sendTimeout)
}

// failedEcho builds the client-visible failed rendition of a send whose
// persistence step did not survive. Never stored.
func failedEcho(senderID string, in model.SendMessageInput) *model.Message {
	return &model.Message{
		ClientID:       in.ClientID,
		SenderID:       senderID,
		RecipientID:    in.RecipientID,
		GroupID:        in.GroupID,
		Content:        in.Content,
		MediaURL:       in.MediaURL,
		Sticker:        in.Sticker,
		Emoji:          in.Emoji,
		Status:         model.StatusFailed,
		DisappearAfter: in.DisappearAfter,
		CreatedAt:      time.Now(),
	}
}
