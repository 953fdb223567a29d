package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery status values. Transitions only ever move forward through
// sent -> delivered -> read; failed is the client-visible dead end that
// a retry resets back to sent.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// Message represents a chat message document in MongoDB. Exactly one of
// RecipientID/GroupID is set; at least one of Content, MediaURL, Sticker
// or Emoji is present. The record is soft-deleted only, never removed.
type Message struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ClientID       string              `json:"clientId" bson:"client_id"`
	SenderID       string              `json:"senderId" bson:"sender_id"`
	RecipientID    *string             `json:"recipientId,omitempty" bson:"recipient_id,omitempty"`
	GroupID        *string             `json:"groupId,omitempty" bson:"group_id,omitempty"`
	Content        string              `json:"content,omitempty" bson:"content,omitempty"`
	MediaURL       *string             `json:"mediaUrl,omitempty" bson:"media_url,omitempty"`
	Sticker        *string             `json:"sticker,omitempty" bson:"sticker,omitempty"`
	Emoji          *string             `json:"emoji,omitempty" bson:"emoji,omitempty"`
	ReplyTo        *primitive.ObjectID `json:"replyTo,omitempty" bson:"reply_to,omitempty"`
	Status         string              `json:"status" bson:"status"`
	IsEdited       bool                `json:"isEdited" bson:"is_edited"`
	IsDeleted      bool                `json:"isDeleted" bson:"is_deleted"`
	DeletedAt      *time.Time          `json:"deletedAt,omitempty" bson:"deleted_at,omitempty"`
	ReadAt         *time.Time          `json:"readAt,omitempty" bson:"read_at,omitempty"`
	RetryCount     int                 `json:"retryCount" bson:"retry_count"`
	DisappearAfter int64               `json:"disappearAfter" bson:"disappear_after"` // seconds, 0 = never
	CreatedAt      time.Time           `json:"createdAt" bson:"created_at"`

	// Denormalized display fields, resolved at read time and never stored.
	SenderName   string `json:"senderName,omitempty" bson:"-"`
	SenderAvatar string `json:"senderAvatar,omitempty" bson:"-"`
}

// Expired reports whether a disappearing message has passed its window.
func (m *Message) Expired(now time.Time) bool {
	if m.DisappearAfter <= 0 {
		return false
	}
	return now.After(m.CreatedAt.Add(time.Duration(m.DisappearAfter) * time.Second))
}

// SendMessageInput is the payload for creating a message, over REST or
// the socket.
type SendMessageInput struct {
	RecipientID    *string `json:"recipientId,omitempty"`
	GroupID        *string `json:"groupId,omitempty"`
	Content        string  `json:"content,omitempty"`
	MediaURL       *string `json:"mediaUrl,omitempty"`
	Sticker        *string `json:"sticker,omitempty"`
	Emoji          *string `json:"emoji,omitempty"`
	ReplyTo        *string `json:"replyTo,omitempty"`
	ClientID       string  `json:"clientId"`
	DisappearAfter int64   `json:"disappearAfter,omitempty"`
}

// HasTarget reports whether exactly one of recipient/group is set.
func (in *SendMessageInput) HasTarget() bool {
	hasRecipient := in.RecipientID != nil && *in.RecipientID != ""
	hasGroup := in.GroupID != nil && *in.GroupID != ""
	return hasRecipient != hasGroup
}

// HasBody reports whether at least one content form is present.
func (in *SendMessageInput) HasBody() bool {
	if in.Content != "" {
		return true
	}
	if in.MediaURL != nil && *in.MediaURL != "" {
		return true
	}
	if in.Sticker != nil && *in.Sticker != "" {
		return true
	}
	return in.Emoji != nil && *in.Emoji != ""
}

// ErrorPayload is the machine-readable rejection sent over the socket.
type ErrorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Echo    *Message `json:"echo,omitempty"`
}
