package model

// TypingPayload - inbound typing/stopTyping target
type TypingPayload struct {
	RecipientID string `json:"recipientId"`
}

// TypingEvent - outbound typing indicator
type TypingEvent struct {
	UserID string `json:"userId"`
}

// MessageStatusPayload - inbound delivery/read receipt
type MessageStatusPayload struct {
	MessageID string `json:"messageId"`
}

// MessageStatusUpdate - outbound status tick for the sender's tabs
type MessageStatusUpdate struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	ReadAt    string `json:"readAt,omitempty"`
}
