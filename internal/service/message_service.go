package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/event"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
)

var (
	// ErrValidation is the base class for malformed send payloads.
	ErrValidation = errors.New("validation failed")

	ErrMissingTarget = fmt.Errorf("%w: exactly one of recipientId or groupId is required", ErrValidation)
	ErrMissingBody   = fmt.Errorf("%w: message requires content, media, sticker or emoji", ErrValidation)
	ErrBadReplyTo    = fmt.Errorf("%w: replyTo is not a valid message id", ErrValidation)
	ErrEmptyContent  = fmt.Errorf("%w: edited content cannot be empty", ErrValidation)

	ErrNotAuthorized = errors.New("not authorized: only the sender may modify a message")
	ErrNotFailed     = errors.New("only failed messages can be retried")
)

// Notifier fans an event out to every open connection of one user. The
// hub provides it; a closed or missing connection is absorbed there.
type Notifier interface {
	NotifyUser(userID string, ev event.WsEvent)
}

// MessageService is the message delivery engine: it owns every
// state-machine transition on the Message Store and pushes status ticks
// back at the sender's connections. It does not fan new messages out to
// recipients; announcing a persisted message over the wire is the
// caller's job.
type MessageService interface {
	Send(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error)
	History(ctx context.Context, userID, peerID string, page int64) ([]model.Message, error)
	MarkDelivered(ctx context.Context, messageID string) (*model.Message, error)
	MarkRead(ctx context.Context, messageID string) (*model.Message, error)
	Retry(ctx context.Context, messageID, requesterID string) (*model.Message, error)
	Edit(ctx context.Context, messageID, requesterID, content string) (*model.Message, error)
	SoftDelete(ctx context.Context, messageID, requesterID string) (*model.Message, error)
	UndoDelete(ctx context.Context, messageID, requesterID string) (*model.Message, error)
	SetNotifier(n Notifier)
}

type messageService struct {
	messages repo.MessageRepository
	users    repo.UserRepository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewMessageService(messages repo.MessageRepository, users repo.UserRepository, logger *zap.Logger) MessageService {
	return &messageService{
		messages: messages,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotifier wires the hub in after construction; the hub itself needs
// the service, so the reference arrives late.
func (s *messageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// -----------------------------------------------------------------------------
// Send
// -----------------------------------------------------------------------------

func (s *messageService) Send(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error) {
	if !in.HasTarget() {
		return nil, ErrMissingTarget
	}
	if !in.HasBody() {
		return nil, ErrMissingBody
	}

	// A replayed idempotency token returns the already-stored record.
	if in.ClientID != "" {
		existing, err := s.messages.FindByClientID(ctx, senderID, in.ClientID)
		if err == nil {
			s.logger.Debug("send replayed, returning stored message",
				zap.String("client_id", in.ClientID),
				zap.String("message_id", existing.ID.Hex()),
			)
			return s.resolve(ctx, existing), nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	msg := &model.Message{
		ClientID:       in.ClientID,
		SenderID:       senderID,
		RecipientID:    in.RecipientID,
		GroupID:        in.GroupID,
		Content:        in.Content,
		MediaURL:       in.MediaURL,
		Sticker:        in.Sticker,
		Emoji:          in.Emoji,
		Status:         model.StatusSent,
		DisappearAfter: in.DisappearAfter,
		CreatedAt:      s.now(),
	}

	if in.ReplyTo != nil && *in.ReplyTo != "" {
		oid, err := primitive.ObjectIDFromHex(*in.ReplyTo)
		if err != nil {
			return nil, ErrBadReplyTo
		}
		msg.ReplyTo = &oid
	}

	if _, err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	return s.resolve(ctx, msg), nil
}

// History returns the two-party conversation ascending, with expired
// disappearing messages dropped.
func (s *messageService) History(ctx context.Context, userID, peerID string, page int64) ([]model.Message, error) {
	result, err := s.messages.History(ctx, userID, peerID, page)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msgs := make([]model.Message, 0, len(result.Data))
	for _, m := range result.Data {
		if m.Expired(now) {
			continue
		}
		msgs = append(msgs, *s.resolve(ctx, &m))
	}
	return msgs, nil
}

// -----------------------------------------------------------------------------
// Guarded status transitions
// -----------------------------------------------------------------------------

// MarkDelivered applies sent -> delivered. A receipt arriving after the
// message is already delivered or read is a forward-idempotent no-op.
func (s *messageService) MarkDelivered(ctx context.Context, messageID string) (*model.Message, error) {
	return s.transition(ctx, messageID, []string{model.StatusSent}, model.StatusDelivered, nil)
}

// MarkRead accepts the read receipt from either sent or delivered; a
// client may mark read without an intervening delivered event.
func (s *messageService) MarkRead(ctx context.Context, messageID string) (*model.Message, error) {
	readAt := s.now()
	return s.transition(ctx, messageID, []string{model.StatusSent, model.StatusDelivered}, model.StatusRead, &readAt)
}

func (s *messageService) transition(ctx context.Context, messageID string, from []string, to string, readAt *time.Time) (*model.Message, error) {
	moved, err := s.messages.TransitionStatus(ctx, messageID, from, to, readAt)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		return nil, err
	}

	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if !moved {
		// Guard did not match: the message is already at or past `to`.
		s.logger.Debug("status transition skipped",
			zap.String("message_id", messageID),
			zap.String("status", msg.Status),
			zap.String("requested", to),
		)
		return msg, nil
	}

	s.notifyStatus(msg)
	return msg, nil
}

// Retry is the user-driven recovery path for a failed send. Sender-only;
// the reset and the counter bump are one atomic store operation.
func (s *messageService) Retry(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	reset, err := s.messages.ResetForRetry(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !reset {
		return nil, ErrNotFailed
	}

	msg, err = s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.notifyStatus(msg)
	return msg, nil
}

// -----------------------------------------------------------------------------
// Sender-owned mutations
// -----------------------------------------------------------------------------

func (s *messageService) Edit(ctx context.Context, messageID, requesterID, content string) (*model.Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.SetContent(ctx, messageID, content); err != nil {
		return nil, err
	}

	msg.Content = content
	msg.IsEdited = true
	return s.resolve(ctx, msg), nil
}

func (s *messageService) SoftDelete(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	deletedAt := s.now()
	if err := s.messages.SetDeleted(ctx, messageID, true, &deletedAt); err != nil {
		return nil, err
	}

	msg.IsDeleted = true
	msg.DeletedAt = &deletedAt
	return msg, nil
}

func (s *messageService) UndoDelete(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.SetDeleted(ctx, messageID, false, nil); err != nil {
		return nil, err
	}

	msg.IsDeleted = false
	msg.DeletedAt = nil
	return msg, nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (s *messageService) ownedMessage(ctx context.Context, messageID, requesterID string) (*model.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrNotAuthorized
	}
	return msg, nil
}

// resolve attaches denormalized sender display fields. Best-effort: a
// user-store miss only costs the display strings.
func (s *messageService) resolve(ctx context.Context, msg *model.Message) *model.Message {
	user, err := s.users.GetUser(ctx, msg.SenderID)
	if err != nil {
		s.logger.Debug("sender lookup failed", zap.String("sender_id", msg.SenderID), zap.Error(err))
		return msg
	}
	msg.SenderName = user.DisplayName()
	msg.SenderAvatar = user.Avatar
	return msg
}

func (s *messageService) notifyStatus(msg *model.Message) {
	if s.notifier == nil {
		return
	}

	update := model.MessageStatusUpdate{
		MessageID: msg.ID.Hex(),
		Status:    msg.Status,
	}
	if msg.ReadAt != nil {
		update.ReadAt = msg.ReadAt.UTC().Format(time.RFC3339)
	}

	// Delivery ticks go to the sender's tabs; the sender is the party
	// tracking them.
	s.notifier.NotifyUser(msg.SenderID, event.NewEvent(event.EventMessageStatusUpdate, update))
}
