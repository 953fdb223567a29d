package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/model"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidMessage   = errors.New("invalid message: message cannot be nil")
	ErrOperationTimeout = errors.New("operation timeout exceeded")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Retry configuration for transient Mongo failures
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 50
)

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

// MessageRepository is the durable Message Store. TransitionStatus and
// ResetForRetry are conditional single-document updates, so the delivery
// state machine's guards hold under concurrent receipts.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByClientID(ctx context.Context, senderID, clientID string) (*model.Message, error)
	History(ctx context.Context, userID, peerID string, page int64) (*db.PaginatedResult[model.Message], error)
	TransitionStatus(ctx context.Context, id string, from []string, to string, readAt *time.Time) (bool, error)
	ResetForRetry(ctx context.Context, id string) (bool, error)
	SetContent(ctx context.Context, id, content string) error
	SetDeleted(ctx context.Context, id string, deleted bool, at *time.Time) error
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
				msg.ID = oid
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("sender_id", msg.SenderID),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err

		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("sender_id", msg.SenderID),
	)

	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

func (m *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
			return nil, ErrNotFound
		}
		return nil, m.handleReadError(err, id)
	}
	return msg, nil
}

// FindByClientID resolves the client-generated idempotency token. A send
// replayed with the same token returns the already persisted record.
func (m *messageRepository) FindByClientID(ctx context.Context, senderID, clientID string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("sender_id", senderID).Eq("client_id", clientID).Build()
	msg, err := m.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, m.handleReadError(err, clientID)
	}
	return msg, nil
}

// History returns the two-party conversation ascending by creation time.
func (m *messageRepository) History(ctx context.Context, userID, peerID string, page int64) (*db.PaginatedResult[model.Message], error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		bson.M{"sender_id": userID, "recipient_id": peerID},
		bson.M{"sender_id": peerID, "recipient_id": userID},
	).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying history query",
				zap.String("peer_id", peerID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: historyPageSize,
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			m.logger.Debug("history retrieved",
				zap.String("user_id", userID),
				zap.String("peer_id", peerID),
				zap.Int("count", len(result.Data)),
				zap.Int64("total", result.Total),
			)
			return result, nil
		}

		lastErr = err
		if !m.isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, peerID)
}

// -----------------------------------------------------------------------------
// Guarded state transitions
// -----------------------------------------------------------------------------

// TransitionStatus moves a message from one of the `from` statuses to
// `to` in a single conditional update. Returns false when the guard did
// not match, which callers treat as "someone got there first".
func (m *messageRepository) TransitionStatus(ctx context.Context, id string, from []string, to string, readAt *time.Time) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrNotFound
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{"status": to}
	if readAt != nil {
		set["read_at"] = *readAt
	}
	filter := db.NewFilter().Eq("_id", objectID).In("status", from).Build()

	modified, err := m.mongoRepo.UpdateWhere(ctx, filter, bson.M{"$set": set})
	if err != nil {
		m.logger.Error("status transition failed",
			zap.Error(err),
			zap.String("message_id", id),
			zap.String("to", to),
		)
		return false, fmt.Errorf("transition status failed: %w", err)
	}
	return modified > 0, nil
}

// ResetForRetry flips a failed message back to sent and bumps the retry
// counter atomically with the status guard.
func (m *messageRepository) ResetForRetry(ctx context.Context, id string) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrNotFound
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", objectID).Eq("status", model.StatusFailed).Build()
	update := bson.M{
		"$set": bson.M{"status": model.StatusSent},
		"$inc": bson.M{"retry_count": 1},
	}

	modified, err := m.mongoRepo.UpdateWhere(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("reset for retry failed: %w", err)
	}
	return modified > 0, nil
}

// -----------------------------------------------------------------------------
// Sender-owned mutations
// -----------------------------------------------------------------------------

func (m *messageRepository) SetContent(ctx context.Context, id, content string) error {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := m.mongoRepo.UpdateByID(ctx, id, bson.M{"content": content, "is_edited": true})
	if err != nil {
		if errors.Is(err, primitive.ErrInvalidHex) {
			return ErrNotFound
		}
		return fmt.Errorf("set content failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *messageRepository) SetDeleted(ctx context.Context, id string, deleted bool, at *time.Time) error {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	update := bson.M{"is_deleted": deleted}
	if deleted {
		update["deleted_at"] = at
	} else {
		update["deleted_at"] = nil
	}

	res, err := m.mongoRepo.UpdateByID(ctx, id, update)
	if err != nil {
		if errors.Is(err, primitive.ErrInvalidHex) {
			return ErrNotFound
		}
		return fmt.Errorf("set deleted failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	return false
}

func (m *messageRepository) handleReadError(err error, key string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("key", key))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("key", key))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("key", key))
	return fmt.Errorf("message read failed: %w", err)
}
