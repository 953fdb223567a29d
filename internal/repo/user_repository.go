package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/model"
)

// UserRepository exposes the slice of the users collection the real-time
// layer touches: lookups for denormalized display fields and the durable
// online flag.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	SetOnline(ctx context.Context, userID string, online bool) error
	MarkAllOffline(ctx context.Context) (int64, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *userRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", id).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return user, nil
}

func (r *userRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	_, err := r.mongoRepo.UpdateMany(ctx,
		db.NewFilter().Eq("user_id", userID).Build(),
		bson.M{"is_online": online, "updated_at": now},
	)
	if err != nil {
		return fmt.Errorf("set online flag failed: %w", err)
	}
	return nil
}

// MarkAllOffline clears every persisted online flag. Runs once at boot so
// no user stays "online" from a crashed previous run.
func (r *userRepository) MarkAllOffline(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := r.mongoRepo.UpdateMany(ctx,
		db.NewFilter().Eq("is_online", true).Build(),
		bson.M{"is_online": false},
	)
	if err != nil {
		return 0, fmt.Errorf("presence sweep failed: %w", err)
	}

	if res.ModifiedCount > 0 {
		r.logger.Info("cleared stale online flags", zap.Int64("count", res.ModifiedCount))
	}
	return res.ModifiedCount, nil
}
