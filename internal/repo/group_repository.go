package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/model"
)

// GroupRepository resolves group membership for message fan-out.
type GroupRepository interface {
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	Participants(ctx context.Context, groupID string) ([]string, error)
}

type groupRepository struct {
	mongoRepo *db.Repository[model.Group]
}

func NewGroupRepository(repo *db.Repository[model.Group]) GroupRepository {
	return &groupRepository{mongoRepo: repo}
}

func (r *groupRepository) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	group, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("group_id", groupID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group failed: %w", err)
	}
	return group, nil
}

func (r *groupRepository) Participants(ctx context.Context, groupID string) ([]string, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return group.ParticipantIDs, nil
}
