package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group represents a multi-party conversation in MongoDB. Membership is
// managed by the surrounding application; the real-time layer only reads
// participant ids to fan group messages out.
type Group struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	GroupID        string             `json:"groupId" bson:"group_id"`
	Name           string             `json:"name" bson:"name"`
	Avatar         string             `json:"avatar" bson:"avatar"`
	ParticipantIDs []string           `json:"participantIds" bson:"participant_ids"`
	CreatedBy      string             `json:"createdBy" bson:"created_by"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
	IsActive       bool               `json:"isActive" bson:"is_active"`
}
