package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. The account itself is
// owned by the auth collaborator; this service only flips IsOnline as a
// side effect of presence changes.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	Username  string             `json:"username" bson:"username"`
	Email     string             `json:"email" bson:"email"`
	FirstName string             `json:"firstName" bson:"first_name"`
	LastName  string             `json:"lastName" bson:"last_name"`
	Avatar    string             `json:"avatar" bson:"avatar"`
	Role      string             `json:"role" bson:"role"` // "doctor" or "patient"
	IsOnline  bool               `json:"isOnline" bson:"is_online"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// DisplayName joins the name fields the way the clients render them.
func (u *User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	return u.FirstName + " " + u.LastName
}

// UserStatusChange is the presence broadcast payload.
type UserStatusChange struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}
