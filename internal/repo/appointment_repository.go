package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/model"
)

// AppointmentRepository is the chat-gate collaborator: the surrounding
// application owns appointment CRUD, this layer only answers whether two
// identities may chat today.
type AppointmentRepository interface {
	HasConfirmedToday(ctx context.Context, userA, userB string, now time.Time) (bool, error)
}

type appointmentRepository struct {
	mongoRepo *db.Repository[model.Appointment]
}

func NewAppointmentRepository(repo *db.Repository[model.Appointment]) AppointmentRepository {
	return &appointmentRepository{mongoRepo: repo}
}

func (r *appointmentRepository) HasConfirmedToday(ctx context.Context, userA, userB string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	filter := db.NewFilter().
		Eq("status", model.AppointmentConfirmed).
		Between("date", dayStart, dayEnd).
		Or(
			bson.M{"doctor_id": userA, "patient_id": userB},
			bson.M{"doctor_id": userB, "patient_id": userA},
		).Build()

	ok, err := r.mongoRepo.Exists(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("appointment gate check failed: %w", err)
	}
	return ok, nil
}
