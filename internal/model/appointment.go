package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment status values used by the chat gate. The appointment CRUD
// surface lives in the surrounding application.
const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Appointment is the slice of the appointments collection the chat gate
// reads: chat between two identities is permitted only while a confirmed
// appointment between them exists dated today.
type Appointment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DoctorID  string             `json:"doctorId" bson:"doctor_id"`
	PatientID string             `json:"patientId" bson:"patient_id"`
	Date      time.Time          `json:"date" bson:"date"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}
