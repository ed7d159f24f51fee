package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Consent is one patient-to-doctor grant. Access decisions consider only
// non-revoked grants whose validity window contains the current instant.
type Consent struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID  string             `bson:"patient_id" json:"patient_id"`
	DoctorID   string             `bson:"doctor_id" json:"doctor_id"`
	Permission string             `bson:"permission" json:"permission"` // READ, WRITE, SHARE
	ValidFrom  time.Time          `bson:"valid_from" json:"valid_from"`
	ValidTo    time.Time          `bson:"valid_to" json:"valid_to"`
	Revoked    bool               `bson:"revoked" json:"revoked"`
	RevokedAt  *time.Time         `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// Assignment links a doctor to a patient for care coordination. It carries
// no access rights; only consent grants those.
type Assignment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID string             `bson:"patient_id" json:"patient_id"`
	DoctorID  string             `bson:"doctor_id" json:"doctor_id"`
	Ward      string             `bson:"ward,omitempty" json:"ward,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
