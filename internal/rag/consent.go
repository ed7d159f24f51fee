package rag

import (
	"context"
	"time"
)

// Role of the actor asking a question.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Permission a patient can grant. Retrieval requires a READ grant; WRITE and
// SHARE cover other surfaces and do not imply READ.
type Permission string

const (
	PermissionRead  Permission = "READ"
	PermissionWrite Permission = "WRITE"
	PermissionShare Permission = "SHARE"
)

// ConsentRecord is one grant from a patient to a doctor.
type ConsentRecord struct {
	PatientID  string
	DoctorID   string
	Permission Permission
	ValidFrom  time.Time
	ValidTo    time.Time
	Revoked    bool
}

// grantsRead reports whether the record carries the READ permission.
func (r ConsentRecord) grantsRead() bool {
	return r.Permission == PermissionRead
}

// ConsentSource answers ownership and consent lookups. Doctor assignments
// are deliberately absent: being assigned to a patient grants nothing.
type ConsentSource interface {
	// OwnerOf returns the patient ID owning the report, or an error wrapping
	// ErrIndexMissing semantics if the report does not exist.
	OwnerOf(ctx context.Context, reportID string) (string, error)
	// ConsentsFor returns every non-revoked consent record the patient has
	// granted to the doctor, regardless of validity window.
	ConsentsFor(ctx context.Context, patientID, doctorID string) ([]ConsentRecord, error)
}

// ConsentGate decides whether an actor may query a report.
type ConsentGate struct {
	source ConsentSource
	now    func() time.Time
}

func NewConsentGate(source ConsentSource) *ConsentGate {
	return &ConsentGate{source: source, now: time.Now}
}

// Authorize allows patients to query their own reports and doctors holding a
// currently valid consent from the owner. Every other combination is denied.
// Denials carry an internal clause for audit logging; callers see one shape.
func (g *ConsentGate) Authorize(ctx context.Context, actorID string, role Role, reportID string) error {
	ownerID, err := g.source.OwnerOf(ctx, reportID)
	if err != nil {
		return err
	}

	switch role {
	case RolePatient:
		if actorID == ownerID {
			return nil
		}
		return ErrNotOwner()
	case RoleDoctor:
		return g.authorizeDoctor(ctx, actorID, ownerID)
	default:
		return ErrConsentDenied(ClauseNoActiveConsent)
	}
}

func (g *ConsentGate) authorizeDoctor(ctx context.Context, doctorID, patientID string) error {
	records, err := g.source.ConsentsFor(ctx, patientID, doctorID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return ErrConsentDenied(ClauseNoActiveConsent)
	}

	now := g.now()
	sawExpired := false
	sawInsufficient := false
	for _, rec := range records {
		inWindow := !now.Before(rec.ValidFrom) && !now.After(rec.ValidTo)
		if !inWindow {
			sawExpired = true
			continue
		}
		if !rec.grantsRead() {
			sawInsufficient = true
			continue
		}
		return nil
	}

	// the clause reflects the closest miss: a current grant at the wrong
	// level beats a stale one for explaining the denial
	if sawInsufficient {
		return ErrConsentDenied(ClausePermissionNotGranted)
	}
	if sawExpired {
		return ErrConsentDenied(ClauseConsentExpired)
	}
	return ErrConsentDenied(ClauseNoActiveConsent)
}
