package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// GetOfferByID loads an offer with its availability windows.
	GetOfferByID(ctx context.Context, id uuid.UUID) (*TreatmentOffer, error)
	CreateOffer(ctx context.Context, offer *TreatmentOffer) error
	// UpdateOffer replaces the offer's mutable fields and its full window set.
	UpdateOffer(ctx context.Context, offer *TreatmentOffer) error
	DeleteOffer(ctx context.Context, id uuid.UUID) error

	// CountConsumedCases counts OPEN and CLOSED cases against a
	// (practitioner, treatment) pair; CANCELLED cases do not consume quota.
	CountConsumedCases(ctx context.Context, practitionerID, treatmentID uuid.UUID) (int, error)
	// CountScheduledAppointments counts SCHEDULED appointments for the pair,
	// used to gate offer deletion.
	CountScheduledAppointments(ctx context.Context, practitionerID, treatmentID uuid.UUID) (int, error)

	// ListPractitionerDayAppointments returns the practitioner's
	// non-cancelled appointments whose span intersects [dayStart, dayEnd).
	ListPractitionerDayAppointments(ctx context.Context, practitionerID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error)

	// PatientHasOverlap / PractitionerHasOverlap report whether the party
	// holds any non-cancelled appointment overlapping [start, end).
	PatientHasOverlap(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error)
	PractitionerHasOverlap(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (bool, error)

	// GetOpenCase finds the OPEN case for the triple, ErrCaseNotFound when
	// there is none.
	GetOpenCase(ctx context.Context, patientID, practitionerID, treatmentID uuid.UUID) (*ClinicalCase, error)
	// GetCaseByID loads a case hydrated with its appointments and notes.
	GetCaseByID(ctx context.Context, id uuid.UUID) (*ClinicalCase, error)

	// CreateBooking persists the case (inserted when new) and its new
	// appointment in one transaction. A unique-index conflict on the
	// appointment surfaces as ErrPatientDoubleBooked or
	// ErrPractitionerDoubleBooked.
	CreateBooking(ctx context.Context, c *ClinicalCase, appt *Appointment, caseIsNew bool) error

	// UpdateCaseStatus is a compare-and-set; when no row matches (id, from)
	// it returns ErrCaseNotOpen.
	UpdateCaseStatus(ctx context.Context, id uuid.UUID, from, to CaseStatus) (*ClinicalCase, error)
	// CancelCaseAppointments cancels every still SCHEDULED appointment of a
	// case, returning how many were touched.
	CancelCaseAppointments(ctx context.Context, caseID uuid.UUID) (int, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateAppointmentStatus is a compare-and-set; when no row matches
	// (id, from) it returns ErrAppointmentFinal.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	// FindOverdueScheduled returns SCHEDULED appointments whose end time is
	// before the cutoff, for the no-show sweep.
	FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	InsertProgressNote(ctx context.Context, note *ProgressNote) error
}
