package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentNoShow    AppointmentStatus = "NO_SHOW"
)

type CaseStatus string

const (
	CaseOpen      CaseStatus = "OPEN"
	CaseClosed    CaseStatus = "CLOSED"
	CaseCancelled CaseStatus = "CANCELLED"
)

// AvailabilityWindow is a recurring weekday slot range owned by one offer.
// Start and end are minutes since midnight in the practitioner's local day;
// the start is inclusive and the end exclusive.
type AvailabilityWindow struct {
	ID          uuid.UUID
	OfferID     uuid.UUID
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// StartOn anchors the window's opening time onto a calendar date.
func (w AvailabilityWindow) StartOn(date time.Time) time.Time {
	return startOfDay(date).Add(time.Duration(w.StartMinute) * time.Minute)
}

// EndOn anchors the window's closing time onto a calendar date.
func (w AvailabilityWindow) EndOn(date time.Time) time.Time {
	return startOfDay(date).Add(time.Duration(w.EndMinute) * time.Minute)
}

// Admits reports whether an appointment of the given duration starting at
// `at` lies fully inside the window on at's own date.
func (w AvailabilityWindow) Admits(at time.Time, duration time.Duration) bool {
	if at.Weekday() != w.Weekday {
		return false
	}
	start := w.StartOn(at)
	end := w.EndOn(at)
	return !at.Before(start) && !at.Add(duration).After(end)
}

// TreatmentOffer is a practitioner's published willingness to perform one
// treatment type during a date range, bounded by a case quota.
type TreatmentOffer struct {
	ID              uuid.UUID
	PractitionerID  uuid.UUID
	TreatmentID     uuid.UUID
	Requirements    string
	DurationMinutes int
	Windows         []AvailabilityWindow
	OfferStart      time.Time // date, midnight
	OfferEnd        time.Time // date, midnight, inclusive
	MaxCases        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *TreatmentOffer) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

// WindowsOn returns the windows matching a weekday.
func (o *TreatmentOffer) WindowsOn(weekday time.Weekday) []AvailabilityWindow {
	var out []AvailabilityWindow
	for _, w := range o.Windows {
		if w.Weekday == weekday {
			out = append(out, w)
		}
	}
	return out
}

// Covers reports whether an appointment of the offer's duration starting at
// `at` falls inside one of the published windows.
func (o *TreatmentOffer) Covers(at time.Time) bool {
	for _, w := range o.WindowsOn(at.Weekday()) {
		if w.Admits(at, o.Duration()) {
			return true
		}
	}
	return false
}

// Validate enforces the offer construction preconditions in order; the
// first violation wins. `today` is the caller's notion of the current date
// so that updates to an already running offer do not trip the not-in-the-past
// rule retroactively when its start was valid at creation.
func (o *TreatmentOffer) Validate(today time.Time) error {
	if o.OfferStart.IsZero() || o.OfferEnd.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidOffer)
	}
	if o.OfferEnd.Before(o.OfferStart) {
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidOffer)
	}
	if o.OfferStart.Before(startOfDay(today)) {
		return fmt.Errorf("%w: start date is in the past", ErrInvalidOffer)
	}
	if o.MaxCases <= 0 {
		return fmt.Errorf("%w: case quota must be positive", ErrInvalidOffer)
	}
	if o.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidOffer)
	}
	for _, w := range o.Windows {
		if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
			return fmt.Errorf("%w: availability window must start before it ends", ErrInvalidOffer)
		}
	}
	return nil
}

// Usable is the availability predicate callers consult before offering the
// offer's slots: today inside the published date range and the consumed case
// count under the quota. Cancelled cases do not consume quota.
func (o *TreatmentOffer) Usable(today time.Time, consumedCases int) error {
	day := startOfDay(today)
	if day.Before(o.OfferStart) || day.After(o.OfferEnd) {
		return ErrOfferExpired
	}
	if consumedCases >= o.MaxCases {
		return ErrOfferQuotaExceeded
	}
	return nil
}

// ClinicalCase is the aggregate binding one patient, one practitioner and
// one treatment across possibly many appointments.
type ClinicalCase struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	TreatmentID    uuid.UUID
	Status         CaseStatus
	StartDate      time.Time
	Appointments   []Appointment
	Notes          []ProgressNote
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Close transitions OPEN -> CLOSED. The cross-appointment preconditions
// live in the service's finalize policy; this only guards the local state
// machine.
func (c *ClinicalCase) Close() error {
	if c.Status != CaseOpen {
		return ErrCaseNotOpen
	}
	c.Status = CaseClosed
	return nil
}

// Cancel transitions OPEN -> CANCELLED.
func (c *ClinicalCase) Cancel() error {
	if c.Status != CaseOpen {
		return ErrCaseNotOpen
	}
	c.Status = CaseCancelled
	return nil
}

// Appointment is one scheduled occurrence inside a case. Start and end are
// both stored so overlap checks never need to re-resolve the offer's
// duration.
type Appointment struct {
	ID             uuid.UUID
	CaseID         uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Motive         string
	Status         AppointmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Overlaps applies the half-open interval test against [start, end).
// Intervals that merely touch at an endpoint do not collide.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && a.EndTime.After(start)
}

// Transition moves the appointment to a new attendance status. Only
// SCHEDULED may change; every other status is terminal.
func (a *Appointment) Transition(to AppointmentStatus) error {
	if a.Status != AppointmentScheduled {
		return ErrAppointmentFinal
	}
	switch to {
	case AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		a.Status = to
		return nil
	default:
		return fmt.Errorf("%w: cannot transition to %s", ErrAppointmentFinal, to)
	}
}

type ProgressNote struct {
	ID        uuid.UUID
	CaseID    uuid.UUID
	Body      string
	CreatedAt time.Time
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
