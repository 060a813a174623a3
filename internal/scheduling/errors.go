package scheduling

import "errors"

// Not-found errors, always terminal.
var (
	ErrOfferNotFound       = errors.New("offer not found")
	ErrCaseNotFound        = errors.New("case not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Business rule violations. The messages are surfaced verbatim to callers.
var (
	ErrInvalidOffer             = errors.New("invalid offer")
	ErrOfferExpired             = errors.New("offer is outside its published date range")
	ErrOfferQuotaExceeded       = errors.New("offer has reached its case quota")
	ErrOfferHasActiveBookings   = errors.New("offer still has scheduled appointments")
	ErrOutsideAvailability      = errors.New("requested time is outside published availability")
	ErrPatientDoubleBooked      = errors.New("patient already has an appointment at this time")
	ErrPractitionerDoubleBooked = errors.New("practitioner already has an appointment at this time")
	ErrFuturePending            = errors.New("case has future appointments pending")
	ErrPastUnmarked             = errors.New("case has past appointments not yet marked")
	ErrInvalidAttendance        = errors.New("attendance outcome must be COMPLETED or NO_SHOW")
)

// Invalid-state errors: the entity exists but its state machine forbids the
// operation.
var (
	ErrCaseNotOpen      = errors.New("case is not open")
	ErrAppointmentFinal = errors.New("appointment status can no longer change")
)

// ErrBookingContended is returned when another booking currently holds the
// practitioner's calendar lock; the caller may retry the whole booking.
var ErrBookingContended = errors.New("practitioner calendar is being booked, please retry")
