package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOffer(today time.Time) *TreatmentOffer {
	return &TreatmentOffer{
		ID:              uuid.New(),
		PractitionerID:  uuid.New(),
		TreatmentID:     uuid.New(),
		DurationMinutes: 60,
		Windows: []AvailabilityWindow{
			{Weekday: time.Monday, StartMinute: 8 * 60, EndMinute: 12 * 60},
		},
		OfferStart: today,
		OfferEnd:   today.AddDate(0, 1, 0),
		MaxCases:   5,
	}
}

func TestOfferValidate(t *testing.T) {
	today := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*TreatmentOffer)
		message string
	}{
		{
			name:   "valid",
			mutate: func(o *TreatmentOffer) {},
		},
		{
			name:    "missing dates",
			mutate:  func(o *TreatmentOffer) { o.OfferEnd = time.Time{} },
			message: "start and end dates are required",
		},
		{
			name:    "end before start",
			mutate:  func(o *TreatmentOffer) { o.OfferEnd = o.OfferStart.AddDate(0, 0, -1) },
			message: "end date precedes start date",
		},
		{
			name: "start in the past",
			mutate: func(o *TreatmentOffer) {
				o.OfferStart = today.AddDate(0, 0, -1)
				o.OfferEnd = today.AddDate(0, 1, 0)
			},
			message: "start date is in the past",
		},
		{
			name:    "quota not positive",
			mutate:  func(o *TreatmentOffer) { o.MaxCases = 0 },
			message: "case quota must be positive",
		},
		{
			name:    "duration not positive",
			mutate:  func(o *TreatmentOffer) { o.DurationMinutes = 0 },
			message: "duration must be positive",
		},
		{
			name: "inverted window",
			mutate: func(o *TreatmentOffer) {
				o.Windows[0].StartMinute = 12 * 60
				o.Windows[0].EndMinute = 8 * 60
			},
			message: "availability window must start before it ends",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := validOffer(today)
			tt.mutate(offer)

			err := offer.Validate(today)
			if tt.message == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidOffer)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestOfferValidationOrderFirstFailureWins(t *testing.T) {
	today := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	// Both the date range and the duration are broken; the date range
	// check runs first.
	offer := validOffer(today)
	offer.OfferEnd = offer.OfferStart.AddDate(0, 0, -2)
	offer.DurationMinutes = -5

	err := offer.Validate(today)
	require.ErrorIs(t, err, ErrInvalidOffer)
	assert.Contains(t, err.Error(), "end date precedes start date")
}

func TestOfferUsable(t *testing.T) {
	today := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	offer := validOffer(today)

	assert.NoError(t, offer.Usable(today, 0))
	assert.NoError(t, offer.Usable(offer.OfferEnd, offer.MaxCases-1))

	assert.ErrorIs(t, offer.Usable(today.AddDate(0, 0, -1), 0), ErrOfferExpired)
	assert.ErrorIs(t, offer.Usable(offer.OfferEnd.AddDate(0, 0, 1), 0), ErrOfferExpired)
	assert.ErrorIs(t, offer.Usable(today, offer.MaxCases), ErrOfferQuotaExceeded)
}

func TestWindowAdmits(t *testing.T) {
	w := AvailabilityWindow{Weekday: time.Monday, StartMinute: 8 * 60, EndMinute: 12 * 60}
	duration := time.Hour

	assert.True(t, w.Admits(mondayAt(8, 0), duration))
	assert.True(t, w.Admits(mondayAt(11, 0), duration), "appointment ending exactly at window end fits")
	assert.False(t, w.Admits(mondayAt(11, 30), duration), "would run past window end")
	assert.False(t, w.Admits(mondayAt(7, 30), duration), "starts before window opens")
	assert.False(t, w.Admits(monday.AddDate(0, 0, 1).Add(9*time.Hour), duration), "wrong weekday")
}

func TestOfferCovers(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 12*60)

	assert.True(t, offer.Covers(mondayAt(9, 17)), "coverage is a point-in-window test, not grid membership")
	assert.False(t, offer.Covers(mondayAt(11, 30)))
}

func TestAppointmentTransitions(t *testing.T) {
	for _, terminal := range []AppointmentStatus{AppointmentCompleted, AppointmentCancelled, AppointmentNoShow} {
		appt := &Appointment{Status: AppointmentScheduled}
		require.NoError(t, appt.Transition(terminal))
		assert.Equal(t, terminal, appt.Status)

		// Terminal states never transition again.
		for _, next := range []AppointmentStatus{AppointmentCompleted, AppointmentCancelled, AppointmentNoShow, AppointmentScheduled} {
			assert.ErrorIs(t, appt.Transition(next), ErrAppointmentFinal)
		}
	}
}

func TestAppointmentTransitionRejectsScheduledTarget(t *testing.T) {
	appt := &Appointment{Status: AppointmentScheduled}
	assert.ErrorIs(t, appt.Transition(AppointmentScheduled), ErrAppointmentFinal)
	assert.Equal(t, AppointmentScheduled, appt.Status)
}

func TestAppointmentOverlaps(t *testing.T) {
	appt := bookedAt(9, 0, 60)

	assert.True(t, appt.Overlaps(mondayAt(9, 30), mondayAt(10, 30)))
	assert.True(t, appt.Overlaps(mondayAt(8, 30), mondayAt(9, 30)))
	assert.True(t, appt.Overlaps(mondayAt(8, 0), mondayAt(11, 0)))

	// Touching endpoints do not collide.
	assert.False(t, appt.Overlaps(mondayAt(8, 0), mondayAt(9, 0)))
	assert.False(t, appt.Overlaps(mondayAt(10, 0), mondayAt(11, 0)))
}

func TestCaseStateMachine(t *testing.T) {
	c := &ClinicalCase{Status: CaseOpen}
	require.NoError(t, c.Close())
	assert.Equal(t, CaseClosed, c.Status)
	assert.ErrorIs(t, c.Close(), ErrCaseNotOpen)
	assert.ErrorIs(t, c.Cancel(), ErrCaseNotOpen)

	c = &ClinicalCase{Status: CaseOpen}
	require.NoError(t, c.Cancel())
	assert.Equal(t, CaseCancelled, c.Status)
	assert.ErrorIs(t, c.Close(), ErrCaseNotOpen)
}
