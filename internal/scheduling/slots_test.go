package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-01-05 is a Monday.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func mondayAt(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func offerWithMondayWindow(durationMinutes, startMinute, endMinute int) *TreatmentOffer {
	return &TreatmentOffer{
		ID:              uuid.New(),
		PractitionerID:  uuid.New(),
		TreatmentID:     uuid.New(),
		DurationMinutes: durationMinutes,
		Windows: []AvailabilityWindow{
			{ID: uuid.New(), Weekday: time.Monday, StartMinute: startMinute, EndMinute: endMinute},
		},
		OfferStart: monday.AddDate(0, -1, 0),
		OfferEnd:   monday.AddDate(1, 0, 0),
		MaxCases:   10,
	}
}

func bookedAt(hour, minute, durationMinutes int) Appointment {
	start := mondayAt(hour, minute)
	return Appointment{
		ID:        uuid.New(),
		StartTime: start,
		EndTime:   start.Add(time.Duration(durationMinutes) * time.Minute),
		Status:    AppointmentScheduled,
	}
}

func TestFreeSlotsWorkedExample(t *testing.T) {
	// Monday 08:00-12:00, 60 minute service, one existing 09:00-10:00
	// appointment. 08:30 is excluded because it would run until 09:30 into
	// the booking; 11:30 because it would run until 12:30 past the window.
	// 08:00 ends exactly at 09:00 and survives.
	offer := offerWithMondayWindow(60, 8*60, 12*60)
	booked := []Appointment{bookedAt(9, 0, 60)}

	slots := FreeSlots(offer, monday, 30*time.Minute, booked)

	expected := []time.Time{
		mondayAt(8, 0),
		mondayAt(10, 0),
		mondayAt(10, 30),
		mondayAt(11, 0),
	}
	require.Equal(t, expected, slots)
}

func TestFreeSlotsNoWindowForWeekday(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 12*60)

	tuesday := monday.AddDate(0, 0, 1)
	slots := FreeSlots(offer, tuesday, 30*time.Minute, nil)
	assert.Empty(t, slots)
}

func TestFreeSlotsWindowShorterThanDuration(t *testing.T) {
	// 45 minute window cannot fit a 60 minute service.
	offer := offerWithMondayWindow(60, 8*60, 8*60+45)

	slots := FreeSlots(offer, monday, 30*time.Minute, nil)
	assert.Empty(t, slots)
}

func TestFreeSlotsNoPartialFitAtWindowEnd(t *testing.T) {
	offer := offerWithMondayWindow(90, 9*60, 11*60)

	slots := FreeSlots(offer, monday, 30*time.Minute, nil)

	// A 90 minute service in 09:00-11:00 can only start at 09:00 or 09:30.
	require.Equal(t, []time.Time{mondayAt(9, 0), mondayAt(9, 30)}, slots)
}

func TestFreeSlotsGranularityIndependentOfDuration(t *testing.T) {
	// A 90 minute service still starts on 30 minute boundaries.
	offer := offerWithMondayWindow(90, 8*60, 12*60)

	slots := FreeSlots(offer, monday, 30*time.Minute, nil)
	require.NotEmpty(t, slots)

	for _, slot := range slots {
		offset := slot.Sub(mondayAt(8, 0))
		assert.Zero(t, offset%(30*time.Minute), "slot %s is off the granularity grid", slot)
	}
}

func TestFreeSlotsTouchingEndpointsDoNotCollide(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 11*60)
	booked := []Appointment{bookedAt(9, 0, 60)}

	slots := FreeSlots(offer, monday, 30*time.Minute, booked)

	// 08:00 ends exactly when the booking starts and 10:00 starts exactly
	// when it ends; both survive.
	require.Equal(t, []time.Time{mondayAt(8, 0), mondayAt(10, 0)}, slots)
}

func TestFreeSlotsIgnoresCancelledAppointments(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 10*60)
	cancelled := bookedAt(8, 0, 60)
	cancelled.Status = AppointmentCancelled

	slots := FreeSlots(offer, monday, 30*time.Minute, []Appointment{cancelled})
	require.Equal(t, []time.Time{mondayAt(8, 0), mondayAt(8, 30), mondayAt(9, 0)}, slots)
}

func TestFreeSlotsNeverOverlapBookingsOrEachOther(t *testing.T) {
	offer := offerWithMondayWindow(45, 8*60, 13*60)
	booked := []Appointment{
		bookedAt(8, 15, 30),
		bookedAt(10, 0, 90),
		bookedAt(12, 30, 60),
	}

	slots := FreeSlots(offer, monday, 30*time.Minute, booked)
	duration := offer.Duration()

	for _, slot := range slots {
		end := slot.Add(duration)
		for _, appt := range booked {
			assert.False(t, appt.Overlaps(slot, end),
				"slot %s overlaps appointment %s-%s", slot, appt.StartTime, appt.EndTime)
		}
	}
}

func TestFreeSlotsIdempotent(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 12*60)
	booked := []Appointment{bookedAt(9, 0, 60)}

	first := FreeSlots(offer, monday, 30*time.Minute, booked)
	second := FreeSlots(offer, monday, 30*time.Minute, booked)
	require.Equal(t, first, second)
}

func TestFreeSlotsMergesMultipleWindows(t *testing.T) {
	offer := offerWithMondayWindow(60, 8*60, 10*60)
	offer.Windows = append(offer.Windows, AvailabilityWindow{
		ID: uuid.New(), Weekday: time.Monday, StartMinute: 14 * 60, EndMinute: 16 * 60,
	})

	slots := FreeSlots(offer, monday, 30*time.Minute, nil)
	require.Equal(t, []time.Time{
		mondayAt(8, 0), mondayAt(8, 30), mondayAt(9, 0),
		mondayAt(14, 0), mondayAt(14, 30), mondayAt(15, 0),
	}, slots)
}
