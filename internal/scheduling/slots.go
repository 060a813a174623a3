package scheduling

import (
	"sort"
	"time"
)

// FreeSlots computes the bookable start times for one calendar day. It is a
// pure function of the offer, the date and the supplied booked appointments,
// so calling it twice with the same snapshot yields the same sequence.
//
// Candidate slots start at each window's opening time and advance by
// `granularity` while a full appointment of the offer's duration still fits
// before the window closes; partial fits are not emitted. A candidate
// survives when it overlaps none of the booked appointments under the
// half-open interval test, so back-to-back appointments are allowed.
func FreeSlots(offer *TreatmentOffer, date time.Time, granularity time.Duration, booked []Appointment) []time.Time {
	windows := offer.WindowsOn(date.Weekday())
	if len(windows) == 0 {
		return nil
	}

	duration := offer.Duration()
	var slots []time.Time

	for _, w := range windows {
		end := w.EndOn(date)
		for at := w.StartOn(date); !at.Add(duration).After(end); at = at.Add(granularity) {
			if !collides(at, at.Add(duration), booked) {
				slots = append(slots, at)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return dedupeTimes(slots)
}

func collides(start, end time.Time, booked []Appointment) bool {
	for _, appt := range booked {
		if appt.Status == AppointmentCancelled {
			continue
		}
		if appt.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// dedupeTimes drops duplicates from a sorted slice; overlapping windows on
// the same weekday can emit the same candidate twice.
func dedupeTimes(ts []time.Time) []time.Time {
	if len(ts) < 2 {
		return ts
	}
	out := ts[:1]
	for _, t := range ts[1:] {
		if !t.Equal(out[len(out)-1]) {
			out = append(out, t)
		}
	}
	return out
}
