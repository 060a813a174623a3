package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencare/treatment-booking/internal/scheduling"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

type WindowPayload struct {
	Weekday int    `json:"weekday"` // 0 = Sunday .. 6 = Saturday
	Start   string `json:"start"`   // "08:00"
	End     string `json:"end"`     // "12:00"
}

type OfferRequest struct {
	PractitionerID  string          `json:"practitioner_id"`
	TreatmentID     string          `json:"treatment_id"`
	Requirements    string          `json:"requirements"`
	DurationMinutes int             `json:"duration_minutes"`
	Windows         []WindowPayload `json:"windows"`
	OfferStart      string          `json:"offer_start"` // "2026-09-01"
	OfferEnd        string          `json:"offer_end"`
	MaxCases        int             `json:"max_cases"`
}

type OfferResponse struct {
	ID              uuid.UUID       `json:"id"`
	PractitionerID  uuid.UUID       `json:"practitioner_id"`
	TreatmentID     uuid.UUID       `json:"treatment_id"`
	Requirements    string          `json:"requirements"`
	DurationMinutes int             `json:"duration_minutes"`
	Windows         []WindowPayload `json:"windows"`
	OfferStart      string          `json:"offer_start"`
	OfferEnd        string          `json:"offer_end"`
	MaxCases        int             `json:"max_cases"`
}

type BookingRequest struct {
	PatientID string `json:"patient_id"`
	OfferID   string `json:"offer_id"`
	Time      string `json:"time"` // RFC 3339
}

type AttendanceRequest struct {
	Status string `json:"status"` // COMPLETED or NO_SHOW
}

type NoteRequest struct {
	Body string `json:"body"`
}

type SlotsResponse struct {
	OfferID uuid.UUID   `json:"offer_id"`
	Date    string      `json:"date"`
	Slots   []time.Time `json:"slots"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	CaseID    uuid.UUID `json:"case_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Motive    string    `json:"motive"`
	Status    string    `json:"status"`
}

type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type CaseResponse struct {
	ID             uuid.UUID             `json:"id"`
	PatientID      uuid.UUID             `json:"patient_id"`
	PractitionerID uuid.UUID             `json:"practitioner_id"`
	TreatmentID    uuid.UUID             `json:"treatment_id"`
	Status         string                `json:"status"`
	StartDate      string                `json:"start_date"`
	Appointments   []AppointmentResponse `json:"appointments"`
	Notes          []NoteResponse        `json:"notes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Conversions

func (req OfferRequest) toModel() (*scheduling.TreatmentOffer, error) {
	practitionerID, err := uuid.Parse(req.PractitionerID)
	if err != nil {
		return nil, fmt.Errorf("practitioner_id must be a valid UUID")
	}
	treatmentID, err := uuid.Parse(req.TreatmentID)
	if err != nil {
		return nil, fmt.Errorf("treatment_id must be a valid UUID")
	}

	offer := &scheduling.TreatmentOffer{
		PractitionerID:  practitionerID,
		TreatmentID:     treatmentID,
		Requirements:    req.Requirements,
		DurationMinutes: req.DurationMinutes,
		MaxCases:        req.MaxCases,
	}

	if req.OfferStart != "" {
		offer.OfferStart, err = time.Parse(dateLayout, req.OfferStart)
		if err != nil {
			return nil, fmt.Errorf("offer_start must be formatted as %s", dateLayout)
		}
	}
	if req.OfferEnd != "" {
		offer.OfferEnd, err = time.Parse(dateLayout, req.OfferEnd)
		if err != nil {
			return nil, fmt.Errorf("offer_end must be formatted as %s", dateLayout)
		}
	}

	for _, wp := range req.Windows {
		startMin, err := parseClock(wp.Start)
		if err != nil {
			return nil, fmt.Errorf("window start: %v", err)
		}
		endMin, err := parseClock(wp.End)
		if err != nil {
			return nil, fmt.Errorf("window end: %v", err)
		}
		offer.Windows = append(offer.Windows, scheduling.AvailabilityWindow{
			Weekday:     time.Weekday(wp.Weekday),
			StartMinute: startMin,
			EndMinute:   endMin,
		})
	}

	return offer, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%q must be formatted as %s", s, clockLayout)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func offerToResponse(o *scheduling.TreatmentOffer) OfferResponse {
	resp := OfferResponse{
		ID:              o.ID,
		PractitionerID:  o.PractitionerID,
		TreatmentID:     o.TreatmentID,
		Requirements:    o.Requirements,
		DurationMinutes: o.DurationMinutes,
		OfferStart:      o.OfferStart.Format(dateLayout),
		OfferEnd:        o.OfferEnd.Format(dateLayout),
		MaxCases:        o.MaxCases,
	}
	for _, w := range o.Windows {
		resp.Windows = append(resp.Windows, WindowPayload{
			Weekday: int(w.Weekday),
			Start:   formatClock(w.StartMinute),
			End:     formatClock(w.EndMinute),
		})
	}
	return resp
}

func caseToResponse(c *scheduling.ClinicalCase) CaseResponse {
	resp := CaseResponse{
		ID:             c.ID,
		PatientID:      c.PatientID,
		PractitionerID: c.PractitionerID,
		TreatmentID:    c.TreatmentID,
		Status:         string(c.Status),
		StartDate:      c.StartDate.Format(dateLayout),
		Appointments:   []AppointmentResponse{},
	}
	for _, a := range c.Appointments {
		resp.Appointments = append(resp.Appointments, appointmentToResponse(&a))
	}
	for _, n := range c.Notes {
		resp.Notes = append(resp.Notes, NoteResponse{
			ID:        n.ID,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
		})
	}
	return resp
}

func appointmentToResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		CaseID:    a.CaseID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Motive:    a.Motive,
		Status:    string(a.Status),
	}
}
