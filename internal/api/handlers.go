package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencare/treatment-booking/internal/scheduling"
)

func getFreeSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer_id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as "+dateLayout)
			return
		}

		slots, err := svc.GetFreeSlots(r.Context(), offerID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if slots == nil {
			slots = []time.Time{}
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			OfferID: offerID,
			Date:    dateStr,
			Slots:   slots,
		})
	}
}

func createOfferHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OfferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		offer, err := req.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer", err.Error())
			return
		}

		created, err := svc.CreateOffer(r.Context(), offer)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, offerToResponse(created))
	}
}

func updateOfferHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer_id", "id must be a valid UUID")
			return
		}

		var req OfferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		// Owner ids are immutable on update; the service keeps the stored ones.
		if req.PractitionerID == "" {
			req.PractitionerID = uuid.Nil.String()
		}
		if req.TreatmentID == "" {
			req.TreatmentID = uuid.Nil.String()
		}

		offer, err := req.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer", err.Error())
			return
		}
		offer.ID = offerID

		updated, err := svc.UpdateOffer(r.Context(), offer)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, offerToResponse(updated))
	}
}

func deleteOfferHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteOffer(r.Context(), offerID); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func createBookingHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		offerID, err := uuid.Parse(req.OfferID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offer_id", "offer_id must be a valid UUID")
			return
		}

		at, err := time.Parse(time.RFC3339, req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be RFC 3339")
			return
		}

		c, err := svc.BookAppointment(r.Context(), patientID, offerID, at)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, caseToResponse(c))
	}
}

func getCaseHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_case_id", "id must be a valid UUID")
			return
		}

		c, err := svc.GetCase(r.Context(), caseID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, caseToResponse(c))
	}
}

func finalizeCaseHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_case_id", "id must be a valid UUID")
			return
		}

		c, err := svc.FinalizeCase(r.Context(), caseID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, caseToResponse(c))
	}
}

func cancelCaseHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_case_id", "id must be a valid UUID")
			return
		}

		c, err := svc.CancelCase(r.Context(), caseID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, caseToResponse(c))
	}
}

func addNoteHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_case_id", "id must be a valid UUID")
			return
		}

		var req NoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Body == "" {
			writeError(w, http.StatusBadRequest, "invalid_note", "body must not be empty")
			return
		}

		note, err := svc.AddProgressNote(r.Context(), caseID, req.Body)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, NoteResponse{
			ID:        note.ID,
			Body:      note.Body,
			CreatedAt: note.CreatedAt,
		})
	}
}

func markAttendanceHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AttendanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.MarkAttendance(r.Context(), appointmentID, scheduling.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), appointmentID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, "offer_not_found", err.Error())
	case errors.Is(err, scheduling.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "case_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidOffer):
		writeError(w, http.StatusBadRequest, "invalid_offer", err.Error())
	case errors.Is(err, scheduling.ErrInvalidAttendance):
		writeError(w, http.StatusBadRequest, "invalid_attendance", err.Error())
	case errors.Is(err, scheduling.ErrOfferExpired):
		writeError(w, http.StatusConflict, "offer_expired", err.Error())
	case errors.Is(err, scheduling.ErrOfferQuotaExceeded):
		writeError(w, http.StatusConflict, "offer_quota_exceeded", err.Error())
	case errors.Is(err, scheduling.ErrOfferHasActiveBookings):
		writeError(w, http.StatusConflict, "offer_has_active_bookings", err.Error())
	case errors.Is(err, scheduling.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, scheduling.ErrPatientDoubleBooked):
		writeError(w, http.StatusConflict, "patient_double_booked", err.Error())
	case errors.Is(err, scheduling.ErrPractitionerDoubleBooked):
		writeError(w, http.StatusConflict, "practitioner_double_booked", err.Error())
	case errors.Is(err, scheduling.ErrFuturePending):
		writeError(w, http.StatusConflict, "future_appointments_pending", err.Error())
	case errors.Is(err, scheduling.ErrPastUnmarked):
		writeError(w, http.StatusConflict, "past_appointments_unmarked", err.Error())
	case errors.Is(err, scheduling.ErrCaseNotOpen):
		writeError(w, http.StatusConflict, "case_not_open", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentFinal):
		writeError(w, http.StatusConflict, "appointment_final", err.Error())
	case errors.Is(err, scheduling.ErrBookingContended):
		writeError(w, http.StatusConflict, "booking_contended", "practitioner calendar is being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
