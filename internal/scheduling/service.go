package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencare/treatment-booking/internal/config"
	redisclient "github.com/opencare/treatment-booking/internal/redis"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

// GetFreeSlots resolves the offer and returns its bookable start times for
// one calendar date. Read-only; runs outside any transaction but against
// committed appointment data.
func (s *Service) GetFreeSlots(ctx context.Context, offerID uuid.UUID, date time.Time) ([]time.Time, error) {
	offer, err := s.repo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	dayStart := startOfDay(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	booked, err := s.repo.ListPractitionerDayAppointments(ctx, offer.PractitionerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}

	return FreeSlots(offer, dayStart, s.cfg.SlotGranularity, booked), nil
}

// BookAppointment validates a requested start time against the offer and
// both parties' calendars, then creates or extends the clinical case with a
// new SCHEDULED appointment. Validations run in order and the first
// violation wins; nothing is written until every check has passed.
//
// The conflict checks use the same half-open overlap test as the slot
// calculator, and the offer's date window and quota are re-verified here
// rather than only at offer creation.
func (s *Service) BookAppointment(ctx context.Context, patientID, offerID uuid.UUID, at time.Time) (*ClinicalCase, error) {
	offer, err := s.repo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	consumed, err := s.repo.CountConsumedCases(ctx, offer.PractitionerID, offer.TreatmentID)
	if err != nil {
		return nil, fmt.Errorf("count consumed cases: %w", err)
	}
	if err := offer.Usable(time.Now(), consumed); err != nil {
		return nil, err
	}

	if !offer.Covers(at) {
		return nil, ErrOutsideAvailability
	}

	end := at.Add(offer.Duration())

	var booked *ClinicalCase

	err = s.locker.WithPractitionerLock(ctx, offer.PractitionerID, func(lockCtx context.Context) error {
		conflict, err := s.repo.PatientHasOverlap(lockCtx, patientID, at, end)
		if err != nil {
			return fmt.Errorf("check patient conflicts: %w", err)
		}
		if conflict {
			return ErrPatientDoubleBooked
		}

		conflict, err = s.repo.PractitionerHasOverlap(lockCtx, offer.PractitionerID, at, end)
		if err != nil {
			return fmt.Errorf("check practitioner conflicts: %w", err)
		}
		if conflict {
			return ErrPractitionerDoubleBooked
		}

		c, err := s.repo.GetOpenCase(lockCtx, patientID, offer.PractitionerID, offer.TreatmentID)
		caseIsNew := false
		switch {
		case err == nil:
		case errors.Is(err, ErrCaseNotFound):
			caseIsNew = true
			c = &ClinicalCase{
				ID:             uuid.New(),
				PatientID:      patientID,
				PractitionerID: offer.PractitionerID,
				TreatmentID:    offer.TreatmentID,
				Status:         CaseOpen,
				StartDate:      startOfDay(time.Now()),
			}
		default:
			return fmt.Errorf("resolve open case: %w", err)
		}

		appt := &Appointment{
			ID:             uuid.New(),
			CaseID:         c.ID,
			PractitionerID: offer.PractitionerID,
			PatientID:      patientID,
			StartTime:      at,
			EndTime:        end,
			Motive:         s.cfg.DefaultMotive,
			Status:         AppointmentScheduled,
		}

		if err := s.repo.CreateBooking(lockCtx, c, appt, caseIsNew); err != nil {
			return fmt.Errorf("persist booking: %w", err)
		}

		c.Appointments = append(c.Appointments, *appt)
		booked = c
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("case_id", booked.ID.String()),
		zap.String("patient_id", patientID.String()),
		zap.String("practitioner_id", offer.PractitionerID.String()),
		zap.Time("start_time", at),
	)

	return booked, nil
}

// FinalizeCase closes a case once no appointment is left unresolved: a
// still SCHEDULED appointment in the future blocks closure because it is
// pending, and one in the past blocks it because attendance was never
// marked. Both checks run independently and either failure aborts.
func (s *Service) FinalizeCase(ctx context.Context, caseID uuid.UUID) (*ClinicalCase, error) {
	c, err := s.repo.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}

	now := time.Now()
	for _, appt := range c.Appointments {
		if appt.Status == AppointmentScheduled && !appt.StartTime.Before(now) {
			return nil, ErrFuturePending
		}
	}
	for _, appt := range c.Appointments {
		if appt.Status == AppointmentScheduled && appt.StartTime.Before(now) {
			return nil, ErrPastUnmarked
		}
	}

	if err := c.Close(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCaseStatus(ctx, c.ID, CaseOpen, CaseClosed)
	if err != nil {
		return nil, fmt.Errorf("close case: %w", err)
	}
	updated.Appointments = c.Appointments
	updated.Notes = c.Notes

	s.log.Info("case finalized", zap.String("case_id", caseID.String()))
	return updated, nil
}

// CancelCase cancels an open case together with its remaining SCHEDULED
// appointments.
func (s *Service) CancelCase(ctx context.Context, caseID uuid.UUID) (*ClinicalCase, error) {
	c, err := s.repo.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if err := c.Cancel(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCaseStatus(ctx, c.ID, CaseOpen, CaseCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel case: %w", err)
	}

	n, err := s.repo.CancelCaseAppointments(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("cancel case appointments: %w", err)
	}

	s.log.Info("case cancelled",
		zap.String("case_id", caseID.String()),
		zap.Int("appointments_cancelled", n),
	)
	return updated, nil
}

// GetCase returns a case hydrated with its appointments and progress notes.
func (s *Service) GetCase(ctx context.Context, caseID uuid.UUID) (*ClinicalCase, error) {
	c, err := s.repo.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	return c, nil
}

// CreateOffer validates and persists a new offer with its windows.
func (s *Service) CreateOffer(ctx context.Context, offer *TreatmentOffer) (*TreatmentOffer, error) {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	for i := range offer.Windows {
		if offer.Windows[i].ID == uuid.Nil {
			offer.Windows[i].ID = uuid.New()
		}
		offer.Windows[i].OfferID = offer.ID
	}

	if err := offer.Validate(time.Now()); err != nil {
		return nil, err
	}

	if err := s.repo.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	s.log.Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("practitioner_id", offer.PractitionerID.String()),
	)
	return offer, nil
}

// UpdateOffer replaces the offer's requirement, duration, window, date and
// quota fields wholesale.
func (s *Service) UpdateOffer(ctx context.Context, offer *TreatmentOffer) (*TreatmentOffer, error) {
	existing, err := s.repo.GetOfferByID(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}

	offer.PractitionerID = existing.PractitionerID
	offer.TreatmentID = existing.TreatmentID
	for i := range offer.Windows {
		if offer.Windows[i].ID == uuid.Nil {
			offer.Windows[i].ID = uuid.New()
		}
		offer.Windows[i].OfferID = offer.ID
	}

	if err := offer.Validate(time.Now()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("update offer: %w", err)
	}
	return offer, nil
}

// DeleteOffer removes an offer unless bookings are still scheduled against
// its practitioner/treatment pair.
func (s *Service) DeleteOffer(ctx context.Context, offerID uuid.UUID) error {
	offer, err := s.repo.GetOfferByID(ctx, offerID)
	if err != nil {
		return fmt.Errorf("load offer: %w", err)
	}

	scheduled, err := s.repo.CountScheduledAppointments(ctx, offer.PractitionerID, offer.TreatmentID)
	if err != nil {
		return fmt.Errorf("count scheduled appointments: %w", err)
	}
	if scheduled > 0 {
		return ErrOfferHasActiveBookings
	}

	if err := s.repo.DeleteOffer(ctx, offerID); err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}

	s.log.Info("offer deleted", zap.String("offer_id", offerID.String()))
	return nil
}

// MarkAttendance records the outcome of a past appointment: COMPLETED or
// NO_SHOW.
func (s *Service) MarkAttendance(ctx context.Context, appointmentID uuid.UUID, outcome AppointmentStatus) (*Appointment, error) {
	if outcome != AppointmentCompleted && outcome != AppointmentNoShow {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAttendance, outcome)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := appt.Transition(outcome); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, AppointmentScheduled, outcome)
	if err != nil {
		return nil, fmt.Errorf("mark attendance: %w", err)
	}
	return updated, nil
}

// CancelAppointment frees the appointment's slot. Cancelled appointments
// stay on the case but stop counting for conflicts and finalize gating.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := appt.Transition(AppointmentCancelled); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, AppointmentScheduled, AppointmentCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.log.Info("appointment cancelled", zap.String("appointment_id", appointmentID.String()))
	return updated, nil
}

// AddProgressNote appends a note to an open case.
func (s *Service) AddProgressNote(ctx context.Context, caseID uuid.UUID, body string) (*ProgressNote, error) {
	c, err := s.repo.GetCaseByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case: %w", err)
	}
	if c.Status != CaseOpen {
		return nil, ErrCaseNotOpen
	}

	note := &ProgressNote{
		ID:        uuid.New(),
		CaseID:    caseID,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.InsertProgressNote(ctx, note); err != nil {
		return nil, fmt.Errorf("insert progress note: %w", err)
	}
	return note, nil
}

// SweepOverdue marks SCHEDULED appointments NO_SHOW once their end time is
// older than the configured grace period. Intended to be called
// periodically by the overdue worker so abandoned cases stay finalizable.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.NoShowGrace)

	overdue, err := s.repo.FindOverdueScheduled(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	swept := 0
	for _, appt := range overdue {
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, AppointmentScheduled, AppointmentNoShow); err != nil {
			if errors.Is(err, ErrAppointmentFinal) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error("failed to mark appointment as no-show",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err),
			)
			continue
		}
		swept++
	}

	return swept, nil
}
