package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanOffer(row pgx.Row) (*TreatmentOffer, error) {
	var o TreatmentOffer

	err := row.Scan(
		&o.ID,
		&o.PractitionerID,
		&o.TreatmentID,
		&o.Requirements,
		&o.DurationMinutes,
		&o.OfferStart,
		&o.OfferEnd,
		&o.MaxCases,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}

	return &o, nil
}

func scanCase(row pgx.Row) (*ClinicalCase, error) {
	var c ClinicalCase

	err := row.Scan(
		&c.ID,
		&c.PatientID,
		&c.PractitionerID,
		&c.TreatmentID,
		&c.Status,
		&c.StartDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.CaseID,
		&a.PractitionerID,
		&a.PatientID,
		&a.StartTime,
		&a.EndTime,
		&a.Motive,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const appointmentColumns = `id, case_id, practitioner_id, patient_id, start_time, end_time, motive, status, created_at, updated_at`

func (r *PgRepository) loadWindows(ctx context.Context, offerID uuid.UUID) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, offer_id, weekday, start_minute, end_minute
		FROM availability_windows
		WHERE offer_id = $1
		ORDER BY weekday, start_minute
	`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		var weekday int
		if err := rows.Scan(&w.ID, &w.OfferID, &weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, w)
	}

	return windows, rows.Err()
}

// Interface methods

func (r *PgRepository) GetOfferByID(ctx context.Context, id uuid.UUID) (*TreatmentOffer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, treatment_id, requirements, duration_minutes,
		       offer_start, offer_end, max_cases, created_at, updated_at
		FROM treatment_offers
		WHERE id = $1
	`, id)

	offer, err := scanOffer(row)
	if err != nil {
		return nil, err
	}

	offer.Windows, err = r.loadWindows(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load availability windows: %w", err)
	}

	return offer, nil
}

func (r *PgRepository) CreateOffer(ctx context.Context, offer *TreatmentOffer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO treatment_offers
			(id, practitioner_id, treatment_id, requirements, duration_minutes,
			 offer_start, offer_end, max_cases, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, offer.ID, offer.PractitionerID, offer.TreatmentID, offer.Requirements,
		offer.DurationMinutes, offer.OfferStart, offer.OfferEnd, offer.MaxCases)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}

	if err := insertWindows(ctx, tx, offer.Windows); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpdateOffer(ctx context.Context, offer *TreatmentOffer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE treatment_offers
		SET requirements = $2,
		    duration_minutes = $3,
		    offer_start = $4,
		    offer_end = $5,
		    max_cases = $6,
		    updated_at = now()
		WHERE id = $1
	`, offer.ID, offer.Requirements, offer.DurationMinutes,
		offer.OfferStart, offer.OfferEnd, offer.MaxCases)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}

	// Full replacement of the window set.
	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE offer_id = $1`, offer.ID); err != nil {
		return fmt.Errorf("clear availability windows: %w", err)
	}
	if err := insertWindows(ctx, tx, offer.Windows); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertWindows(ctx context.Context, tx pgx.Tx, windows []AvailabilityWindow) error {
	for _, w := range windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (id, offer_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, w.ID, w.OfferID, int(w.Weekday), w.StartMinute, w.EndMinute)
		if err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
	}
	return nil
}

func (r *PgRepository) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM treatment_offers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOfferNotFound
	}
	return nil
}

func (r *PgRepository) CountConsumedCases(ctx context.Context, practitionerID, treatmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM clinical_cases
		WHERE practitioner_id = $1
		  AND treatment_id = $2
		  AND status IN ('OPEN', 'CLOSED')
	`, practitionerID, treatmentID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) CountScheduledAppointments(ctx context.Context, practitionerID, treatmentID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN clinical_cases c ON c.id = a.case_id
		WHERE a.practitioner_id = $1
		  AND c.treatment_id = $2
		  AND a.status = 'SCHEDULED'
	`, practitionerID, treatmentID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) ListPractitionerDayAppointments(ctx context.Context, practitionerID uuid.UUID, dayStart, dayEnd time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, practitionerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) PatientHasOverlap(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error) {
	return r.hasOverlap(ctx, "patient_id", patientID, start, end)
}

func (r *PgRepository) PractitionerHasOverlap(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (bool, error) {
	return r.hasOverlap(ctx, "practitioner_id", practitionerID, start, end)
}

func (r *PgRepository) hasOverlap(ctx context.Context, ownerColumn string, ownerID uuid.UUID, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE `+ownerColumn+` = $1
			  AND status <> 'CANCELLED'
			  AND start_time < $3
			  AND end_time > $2
		)
	`, ownerID, start, end).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) GetOpenCase(ctx context.Context, patientID, practitionerID, treatmentID uuid.UUID) (*ClinicalCase, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, practitioner_id, treatment_id, status, start_date, created_at, updated_at
		FROM clinical_cases
		WHERE patient_id = $1
		  AND practitioner_id = $2
		  AND treatment_id = $3
		  AND status = 'OPEN'
	`, patientID, practitionerID, treatmentID)
	return scanCase(row)
}

func (r *PgRepository) GetCaseByID(ctx context.Context, id uuid.UUID) (*ClinicalCase, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, practitioner_id, treatment_id, status, start_date, created_at, updated_at
		FROM clinical_cases
		WHERE id = $1
	`, id)

	c, err := scanCase(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE case_id = $1
		ORDER BY start_time
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Appointments, err = collectAppointments(rows)
	if err != nil {
		return nil, err
	}

	noteRows, err := r.pool.Query(ctx, `
		SELECT id, case_id, body, created_at
		FROM progress_notes
		WHERE case_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer noteRows.Close()

	for noteRows.Next() {
		var n ProgressNote
		if err := noteRows.Scan(&n.ID, &n.CaseID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		c.Notes = append(c.Notes, n)
	}

	return c, noteRows.Err()
}

func (r *PgRepository) CreateBooking(ctx context.Context, c *ClinicalCase, appt *Appointment, caseIsNew bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if caseIsNew {
		_, err = tx.Exec(ctx, `
			INSERT INTO clinical_cases
				(id, patient_id, practitioner_id, treatment_id, status, start_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, c.ID, c.PatientID, c.PractitionerID, c.TreatmentID, c.Status, c.StartDate)
		if err != nil {
			return fmt.Errorf("insert case: %w", mapUniqueViolation(err))
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, case_id, practitioner_id, patient_id, start_time, end_time, motive, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, appt.ID, appt.CaseID, appt.PractitionerID, appt.PatientID,
		appt.StartTime, appt.EndTime, appt.Motive, appt.Status)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	return tx.Commit(ctx)
}

// mapUniqueViolation converts the partial-index conflicts that close the
// booking race into their business errors.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "appointments_practitioner_active_start_idx":
		return ErrPractitionerDoubleBooked
	case "appointments_patient_active_start_idx":
		return ErrPatientDoubleBooked
	case "clinical_cases_one_open_idx":
		return ErrBookingContended
	default:
		return err
	}
}

func (r *PgRepository) UpdateCaseStatus(ctx context.Context, id uuid.UUID, from, to CaseStatus) (*ClinicalCase, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE clinical_cases
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, practitioner_id, treatment_id, status, start_date, created_at, updated_at
	`, id, to, from)

	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, ErrCaseNotFound) {
			return nil, ErrCaseNotOpen
		}
		return nil, err
	}
	return c, nil
}

func (r *PgRepository) CancelCaseAppointments(ctx context.Context, caseID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    updated_at = now()
		WHERE case_id = $1
		  AND status = 'SCHEDULED'
	`, caseID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAppointmentFinal
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'SCHEDULED'
		  AND end_time < $1
		ORDER BY end_time
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) InsertProgressNote(ctx context.Context, note *ProgressNote) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO progress_notes (id, case_id, body, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, note.ID, note.CaseID, note.Body, nullableTime(note.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert progress note: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
