package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// PostgresStore persists appointments. Commit-time conflict detection is
// layered: a transaction-scoped advisory lock per (staff, date) serialises
// writers, an overlap re-read rejects conflicts inside the lock, and the
// appointments_no_overlap exclusion constraint covers writers that cross a
// date boundary.
type PostgresStore struct {
	pool *db.Pool
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const appointmentColumns = `
	id, business_id, service_id, staff_id, COALESCE(client_id, ''),
	COALESCE(guest_name, ''), COALESCE(guest_email, ''), COALESCE(guest_phone, ''),
	status, appt_date::text, start_time, end_time, start_at, end_at,
	price::text, currency, duration_minutes, COALESCE(notes, ''),
	COALESCE(cancelled_by, ''), COALESCE(cancel_reason, ''), COALESCE(idempotency_key, ''),
	created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a                            model.Appointment
		guestName, guestEmail, phone string
		price, cancelledBy           string
	)
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ServiceID, &a.StaffID, &a.ClientID,
		&guestName, &guestEmail, &phone,
		&a.Status, &a.Date, &a.StartTime, &a.EndTime, &a.StartAt, &a.EndAt,
		&price, &a.Currency, &a.DurationMins, &a.Notes,
		&cancelledBy, &a.CancelReason, &a.IdempotencyKey,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Price, err = decimal.NewFromString(price); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s price: %w", a.ID, err)
	}
	if a.ClientID == "" {
		a.Guest = &model.Guest{Name: guestName, Email: guestEmail, Phone: phone}
	}
	a.CancelledBy = model.Initiator(cancelledBy)
	return a, nil
}

func (s *PostgresStore) FindBookedIntervals(ctx context.Context, businessID string, from, to time.Time, staffIDs []string) ([]model.Appointment, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1
			AND staff_id = ANY($2)
			AND start_at < $4
			AND end_at > $3
			AND status <> 'CANCELLED'
		ORDER BY start_at ASC
	`, businessID, staffIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	var guestName, guestEmail, guestPhone *string
	if appt.Guest != nil {
		guestName, guestEmail, guestPhone = &appt.Guest.Name, &appt.Guest.Email, &appt.Guest.Phone
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.insertChecked(ctx, &appt, guestName, guestEmail, guestPhone)
		if !db.IsRetryable(err) {
			break
		}
	}
	switch {
	case err == nil:
		return appt, nil
	case errors.Is(err, ErrSlotTaken), db.IsExclusionViolation(err):
		return model.Appointment{}, ErrSlotTaken
	case db.IsUniqueViolation(err):
		return model.Appointment{}, ErrDuplicateKey
	default:
		return model.Appointment{}, err
	}
}

// maxTxAttempts bounds retries after deadlocks or serialization failures.
const maxTxAttempts = 3

func (s *PostgresStore) insertChecked(ctx context.Context, appt *model.Appointment, guestName, guestEmail, guestPhone *string) error {
	return s.pool.InTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, appt.StaffID, appt.Date); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}

		var taken bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE staff_id = $1
					AND status <> 'CANCELLED'
					AND start_at < $3
					AND end_at > $2
			)
		`, appt.StaffID, appt.StartAt, appt.EndAt).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		return tx.QueryRow(ctx, `
			INSERT INTO appointments (
				id, business_id, service_id, staff_id, client_id,
				guest_name, guest_email, guest_phone,
				status, appt_date, start_time, end_time, start_at, end_at,
				price, currency, duration_minutes, notes, idempotency_key
			) VALUES (
				$1, $2, $3, $4, NULLIF($5, ''),
				$6, $7, $8,
				$9, $10::date, $11, $12, $13, $14,
				$15::numeric, $16, $17, NULLIF($18, ''), NULLIF($19, '')
			)
			RETURNING created_at, updated_at
		`, appt.ID, appt.BusinessID, appt.ServiceID, appt.StaffID, appt.ClientID,
			guestName, guestEmail, guestPhone,
			appt.Status, appt.Date, appt.StartTime, appt.EndTime, appt.StartAt, appt.EndAt,
			appt.Price.String(), appt.Currency, appt.DurationMins, appt.Notes, appt.IdempotencyKey,
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	})
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, businessID, key string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE business_id = $1 AND idempotency_key = $2
	`, businessID, key))
	if db.IsNotFound(err) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

// UpdateStatus moves id from one status to another only if it is still in from.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, change StatusChange) (model.Appointment, error) {
	var cancelledBy, reason *string
	if to == model.StatusCancelled {
		cancelledBy, reason = &change.CancelledBy, &change.CancelReason
	}
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			cancelled_by = COALESCE($4, cancelled_by),
			cancel_reason = COALESCE($5, cancel_reason),
			updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING `+appointmentColumns,
		id, from, to, cancelledBy, reason, time.Now().UTC()))
	if err == nil {
		return a, nil
	}
	if !db.IsNotFound(err) {
		return model.Appointment{}, err
	}
	// Zero rows: either the appointment is gone or another writer moved it.
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return model.Appointment{}, err
	}
	if !exists {
		return model.Appointment{}, ErrNotFound
	}
	return model.Appointment{}, ErrStatusChanged
}
