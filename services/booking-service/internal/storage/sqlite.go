package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps appointments and the catalog in one embedded database
// for single-node deployments. Writes use BEGIN IMMEDIATE on a single
// connection, so the overlap re-check and the insert cannot interleave with
// another writer.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS businesses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	timezone TEXT NOT NULL,
	currency TEXT NOT NULL,
	owner_user_id TEXT NOT NULL DEFAULT '',
	owner_email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS services (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id),
	name TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
	price TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS staff (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL REFERENCES businesses(id),
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS staff_services (
	staff_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
	service_id TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	PRIMARY KEY (staff_id, service_id)
);
CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	service_id TEXT NOT NULL,
	staff_id TEXT NOT NULL,
	client_id TEXT,
	guest_name TEXT,
	guest_email TEXT,
	guest_phone TEXT,
	status TEXT NOT NULL,
	appt_date TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL CHECK (end_ms > start_ms),
	price TEXT NOT NULL,
	currency TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	notes TEXT,
	cancelled_by TEXT,
	cancel_reason TEXT,
	idempotency_key TEXT,
	created_ms INTEGER NOT NULL,
	updated_ms INTEGER NOT NULL,
	CHECK ((client_id IS NULL) <> (guest_email IS NULL))
);
CREATE INDEX IF NOT EXISTS appointments_staff_start ON appointments (staff_id, start_ms);
CREATE UNIQUE INDEX IF NOT EXISTS appointments_idempotency
	ON appointments (business_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
`

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: a :memory: database lives per connection, and a file
	// database has a single writer anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

const sqliteAppointmentColumns = `
	id, business_id, service_id, staff_id, COALESCE(client_id, ''),
	COALESCE(guest_name, ''), COALESCE(guest_email, ''), COALESCE(guest_phone, ''),
	status, appt_date, start_time, end_time, start_ms, end_ms,
	price, currency, duration_minutes, COALESCE(notes, ''),
	COALESCE(cancelled_by, ''), COALESCE(cancel_reason, ''), COALESCE(idempotency_key, ''),
	created_ms, updated_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a                                 model.Appointment
		guestName, guestEmail, guestPhone string
		price, cancelledBy                string
		startMs, endMs, createdMs, updMs  int64
	)
	err := row.Scan(
		&a.ID, &a.BusinessID, &a.ServiceID, &a.StaffID, &a.ClientID,
		&guestName, &guestEmail, &guestPhone,
		&a.Status, &a.Date, &a.StartTime, &a.EndTime, &startMs, &endMs,
		&price, &a.Currency, &a.DurationMins, &a.Notes,
		&cancelledBy, &a.CancelReason, &a.IdempotencyKey,
		&createdMs, &updMs,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Price, err = decimal.NewFromString(price); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s price: %w", a.ID, err)
	}
	if a.ClientID == "" {
		a.Guest = &model.Guest{Name: guestName, Email: guestEmail, Phone: guestPhone}
	}
	a.CancelledBy = model.Initiator(cancelledBy)
	a.StartAt = time.UnixMilli(startMs).UTC()
	a.EndAt = time.UnixMilli(endMs).UTC()
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.UpdatedAt = time.UnixMilli(updMs).UTC()
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteStore) FindBookedIntervals(ctx context.Context, businessID string, from, to time.Time, staffIDs []string) ([]model.Appointment, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	args := []any{businessID, to.UnixMilli(), from.UnixMilli()}
	marks := make([]string, len(staffIDs))
	for i, id := range staffIDs {
		marks[i] = "?"
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteAppointmentColumns+`
		FROM appointments
		WHERE business_id = ? AND start_ms < ? AND end_ms > ? AND staff_id IN (`+strings.Join(marks, ",")+`)
			AND status <> 'CANCELLED'
		ORDER BY start_ms`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanSQLiteAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *SQLiteStore) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	appt.CreatedAt, appt.UpdatedAt = now, now
	var guestName, guestEmail, guestPhone sql.NullString
	if appt.Guest != nil {
		guestName, guestEmail, guestPhone = nullable(appt.Guest.Name), nullable(appt.Guest.Email), nullable(appt.Guest.Phone)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if appt.IdempotencyKey != "" {
			var used bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM appointments WHERE business_id = ? AND idempotency_key = ?)`,
				appt.BusinessID, appt.IdempotencyKey).Scan(&used); err != nil {
				return err
			}
			if used {
				return ErrDuplicateKey
			}
		}
		var taken bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE staff_id = ? AND status <> 'CANCELLED' AND start_ms < ? AND end_ms > ?
			)`, appt.StaffID, appt.EndAt.UnixMilli(), appt.StartAt.UnixMilli()).Scan(&taken); err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO appointments (
				id, business_id, service_id, staff_id, client_id,
				guest_name, guest_email, guest_phone,
				status, appt_date, start_time, end_time, start_ms, end_ms,
				price, currency, duration_minutes, notes, idempotency_key,
				created_ms, updated_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			appt.ID, appt.BusinessID, appt.ServiceID, appt.StaffID, nullable(appt.ClientID),
			guestName, guestEmail, guestPhone,
			appt.Status, appt.Date, appt.StartTime, appt.EndTime, appt.StartAt.UnixMilli(), appt.EndAt.UnixMilli(),
			appt.Price.String(), appt.Currency, appt.DurationMins, nullable(appt.Notes), nullable(appt.IdempotencyKey),
			now.UnixMilli(), now.UnixMilli(),
		)
		return err
	})
	switch {
	case err == nil:
		return appt, nil
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrDuplicateKey):
		return model.Appointment{}, err
	case isSQLiteUnique(err):
		return model.Appointment{}, ErrDuplicateKey
	default:
		return model.Appointment{}, err
	}
}

func (s *SQLiteStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanSQLiteAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAppointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

func (s *SQLiteStore) FindByIdempotencyKey(ctx context.Context, businessID, key string) (model.Appointment, error) {
	a, err := scanSQLiteAppointment(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAppointmentColumns+` FROM appointments WHERE business_id = ? AND idempotency_key = ?`,
		businessID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return a, err
}

// UpdateStatus moves id from one status to another only if it is still in from.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, change StatusChange) (model.Appointment, error) {
	var out model.Appointment
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		set := `status = ?, updated_ms = ?`
		args := []any{to, time.Now().UTC().UnixMilli()}
		if to == model.StatusCancelled {
			set += `, cancelled_by = ?, cancel_reason = ?`
			args = append(args, nullable(change.CancelledBy), nullable(change.CancelReason))
		}
		res, err := tx.ExecContext(ctx, `UPDATE appointments SET `+set+` WHERE id = ? AND status = ?`,
			append(args, id, from)...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `SELECT `+sqliteAppointmentColumns+` FROM appointments WHERE id = ?`, id)
		current, err := scanSQLiteAppointment(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStatusChanged
		}
		out = current
		return nil
	})
	return out, err
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var b model.Business
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, timezone, currency, owner_user_id, owner_email
		FROM businesses WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Timezone, &b.Currency, &b.OwnerUserID, &b.OwnerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Business{}, ErrNotFound
	}
	return b, err
}

func (s *SQLiteStore) GetService(ctx context.Context, id string) (model.Service, error) {
	var (
		svc   model.Service
		price string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, duration_minutes, price, is_active
		FROM services WHERE id = ?`, id).
		Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMins, &price, &svc.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	if svc.Price, err = decimal.NewFromString(price); err != nil {
		return model.Service{}, fmt.Errorf("service %s price: %w", id, err)
	}
	return svc, nil
}

// ListActiveStaffForService lists qualified active staff in insertion order.
func (s *SQLiteStore) ListActiveStaffForService(ctx context.Context, businessID, serviceID string) ([]model.StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.business_id, s.name, s.email, s.user_id, s.is_active
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE s.business_id = ? AND ss.service_id = ? AND s.is_active = 1
		ORDER BY s.rowid`, businessID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.StaffMember
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.Name, &m.Email, &m.UserID, &m.Active); err != nil {
			return nil, err
		}
		staff = append(staff, m)
	}
	return staff, rows.Err()
}

func (s *SQLiteStore) GetStaff(ctx context.Context, id string) (model.StaffMember, error) {
	var m model.StaffMember
	err := s.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, email, user_id, is_active
		FROM staff WHERE id = ?`, id).
		Scan(&m.ID, &m.BusinessID, &m.Name, &m.Email, &m.UserID, &m.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StaffMember{}, ErrNotFound
	}
	return m, err
}

func (s *SQLiteStore) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, ErrNotFound
	}
	return c, err
}

// Load upserts every catalog record in one transaction. Existing staff keep
// their listing position.
func (s *SQLiteStore) Load(ctx context.Context, c Catalog) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range c.Businesses {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO businesses (id, name, timezone, currency, owner_user_id, owner_email)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone,
					currency = excluded.currency, owner_user_id = excluded.owner_user_id,
					owner_email = excluded.owner_email`,
				b.ID, b.Name, b.Timezone, b.Currency, b.OwnerUserID, b.OwnerEmail); err != nil {
				return fmt.Errorf("business %s: %w", b.ID, err)
			}
		}
		for _, svc := range c.Services {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO services (id, business_id, name, duration_minutes, price, is_active)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET business_id = excluded.business_id, name = excluded.name,
					duration_minutes = excluded.duration_minutes, price = excluded.price,
					is_active = excluded.is_active`,
				svc.ID, svc.BusinessID, svc.Name, svc.DurationMins, svc.Price.String(), svc.Active); err != nil {
				return fmt.Errorf("service %s: %w", svc.ID, err)
			}
		}
		for _, st := range c.Staff {
			m := st.Member
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO staff (id, business_id, name, email, user_id, is_active)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET business_id = excluded.business_id, name = excluded.name,
					email = excluded.email, user_id = excluded.user_id, is_active = excluded.is_active`,
				m.ID, m.BusinessID, m.Name, m.Email, m.UserID, m.Active); err != nil {
				return fmt.Errorf("staff %s: %w", m.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM staff_services WHERE staff_id = ?`, m.ID); err != nil {
				return err
			}
			for _, svcID := range st.ServiceIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO staff_services (staff_id, service_id) VALUES (?, ?)`, m.ID, svcID); err != nil {
					return fmt.Errorf("staff %s service %s: %w", m.ID, svcID, err)
				}
			}
		}
		for _, cl := range c.Clients {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO clients (id, name, email) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email`,
				cl.ID, cl.Name, cl.Email); err != nil {
				return fmt.Errorf("client %s: %w", cl.ID, err)
			}
		}
		return nil
	})
}
