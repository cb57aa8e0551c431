package storage

import (
	"context"
	"fmt"

	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// PostgresDirectory reads the business catalog that other services own.
type PostgresDirectory struct {
	pool *db.Pool
}

func NewPostgresDirectory(pool *db.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var b model.Business
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, timezone, currency, COALESCE(owner_user_id, ''), COALESCE(owner_email, '')
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Timezone, &b.Currency, &b.OwnerUserID, &b.OwnerEmail)
	if db.IsNotFound(err) {
		return model.Business{}, ErrNotFound
	}
	return b, err
}

func (d *PostgresDirectory) GetService(ctx context.Context, id string) (model.Service, error) {
	var (
		s     model.Service
		price string
	)
	err := d.pool.QueryRow(ctx, `
		SELECT id, business_id, name, duration_minutes, price::text, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &price, &s.Active)
	if db.IsNotFound(err) {
		return model.Service{}, ErrNotFound
	}
	if err != nil {
		return model.Service{}, err
	}
	if s.Price, err = decimal.NewFromString(price); err != nil {
		return model.Service{}, fmt.Errorf("service %s price: %w", id, err)
	}
	return s, nil
}

// ListActiveStaffForService returns qualified active staff in listing order.
func (d *PostgresDirectory) ListActiveStaffForService(ctx context.Context, businessID, serviceID string) ([]model.StaffMember, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT s.id, s.business_id, s.name, COALESCE(s.email, ''), COALESCE(s.user_id, ''), s.is_active
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE s.business_id = $1 AND ss.service_id = $2 AND s.is_active
		ORDER BY s.created_at ASC, s.id ASC
	`, businessID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.StaffMember
	for rows.Next() {
		var s model.StaffMember
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Email, &s.UserID, &s.Active); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

func (d *PostgresDirectory) GetStaff(ctx context.Context, id string) (model.StaffMember, error) {
	var s model.StaffMember
	err := d.pool.QueryRow(ctx, `
		SELECT id, business_id, name, COALESCE(email, ''), COALESCE(user_id, ''), is_active
		FROM staff
		WHERE id = $1
	`, id).Scan(&s.ID, &s.BusinessID, &s.Name, &s.Email, &s.UserID, &s.Active)
	if db.IsNotFound(err) {
		return model.StaffMember{}, ErrNotFound
	}
	return s, err
}

func (d *PostgresDirectory) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email)
	if db.IsNotFound(err) {
		return model.Client{}, ErrNotFound
	}
	return c, err
}
