package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/salonbook/bookingengine/libs/db"
)

type InAppNotification struct {
	UserID    string
	Kind      string
	Payload   map[string]any
	CreatedAt time.Time
}

type PostgresInApp struct {
	pool *db.Pool
}

func NewPostgresInApp(pool *db.Pool) *PostgresInApp {
	return &PostgresInApp{pool: pool}
}

func (r *PostgresInApp) Create(ctx context.Context, userID, kind string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO in_app_notifications (user_id, type, payload)
		VALUES ($1, $2, $3)
	`, userID, kind, raw)
	return err
}

type MemoryInApp struct {
	mu    sync.Mutex
	items []InAppNotification
}

func NewMemoryInApp() *MemoryInApp {
	return &MemoryInApp{}
}

func (m *MemoryInApp) Create(_ context.Context, userID, kind string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, InAppNotification{UserID: userID, Kind: kind, Payload: payload, CreatedAt: time.Now().UTC()})
	return nil
}

func (m *MemoryInApp) ForUser(userID string) []InAppNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InAppNotification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
