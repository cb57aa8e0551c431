package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/salonbook/bookingengine/libs/config"
	"github.com/salonbook/bookingengine/libs/db"
	"github.com/salonbook/bookingengine/libs/redisx"
	"github.com/salonbook/bookingengine/libs/runtime"
	"github.com/salonbook/bookingengine/services/booking-service/internal/booking"
	"github.com/salonbook/bookingengine/services/booking-service/internal/locks"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
)

type deps struct {
	kind        string
	pool        *db.Pool
	sqlite      *storage.SQLiteStore
	redis       *redis.Client
	store       booking.Store
	dir         booking.Directory
	locker      locks.Locker
	readyChecks []runtime.ReadyCheck
	closers     []runtime.Closer
}

// openDeps connects the configured store and lock backend. STORE=sqlite keeps
// bookings in a single file for one-node setups; STORE=memory keeps everything
// in process and is meant for local runs and demos.
func openDeps(ctx context.Context, logger *slog.Logger) (*deps, error) {
	d := &deps{kind: strings.ToLower(config.String("STORE", "postgres"))}

	switch d.kind {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.Options{
			ApplicationName: config.String("SERVICE_NAME", "booking-service"),
			MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
			ConnectAttempts: config.Int("DB_CONNECT_ATTEMPTS", 5),
			TraceQueries:    config.Bool("DB_TRACE_QUERIES", false),
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		d.pool = pool
		d.store = storage.NewPostgresStore(pool)
		d.dir = storage.NewPostgresDirectory(pool)
		d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	case "sqlite":
		path := config.String("SQLITE_PATH", "bookings.db")
		lite, err := storage.OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		if config.Bool("SEED_DEMO_DATA", false) {
			if err := lite.Load(ctx, demoCatalog()); err != nil {
				_ = lite.Close()
				return nil, fmt.Errorf("seed sqlite: %w", err)
			}
			logger.Info("seeded demo directory", "business_id", demoBusinessID, "path", path)
		}
		d.sqlite = lite
		d.store = lite
		d.dir = lite
		d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "sqlite", Check: lite.Ping})
	case "memory":
		dir := storage.NewMemoryDirectory()
		if config.Bool("SEED_DEMO_DATA", true) {
			dir.Load(demoCatalog())
			logger.Info("seeded demo directory", "business_id", demoBusinessID)
		}
		d.store = storage.NewMemoryStore()
		d.dir = dir
	default:
		return nil, fmt.Errorf("STORE must be postgres, sqlite or memory (got %q)", d.kind)
	}

	rdb, err := redisx.Open(ctx, redisx.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	if err != nil {
		d.close(ctx)
		return nil, fmt.Errorf("open redis: %w", err)
	}
	d.redis = rdb

	switch {
	case rdb != nil:
		d.locker = locks.NewRedis(rdb, config.Duration("BOOKING_LOCK_TTL", 0), logger)
		d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	case config.Bool("BOOKING_LOCAL_LOCK", true):
		d.locker = locks.NewLocal()
	default:
		d.locker = locks.Noop{}
	}

	d.closers = append(d.closers, runtime.Closer{Name: "storage", Close: func(context.Context) error {
		d.close(context.Background())
		return nil
	}})
	return d, nil
}

func (d *deps) close(context.Context) {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.sqlite != nil {
		_ = d.sqlite.Close()
	}
	d.pool.Close()
}
