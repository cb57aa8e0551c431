package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: "23P01"})
	if !IsExclusionViolation(wrapped) {
		t.Fatal("expected exclusion violation through wrapping")
	}
	if IsUniqueViolation(wrapped) {
		t.Fatal("exclusion violation is not a unique violation")
	}
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) || !IsRetryable(&pgconn.PgError{Code: "40P01"}) {
		t.Fatal("expected serialization failure and deadlock to be retryable")
	}
	if IsRetryable(errors.New("boom")) {
		t.Fatal("plain errors are not retryable")
	}
	if !IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Fatal("expected not found")
	}
}

func TestOperationName(t *testing.T) {
	cases := map[string]string{
		"\n\t\tINSERT INTO appointments (id) VALUES ($1)": "INSERT",
		"select 1":                    "SELECT",
		"   ":                         "QUERY",
		"WITH x AS (SELECT 1) SELECT": "WITH",
	}
	for sql, want := range cases {
		if got := operation(sql); got != want {
			t.Fatalf("operation(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestOptionsApply(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/bookings")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	Options{ApplicationName: "booking-service", MaxConns: 4, MinConns: 9, TraceQueries: true}.apply(cfg)
	if cfg.MaxConns != 4 || cfg.MinConns != 4 {
		t.Fatalf("unexpected pool bounds max=%d min=%d", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.ConnConfig.RuntimeParams["application_name"] != "booking-service" {
		t.Fatalf("application name not set: %v", cfg.ConnConfig.RuntimeParams)
	}
	if _, ok := cfg.ConnConfig.Tracer.(*queryTracer); !ok {
		t.Fatal("expected query tracer")
	}
}
