package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/interview-slots/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// schemaStatements create the slot grid. The partial unique index on
// occupant_id backs the one-slot-per-candidate invariant at the storage level.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS time_slots (
    id BIGSERIAL PRIMARY KEY,
    department_id BIGINT NOT NULL,
    slot_date DATE NOT NULL,
    start_time TIME NOT NULL,
    is_available BOOLEAN NOT NULL DEFAULT TRUE,
    occupant_id BIGINT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT time_slots_department_date_time_key UNIQUE (department_id, slot_date, start_time),
    CONSTRAINT time_slots_occupied_not_available CHECK (occupant_id IS NULL OR is_available = FALSE)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS time_slots_occupant_id_key ON time_slots (occupant_id) WHERE occupant_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS time_slots_open_idx ON time_slots (department_id, slot_date, start_time) WHERE is_available AND occupant_id IS NULL`,
}

// EnsureSchema creates the slot table and its indexes when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
