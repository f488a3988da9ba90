package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection, applies the schema, and verifies
// connectivity.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		email      TEXT UNIQUE NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('student','teacher','admin')),
		class_id   TEXT,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		class_id   TEXT NOT NULL,
		student_id TEXT NOT NULL REFERENCES users(id),
		UNIQUE (class_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		class_id    TEXT NOT NULL,
		teacher_id  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('scheduled','active','closed')),
		starts_at   TIMESTAMPTZ NOT NULL,
		started_at  TIMESTAMPTZ,
		ends_at     TIMESTAMPTZ NOT NULL,
		ended_at    TIMESTAMPTZ,
		center_lat  DOUBLE PRECISION NOT NULL,
		center_long DOUBLE PRECISION NOT NULL,
		radius_m    DOUBLE PRECISION NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS one_active_session_per_class
		ON sessions (class_id) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS attendance_records (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES sessions(id),
		student_id     TEXT NOT NULL,
		checked_in_at  TIMESTAMPTZ NOT NULL,
		lat            DOUBLE PRECISION NOT NULL,
		long           DOUBLE PRECISION NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('present','late')),
		checked_out_at TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (session_id, student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_student ON attendance_records(student_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_class  ON sessions(class_id, starts_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. Repositories use this to turn storage-level invariant guards
// into typed conflicts.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
