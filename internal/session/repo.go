package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
	"attendmate/internal/store"
)

// Repository persists sessions.
type Repository interface {
	Create(ctx context.Context, s Session) (Session, error)
	GetByID(ctx context.Context, id string) (Session, error)
	ActiveByClass(ctx context.Context, classID string) (Session, error)
	Activate(ctx context.Context, id string, at time.Time) (Session, error)
	Close(ctx context.Context, id string, at time.Time) (Session, error)
	CloseExpired(ctx context.Context, now time.Time) ([]Session, error)
	ListByClass(ctx context.Context, classID string, limit int) ([]Session, error)
}

const sessionCols = `id, class_id, teacher_id, status, starts_at, started_at, ends_at, ended_at, center_lat, center_long, radius_m, created_at`

// PostgresRepository stores sessions in Postgres. The partial unique index
// one_active_session_per_class backs the single-active invariant, so two
// concurrent creates or activations for the same class cannot both win.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var status string
	err := row.Scan(&s.ID, &s.ClassID, &s.TeacherID, &status, &s.StartsAt, &s.StartedAt,
		&s.EndsAt, &s.EndedAt, &s.Geofence.Lat, &s.Geofence.Long, &s.Geofence.RadiusM, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	s.Status = Status(status)
	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, class_id, teacher_id, status, starts_at, started_at, ends_at, center_lat, center_long, radius_m)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at
	`, s.ID, s.ClassID, s.TeacherID, string(s.Status), s.StartsAt, s.StartedAt, s.EndsAt,
		s.Geofence.Lat, s.Geofence.Long, s.Geofence.RadiusM)
	if err := row.Scan(&s.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return Session{}, apperr.Wrap(apperr.KindConflict, err, "class %s already has an active session", s.ClassID)
		}
		return Session{}, err
	}
	return s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, apperr.New(apperr.KindNotFound, "session %s not found", id)
	}
	return s, err
}

func (r *PostgresRepository) ActiveByClass(ctx context.Context, classID string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionCols+` FROM sessions WHERE class_id = $1 AND status = 'active'
	`, classID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, apperr.New(apperr.KindNotFound, "no active session for class %s", classID)
	}
	return s, err
}

// Activate flips scheduled -> active. The WHERE predicate carries the state
// machine: an already active or closed session is not a match, and the
// partial index rejects a second active session for the class.
func (r *PostgresRepository) Activate(ctx context.Context, id string, at time.Time) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE sessions SET status = 'active', started_at = $2
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+sessionCols, id, at)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, apperr.New(apperr.KindInvalidState, "session %s is not scheduled", id)
	}
	if err != nil && store.IsUniqueViolation(err) {
		return Session{}, apperr.Wrap(apperr.KindConflict, err, "class already has an active session")
	}
	return s, err
}

func (r *PostgresRepository) Close(ctx context.Context, id string, at time.Time) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE sessions SET status = 'closed', ended_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING `+sessionCols, id, at)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, apperr.New(apperr.KindInvalidState, "session %s is not active", id)
	}
	return s, err
}

func (r *PostgresRepository) CloseExpired(ctx context.Context, now time.Time) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE sessions SET status = 'closed', ended_at = $1
		WHERE status = 'active' AND ends_at <= $1
		RETURNING `+sessionCols, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var closed []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		closed = append(closed, s)
	}
	return closed, rows.Err()
}

func (r *PostgresRepository) ListByClass(ctx context.Context, classID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionCols+` FROM sessions
		WHERE class_id = $1 ORDER BY starts_at DESC LIMIT $2
	`, classID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
