package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
)

// RecordStore persists attendance records. InsertOrGet must be atomic with
// respect to the (session, student) uniqueness guard: under concurrent
// duplicate check-ins exactly one record survives and both callers see it.
type RecordStore interface {
	InsertOrGet(ctx context.Context, rec Record) (Record, bool, error)
	Get(ctx context.Context, sessionID, studentID string) (Record, error)
	SetCheckOut(ctx context.Context, sessionID, studentID string, at time.Time) (Record, error)
	BySession(ctx context.Context, sessionID string) ([]Record, error)
	ByStudent(ctx context.Context, studentID string, limit int) ([]Record, error)
}

const recordCols = `id, session_id, student_id, checked_in_at, lat, long, status, checked_out_at, created_at`

// PostgresStore stores attendance records in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.CheckedInAt,
		&rec.Coordinates.Lat, &rec.Coordinates.Long, &status, &rec.CheckedOutAt, &rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Status = RecordStatus(status)
	return rec, nil
}

// InsertOrGet inserts the record unless one already exists for the
// (session, student) pair, then returns the surviving row. ON CONFLICT DO
// NOTHING makes the race benign: the loser simply reads the winner's row.
func (s *PostgresStore) InsertOrGet(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, checked_in_at, lat, long, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id, student_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.SessionID, rec.StudentID, rec.CheckedInAt,
		rec.Coordinates.Lat, rec.Coordinates.Long, string(rec.Status))
	err := row.Scan(&rec.CreatedAt)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, err
	}
	existing, err := s.Get(ctx, rec.SessionID, rec.StudentID)
	if err != nil {
		return Record{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID, studentID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperr.New(apperr.KindNotFound, "no attendance record for session %s", sessionID)
	}
	return rec, err
}

// SetCheckOut stamps the check-out time once; a second attempt does not
// match the predicate.
func (s *PostgresStore) SetCheckOut(ctx context.Context, sessionID, studentID string, at time.Time) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE attendance_records SET checked_out_at = $3
		WHERE session_id = $1 AND student_id = $2 AND checked_out_at IS NULL
		RETURNING `+recordCols, sessionID, studentID, at)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apperr.New(apperr.KindInvalidState, "record already checked out or missing")
	}
	return rec, err
}

func (s *PostgresStore) BySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE session_id = $1 ORDER BY checked_in_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ByStudent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordCols+` FROM attendance_records
		WHERE student_id = $1 ORDER BY checked_in_at DESC LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
