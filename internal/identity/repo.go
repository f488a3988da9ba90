package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
	"attendmate/internal/store"
)

// PostgresRepository persists users and enrollments.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, class_id, active, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, u.ID, u.Name, u.Email, string(u.Role), u.ClassID, u.Active, u.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, apperr.Wrap(apperr.KindConflict, err, "user %s already exists", u.Email)
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getBy(ctx, `WHERE email = $1`, email)
}

func (r *PostgresRepository) getBy(ctx context.Context, where string, arg any) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, COALESCE(class_id, ''), active, created_at
		FROM users `+where, arg)
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.ClassID, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.New(apperr.KindNotFound, "user not found")
		}
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (r *PostgresRepository) EnrollStudent(ctx context.Context, classID, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (class_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (class_id, student_id) DO NOTHING
	`, classID, studentID)
	return err
}

func (r *PostgresRepository) EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id FROM enrollments WHERE class_id = $1 ORDER BY student_id
	`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
