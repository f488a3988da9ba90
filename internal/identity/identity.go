package identity

import (
	"context"
	"time"

	"attendmate/internal/apperr"
)

// Role is the caller's role as stored in the users table. The table is the
// single authoritative source for roles; tokens carry a copy for transport
// but issuance always reads from the store.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role string from any external input.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	}
	return "", apperr.New(apperr.KindInvalid, "unknown role %q", s)
}

// User is the validated internal representation of an authenticated caller.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ClassID   string    `json:"class_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the user store. Lookups by ID are the role authority for
// token issuance.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	EnrollStudent(ctx context.Context, classID, studentID string) error
	EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error)
}

type ctxKey struct{}

// NewContext returns a context carrying the authenticated user. Identity is
// always passed explicitly; there is no ambient current user.
func NewContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the authenticated user, if any.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
