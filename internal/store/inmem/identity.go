package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
	"attendmate/internal/identity"
)

// UserRepository keeps users and enrollments in memory.
type UserRepository struct {
	mu          sync.Mutex
	users       map[string]identity.User
	enrollments map[string]map[string]struct{} // classID -> studentIDs
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:       make(map[string]identity.User),
		enrollments: make(map[string]map[string]struct{}),
	}
}

func (r *UserRepository) Create(_ context.Context, u identity.User) (identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return identity.User{}, apperr.New(apperr.KindConflict, "user %s already exists", u.Email)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	r.users[u.ID] = u
	return u, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return identity.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (identity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return identity.User{}, apperr.New(apperr.KindNotFound, "user not found")
}

func (r *UserRepository) EnrollStudent(_ context.Context, classID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enrollments[classID] == nil {
		r.enrollments[classID] = make(map[string]struct{})
	}
	r.enrollments[classID][studentID] = struct{}{}
	return nil
}

func (r *UserRepository) EnrolledStudentIDs(_ context.Context, classID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id := range r.enrollments[classID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
