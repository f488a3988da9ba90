// Package inmem provides in-memory repository implementations with the
// same invariant guards as the Postgres schema. They back tests and local
// runs without a database.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
	"attendmate/internal/session"
)

// SessionRepository keeps sessions in a map guarded by one mutex, so the
// single-active-per-class check and the insert are atomic, mirroring the
// partial unique index.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]session.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]session.Session)}
}

func (r *SessionRepository) activeForClassLocked(classID string) (session.Session, bool) {
	for _, s := range r.sessions {
		if s.ClassID == classID && s.Status == session.StatusActive {
			return s, true
		}
	}
	return session.Session{}, false
}

func (r *SessionRepository) Create(_ context.Context, s session.Session) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Status == session.StatusActive {
		if _, ok := r.activeForClassLocked(s.ClassID); ok {
			return session.Session{}, apperr.New(apperr.KindConflict, "class %s already has an active session", s.ClassID)
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	r.sessions[s.ID] = s
	return s, nil
}

func (r *SessionRepository) GetByID(_ context.Context, id string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, apperr.New(apperr.KindNotFound, "session %s not found", id)
	}
	return s, nil
}

func (r *SessionRepository) ActiveByClass(_ context.Context, classID string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.activeForClassLocked(classID); ok {
		return s, nil
	}
	return session.Session{}, apperr.New(apperr.KindNotFound, "no active session for class %s", classID)
}

func (r *SessionRepository) Activate(_ context.Context, id string, at time.Time) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != session.StatusScheduled {
		return session.Session{}, apperr.New(apperr.KindInvalidState, "session %s is not scheduled", id)
	}
	if _, ok := r.activeForClassLocked(s.ClassID); ok {
		return session.Session{}, apperr.New(apperr.KindConflict, "class %s already has an active session", s.ClassID)
	}
	s.Status = session.StatusActive
	s.StartedAt = &at
	r.sessions[id] = s
	return s, nil
}

func (r *SessionRepository) Close(_ context.Context, id string, at time.Time) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != session.StatusActive {
		return session.Session{}, apperr.New(apperr.KindInvalidState, "session %s is not active", id)
	}
	s.Status = session.StatusClosed
	s.EndedAt = &at
	r.sessions[id] = s
	return s, nil
}

func (r *SessionRepository) CloseExpired(_ context.Context, now time.Time) ([]session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var closed []session.Session
	for id, s := range r.sessions {
		if s.Status == session.StatusActive && !s.EndsAt.After(now) {
			s.Status = session.StatusClosed
			ended := now
			s.EndedAt = &ended
			r.sessions[id] = s
			closed = append(closed, s)
		}
	}
	return closed, nil
}

func (r *SessionRepository) ListByClass(_ context.Context, classID string, limit int) ([]session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var res []session.Session
	for _, s := range r.sessions {
		if s.ClassID == classID {
			res = append(res, s)
		}
	}
	// newest first
	for i := 0; i < len(res); i++ {
		for j := i + 1; j < len(res); j++ {
			if res[j].StartsAt.After(res[i].StartsAt) {
				res[i], res[j] = res[j], res[i]
			}
		}
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
