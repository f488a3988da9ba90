package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"attendmate/internal/apperr"
	"attendmate/internal/identity"
	"attendmate/internal/metrics"
	"attendmate/internal/queue"
)

// EventSessionClosed is the queue message type published when a session
// leaves the active state.
const EventSessionClosed = "session.closed"

// ClosedEvent is the payload for EventSessionClosed messages.
type ClosedEvent struct {
	SessionID string    `json:"session_id"`
	ClassID   string    `json:"class_id"`
	EndedAt   time.Time `json:"ended_at"`
	Reason    string    `json:"reason"`
}

// Manager owns the session lifecycle and is the source of truth for
// "is attendance currently collectible" for a class.
type Manager struct {
	repo  Repository
	cache *ActiveCache
	queue queue.Queue

	nowFunc func() time.Time
}

func NewManager(repo Repository, cache *ActiveCache, q queue.Queue) *Manager {
	return &Manager{repo: repo, cache: cache, queue: q, nowFunc: time.Now}
}

func validateGeofence(g Geofence) error {
	if g.Lat < -90 || g.Lat > 90 || g.Long < -180 || g.Long > 180 {
		return apperr.New(apperr.KindInvalid, "geofence center out of bounds")
	}
	if g.RadiusM <= 0 {
		return apperr.New(apperr.KindInvalid, "geofence radius must be positive")
	}
	return nil
}

// Start creates a session that is collecting immediately. The repository's
// partial unique index decides races: if the class already has an active
// session the create fails with a conflict.
func (m *Manager) Start(ctx context.Context, actor identity.User, classID string, fence Geofence, duration time.Duration) (Session, error) {
	if classID == "" {
		return Session{}, apperr.New(apperr.KindInvalid, "class id required")
	}
	if err := validateGeofence(fence); err != nil {
		return Session{}, err
	}
	if duration <= 0 {
		return Session{}, apperr.New(apperr.KindInvalid, "session duration must be positive")
	}

	now := m.nowFunc().UTC()
	s := Session{
		ClassID:   classID,
		TeacherID: actor.ID,
		Status:    StatusActive,
		StartsAt:  now,
		StartedAt: &now,
		EndsAt:    now.Add(duration),
		Geofence:  fence,
	}
	created, err := m.repo.Create(ctx, s)
	if err != nil {
		return Session{}, err
	}
	m.cache.Set(ctx, created)
	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSessions.Inc()
	return created, nil
}

// Schedule creates a session for a future start. It does not collect until
// Activate is called.
func (m *Manager) Schedule(ctx context.Context, actor identity.User, classID string, fence Geofence, startsAt time.Time, duration time.Duration) (Session, error) {
	if classID == "" {
		return Session{}, apperr.New(apperr.KindInvalid, "class id required")
	}
	if err := validateGeofence(fence); err != nil {
		return Session{}, err
	}
	if duration <= 0 {
		return Session{}, apperr.New(apperr.KindInvalid, "session duration must be positive")
	}
	if startsAt.Before(m.nowFunc()) {
		return Session{}, apperr.New(apperr.KindInvalid, "scheduled start is in the past")
	}

	s := Session{
		ClassID:   classID,
		TeacherID: actor.ID,
		Status:    StatusScheduled,
		StartsAt:  startsAt.UTC(),
		EndsAt:    startsAt.UTC().Add(duration),
		Geofence:  fence,
	}
	return m.repo.Create(ctx, s)
}

// Activate transitions a scheduled session to active.
func (m *Manager) Activate(ctx context.Context, actor identity.User, sessionID string) (Session, error) {
	if err := m.authorize(ctx, actor, sessionID); err != nil {
		return Session{}, err
	}
	s, err := m.repo.Activate(ctx, sessionID, m.nowFunc().UTC())
	if err != nil {
		return Session{}, err
	}
	m.cache.Set(ctx, s)
	metrics.SessionsStartedTotal.Inc()
	metrics.ActiveSessions.Inc()
	return s, nil
}

// Active returns the session currently collecting attendance for a class.
// The cache serves discovery only; writers re-load the session from the
// repository before trusting its state.
func (m *Manager) Active(ctx context.Context, classID string) (Session, error) {
	if s, ok := m.cache.Get(ctx, classID); ok {
		return s, nil
	}
	s, err := m.repo.ActiveByClass(ctx, classID)
	if err != nil {
		return Session{}, err
	}
	m.cache.Set(ctx, s)
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	return m.repo.GetByID(ctx, id)
}

// End transitions active -> closed. Only the owning teacher or an admin may
// end a session; students never mutate sessions.
func (m *Manager) End(ctx context.Context, actor identity.User, sessionID string) (Session, error) {
	if err := m.authorize(ctx, actor, sessionID); err != nil {
		return Session{}, err
	}
	s, err := m.repo.Close(ctx, sessionID, m.nowFunc().UTC())
	if err != nil {
		return Session{}, err
	}
	m.cache.Invalidate(ctx, s.ClassID)
	m.publishClosed(ctx, s, metrics.CloseReasonManual)
	metrics.SessionsClosedTotal.WithLabelValues(metrics.CloseReasonManual).Inc()
	metrics.ActiveSessions.Dec()
	return s, nil
}

// CloseExpired closes every active session whose scheduled end has passed.
// The worker calls this on a timer.
func (m *Manager) CloseExpired(ctx context.Context) ([]Session, error) {
	closed, err := m.repo.CloseExpired(ctx, m.nowFunc().UTC())
	if err != nil {
		return nil, err
	}
	for _, s := range closed {
		m.cache.Invalidate(ctx, s.ClassID)
		m.publishClosed(ctx, s, metrics.CloseReasonTimeout)
		metrics.SessionsClosedTotal.WithLabelValues(metrics.CloseReasonTimeout).Inc()
		metrics.ActiveSessions.Dec()
	}
	return closed, nil
}

// History lists a class's sessions, newest first.
func (m *Manager) History(ctx context.Context, classID string, limit int) ([]Session, error) {
	return m.repo.ListByClass(ctx, classID, limit)
}

func (m *Manager) authorize(ctx context.Context, actor identity.User, sessionID string) error {
	if actor.Role == identity.RoleAdmin {
		return nil
	}
	s, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.TeacherID != actor.ID {
		return apperr.New(apperr.KindInvalid, "session %s is not owned by caller", sessionID)
	}
	return nil
}

func (m *Manager) publishClosed(ctx context.Context, s Session, reason string) {
	if m.queue == nil {
		return
	}
	ended := s.EndsAt
	if s.EndedAt != nil {
		ended = *s.EndedAt
	}
	body, err := json.Marshal(ClosedEvent{SessionID: s.ID, ClassID: s.ClassID, EndedAt: ended, Reason: reason})
	if err != nil {
		return
	}
	if err := m.queue.Publish(ctx, queue.Message{Type: EventSessionClosed, Body: body}); err != nil {
		log.Printf("publish %s for session %s failed: %v", EventSessionClosed, s.ID, err)
	}
}
