package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendmate/internal/apperr"
	"attendmate/internal/identity"
	"attendmate/internal/session"
	"attendmate/internal/store/inmem"
)

var (
	teacher      = identity.User{ID: "teacher-1", Role: identity.RoleTeacher}
	otherTeacher = identity.User{ID: "teacher-2", Role: identity.RoleTeacher}
	admin        = identity.User{ID: "admin-1", Role: identity.RoleAdmin}

	fence = session.Geofence{Lat: 12.9716, Long: 77.5946, RadiusM: 100}
)

func newManager(t *testing.T) (*session.Manager, *inmem.SessionRepository) {
	t.Helper()
	repo := inmem.NewSessionRepository()
	return session.NewManager(repo, nil, nil), repo
}

func TestStartSession(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Start(ctx, teacher, "class-1", fence, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, s.Status)
	assert.Equal(t, teacher.ID, s.TeacherID)
	require.NotNil(t, s.StartedAt)
	assert.Equal(t, s.StartedAt.Add(time.Hour), s.EndsAt)
}

func TestStartSessionConflict(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Start(ctx, teacher, "class-1", fence, time.Hour)
	require.NoError(t, err)

	_, err = m.Start(ctx, otherTeacher, "class-1", fence, time.Hour)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// a different class is unaffected
	_, err = m.Start(ctx, otherTeacher, "class-2", fence, time.Hour)
	assert.NoError(t, err)
}

func TestStartSessionConcurrent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Start(ctx, teacher, "class-1", fence, time.Hour); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one concurrent start succeeds")
}

func TestStartSessionValidation(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		classID  string
		fence    session.Geofence
		duration time.Duration
	}{
		{"missing class", "", fence, time.Hour},
		{"zero radius", "class-1", session.Geofence{Lat: 1, Long: 1}, time.Hour},
		{"lat out of bounds", "class-1", session.Geofence{Lat: 91, Long: 1, RadiusM: 50}, time.Hour},
		{"zero duration", "class-1", fence, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Start(ctx, teacher, tt.classID, tt.fence, tt.duration)
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
		})
	}
}

func TestScheduleThenActivate(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Schedule(ctx, teacher, "class-1", fence, time.Now().Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, session.StatusScheduled, s.Status)

	// scheduled sessions are not discoverable as active
	_, err = m.Active(ctx, "class-1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	activated, err := m.Activate(ctx, teacher, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, activated.Status)

	found, err := m.Active(ctx, "class-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, found.ID)
}

func TestEndSession(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Start(ctx, teacher, "class-1", fence, time.Hour)
	require.NoError(t, err)

	ended, err := m.End(ctx, teacher, s.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusClosed, ended.Status)
	require.NotNil(t, ended.EndedAt)

	// closed is terminal
	_, err = m.End(ctx, teacher, s.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	_, err = m.Activate(ctx, teacher, s.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	// the class can host a new session afterwards
	_, err = m.Start(ctx, teacher, "class-1", fence, time.Hour)
	assert.NoError(t, err)
}

func TestEndSessionOwnership(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	s, err := m.Start(ctx, teacher, "class-1", fence, time.Hour)
	require.NoError(t, err)

	_, err = m.End(ctx, otherTeacher, s.ID)
	require.Error(t, err, "non-owning teacher cannot end")

	_, err = m.End(ctx, admin, s.ID)
	assert.NoError(t, err, "admin may end any session")
}

func TestCloseExpired(t *testing.T) {
	m, repo := newManager(t)
	ctx := context.Background()

	started := time.Now().Add(-2 * time.Hour).UTC()
	expired := session.Session{
		ClassID:   "class-1",
		TeacherID: teacher.ID,
		Status:    session.StatusActive,
		StartsAt:  started,
		StartedAt: &started,
		EndsAt:    started.Add(time.Hour),
		Geofence:  fence,
	}
	expired, err := repo.Create(ctx, expired)
	require.NoError(t, err)

	fresh, err := m.Start(ctx, teacher, "class-2", fence, time.Hour)
	require.NoError(t, err)

	closed, err := m.CloseExpired(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, expired.ID, closed[0].ID)

	still, err := m.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusActive, still.Status)
}

func TestCollectingWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := session.Session{Status: session.StatusActive, EndsAt: start.Add(time.Hour)}

	assert.True(t, s.Collecting(start.Add(30*time.Minute)))
	assert.True(t, s.Collecting(start.Add(time.Hour)))
	assert.False(t, s.Collecting(start.Add(time.Hour+time.Second)))

	s.Status = session.StatusClosed
	assert.False(t, s.Collecting(start))
}
