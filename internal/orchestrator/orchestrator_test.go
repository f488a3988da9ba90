package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
	"attendmate/internal/session"
)

type fixedLocation struct {
	coords attendance.Coordinates
	err    error
}

func (f fixedLocation) Current(ctx context.Context) (attendance.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Coordinates{}, err
	}
	return f.coords, f.err
}

type fakeAPI struct {
	session    session.Session
	sessionErr error
	result     attendance.CheckInResult
	checkInErr error

	checkInCalls int
}

func (f *fakeAPI) ActiveSession(ctx context.Context, classID string) (session.Session, error) {
	return f.session, f.sessionErr
}

func (f *fakeAPI) CheckIn(ctx context.Context, sessionID string, coords attendance.Coordinates, observedAt time.Time) (attendance.CheckInResult, error) {
	f.checkInCalls++
	return f.result, f.checkInErr
}

var here = attendance.Coordinates{Lat: 12.9716, Long: 77.5946}

func TestAttemptSuccess(t *testing.T) {
	api := &fakeAPI{
		session: session.Session{ID: "s1"},
		result:  attendance.CheckInResult{Record: attendance.Record{ID: "r1", Status: attendance.StatusPresent}},
	}
	o := New(fixedLocation{coords: here}, api)

	result := o.Attempt(context.Background(), "class-1")
	assert.Equal(t, OutcomeRecorded, result.Outcome)
	require.NotNil(t, result.Record)
	assert.Equal(t, "r1", result.Record.ID)
	assert.Equal(t, 1, api.checkInCalls)
}

func TestAttemptAlreadyRecorded(t *testing.T) {
	api := &fakeAPI{
		session: session.Session{ID: "s1"},
		result: attendance.CheckInResult{
			Record:          attendance.Record{ID: "r1", Status: attendance.StatusPresent},
			AlreadyRecorded: true,
		},
	}
	o := New(fixedLocation{coords: here}, api)

	result := o.Attempt(context.Background(), "class-1")
	assert.Equal(t, OutcomeAlreadyRecorded, result.Outcome)
}

func TestAttemptLocationFailureHaltsBeforeAPI(t *testing.T) {
	api := &fakeAPI{}
	o := New(fixedLocation{err: errors.New("permission denied")}, api)

	result := o.Attempt(context.Background(), "class-1")
	assert.Equal(t, OutcomeLocationUnavailable, result.Outcome)
	assert.Equal(t, 0, api.checkInCalls, "check-in must not be submitted without coordinates")
}

func TestAttemptNoActiveSessionHaltsBeforeCheckIn(t *testing.T) {
	api := &fakeAPI{sessionErr: apperr.New(apperr.KindNotFound, "no active session")}
	o := New(fixedLocation{coords: here}, api)

	result := o.Attempt(context.Background(), "class-1")
	assert.Equal(t, OutcomeNoActiveSession, result.Outcome)
	assert.Equal(t, 0, api.checkInCalls)
}

func TestAttemptOutcomeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"out of range", apperr.New(apperr.KindOutOfRange, "120m away"), OutcomeOutOfRange},
		{"session closed", apperr.New(apperr.KindSessionClosed, "closed"), OutcomeSessionClosed},
		{"not collecting", apperr.New(apperr.KindInvalidState, "scheduled"), OutcomeSessionClosed},
		{"network", apperr.New(apperr.KindNetwork, "unreachable"), OutcomeFailed},
		{"unknown", errors.New("boom"), OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{session: session.Session{ID: "s1"}, checkInErr: tt.err}
			o := New(fixedLocation{coords: here}, api)
			result := o.Attempt(context.Background(), "class-1")
			assert.Equal(t, tt.want, result.Outcome)
		})
	}
}

func TestAttemptCancelled(t *testing.T) {
	api := &fakeAPI{session: session.Session{ID: "s1"}}
	o := New(fixedLocation{coords: here}, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := o.Attempt(ctx, "class-1")
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, 0, api.checkInCalls, "an abandoned attempt must not complete a check-in")
}
