// Package orchestrator drives one check-in attempt end to end from the
// requesting device: acquire a location, find the active session, submit
// the check-in, and translate failures into user-facing outcomes.
package orchestrator

import (
	"context"
	"time"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
	"attendmate/internal/session"
)

// LocationSource produces one fresh device location. Implementations must
// not return cached fixes; the orchestrator never proceeds on a stale
// location.
type LocationSource interface {
	Current(ctx context.Context) (attendance.Coordinates, error)
}

// API is the orchestrator's view of the attendance service.
type API interface {
	ActiveSession(ctx context.Context, classID string) (session.Session, error)
	CheckIn(ctx context.Context, sessionID string, coords attendance.Coordinates, observedAt time.Time) (attendance.CheckInResult, error)
}

// Outcome is the user-facing classification of an attempt. Each maps to a
// different remediation, so a generic failure is never reported when a
// specific one is known.
type Outcome string

const (
	OutcomeRecorded            Outcome = "recorded"
	OutcomeAlreadyRecorded     Outcome = "already_recorded"
	OutcomeOutOfRange          Outcome = "out_of_range"
	OutcomeNoActiveSession     Outcome = "no_active_session"
	OutcomeSessionClosed       Outcome = "session_closed"
	OutcomeLocationUnavailable Outcome = "location_unavailable"
	OutcomeCancelled           Outcome = "cancelled"
	OutcomeFailed              Outcome = "failed"
)

// Result is the terminal state of one attempt.
type Result struct {
	Outcome Outcome
	Record  *attendance.Record
	Message string
}

// Orchestrator serializes one student's check-in attempts. It performs no
// automatic retries: location and session state may have changed, so a
// failed attempt requires a new explicit user action.
type Orchestrator struct {
	location LocationSource
	api      API

	nowFunc func() time.Time
}

func New(location LocationSource, api API) *Orchestrator {
	return &Orchestrator{location: location, api: api, nowFunc: time.Now}
}

// Attempt drives one check-in. The steps run in order and the first failure
// halts the attempt: a check-in is never submitted without real coordinates
// and never submitted when no session is collecting. Cancellation of ctx
// stops the attempt between steps, so an abandoned request cannot complete
// a check-in afterwards.
func (o *Orchestrator) Attempt(ctx context.Context, classID string) Result {
	coords, err := o.location.Current(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Message: "attempt abandoned"}
		}
		return Result{Outcome: OutcomeLocationUnavailable, Message: "could not determine your location: " + err.Error()}
	}
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCancelled, Message: "attempt abandoned"}
	}

	sess, err := o.api.ActiveSession(ctx, classID)
	if err != nil {
		return o.classify(ctx, err)
	}
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCancelled, Message: "attempt abandoned"}
	}

	result, err := o.api.CheckIn(ctx, sess.ID, coords, o.nowFunc().UTC())
	if err != nil {
		return o.classify(ctx, err)
	}

	if result.AlreadyRecorded {
		return Result{Outcome: OutcomeAlreadyRecorded, Record: &result.Record,
			Message: "attendance was already recorded for this session"}
	}
	return Result{Outcome: OutcomeRecorded, Record: &result.Record,
		Message: "attendance recorded as " + string(result.Record.Status)}
}

func (o *Orchestrator) classify(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		return Result{Outcome: OutcomeCancelled, Message: "attempt abandoned"}
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return Result{Outcome: OutcomeNoActiveSession, Message: "no class session is collecting attendance right now"}
	case apperr.KindOutOfRange:
		return Result{Outcome: OutcomeOutOfRange, Message: "you are outside the session's check-in area: " + err.Error()}
	case apperr.KindSessionClosed, apperr.KindInvalidState:
		return Result{Outcome: OutcomeSessionClosed, Message: "the session is no longer accepting check-ins"}
	case apperr.KindNetwork:
		return Result{Outcome: OutcomeFailed, Message: "could not reach the attendance service; try again"}
	}
	return Result{Outcome: OutcomeFailed, Message: err.Error()}
}
