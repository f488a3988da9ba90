package attendance

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"attendmate/internal/apperr"
	"attendmate/internal/metrics"
	"attendmate/internal/queue"
	"attendmate/internal/session"
)

// EventCheckinRecorded is published once per newly created record, never
// for idempotent replays.
const EventCheckinRecorded = "checkin.recorded"

// RecordedEvent is the payload for EventCheckinRecorded messages.
type RecordedEvent struct {
	SessionID   string       `json:"session_id"`
	ClassID     string       `json:"class_id"`
	StudentID   string       `json:"student_id"`
	Status      RecordStatus `json:"status"`
	CheckedInAt time.Time    `json:"checked_in_at"`
}

// SessionSource is the recorder's view of the session manager.
type SessionSource interface {
	Get(ctx context.Context, id string) (session.Session, error)
	History(ctx context.Context, classID string, limit int) ([]session.Session, error)
}

// Roster resolves which students belong to a class, for derived absence.
type Roster interface {
	EnrolledStudentIDs(ctx context.Context, classID string) ([]string, error)
}

// Recorder validates and persists check-ins.
type Recorder struct {
	store    RecordStore
	sessions SessionSource
	roster   Roster
	queue    queue.Queue
	grace    time.Duration
}

func NewRecorder(store RecordStore, sessions SessionSource, roster Roster, q queue.Queue, grace time.Duration) *Recorder {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Recorder{store: store, sessions: sessions, roster: roster, queue: q, grace: grace}
}

// CheckIn records one attendance attempt. Policy order: session state,
// geofence, lateness, then the at-most-once insert. A duplicate attempt
// succeeds with the existing record rather than creating a second one.
func (r *Recorder) CheckIn(ctx context.Context, sessionID, studentID string, coords Coordinates, observedAt time.Time) (CheckInResult, error) {
	if sessionID == "" || studentID == "" {
		return CheckInResult{}, apperr.New(apperr.KindInvalid, "session and student required")
	}
	if !coords.Valid() {
		return CheckInResult{}, apperr.New(apperr.KindInvalid, "coordinates out of bounds")
	}

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return CheckInResult{}, err
	}
	switch sess.Status {
	case session.StatusClosed:
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return CheckInResult{}, apperr.New(apperr.KindSessionClosed, "session %s is closed", sessionID)
	case session.StatusScheduled:
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return CheckInResult{}, apperr.New(apperr.KindInvalidState, "session %s is not collecting yet", sessionID)
	}
	// The reaper may lag: an active session past its scheduled end is
	// treated as closed, not silently marked late.
	if observedAt.After(sess.EndsAt) {
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return CheckInResult{}, apperr.New(apperr.KindSessionClosed, "session %s collection window has ended", sessionID)
	}

	dist := DistanceMeters(coords, Coordinates{Lat: sess.Geofence.Lat, Long: sess.Geofence.Long})
	if dist > sess.Geofence.RadiusM {
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return CheckInResult{}, apperr.New(apperr.KindOutOfRange,
			"%.0fm from session location, geofence is %.0fm", dist, sess.Geofence.RadiusM)
	}

	start := sess.StartsAt
	if sess.StartedAt != nil {
		start = *sess.StartedAt
	}
	status := StatusPresent
	if observedAt.After(start.Add(r.grace)) {
		status = StatusLate
	}

	rec := Record{
		SessionID:   sessionID,
		StudentID:   studentID,
		CheckedInAt: observedAt.UTC(),
		Coordinates: coords,
		Status:      status,
	}
	stored, created, err := r.store.InsertOrGet(ctx, rec)
	if err != nil {
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return CheckInResult{}, err
	}
	if !created {
		metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return CheckInResult{Record: stored, AlreadyRecorded: true}, nil
	}

	metrics.CheckinsTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	r.publishRecorded(ctx, sess, stored)
	return CheckInResult{Record: stored}, nil
}

// CheckOut stamps the check-out time on an existing record, once. Records
// freeze when their session closes.
func (r *Recorder) CheckOut(ctx context.Context, sessionID, studentID string, at time.Time) (Record, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if sess.Status == session.StatusClosed {
		return Record{}, apperr.New(apperr.KindSessionClosed, "session %s is closed", sessionID)
	}
	if _, err := r.store.Get(ctx, sessionID, studentID); err != nil {
		return Record{}, err
	}
	return r.store.SetCheckOut(ctx, sessionID, studentID, at.UTC())
}

// SessionRecords lists the records for one session.
func (r *Recorder) SessionRecords(ctx context.Context, sessionID string) ([]Record, error) {
	if _, err := r.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.store.BySession(ctx, sessionID)
}

// Absentees derives the students enrolled in the session's class who have
// no record for it. Absence is computed here, never written.
func (r *Recorder) Absentees(ctx context.Context, sessionID string) ([]string, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	enrolled, err := r.roster.EnrolledStudentIDs(ctx, sess.ClassID)
	if err != nil {
		return nil, err
	}
	records, err := r.store.BySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]struct{}, len(records))
	for _, rec := range records {
		recorded[rec.StudentID] = struct{}{}
	}
	var absent []string
	for _, id := range enrolled {
		if _, ok := recorded[id]; !ok {
			absent = append(absent, id)
		}
	}
	return absent, nil
}

// StudentHistory lists a student's records, newest first.
func (r *Recorder) StudentHistory(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return r.store.ByStudent(ctx, studentID, limit)
}

// StudentStats summarizes a student's attendance across their class's
// held sessions. Scheduled sessions do not count as held.
func (r *Recorder) StudentStats(ctx context.Context, studentID, classID string) (Stats, error) {
	sessions, err := r.sessions.History(ctx, classID, 500)
	if err != nil {
		return Stats{}, err
	}
	held := 0
	for _, s := range sessions {
		if s.Status != session.StatusScheduled {
			held++
		}
	}
	records, err := r.store.ByStudent(ctx, studentID, 500)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{SessionsHeld: held}
	for _, rec := range records {
		switch rec.Status {
		case StatusPresent:
			stats.Present++
		case StatusLate:
			stats.Late++
		}
	}
	stats.Absent = held - stats.Present - stats.Late
	if stats.Absent < 0 {
		stats.Absent = 0
	}
	if held > 0 {
		stats.Percentage = float64(stats.Present+stats.Late) / float64(held) * 100
	}
	return stats, nil
}

func (r *Recorder) publishRecorded(ctx context.Context, sess session.Session, rec Record) {
	if r.queue == nil {
		return
	}
	body, err := json.Marshal(RecordedEvent{
		SessionID:   rec.SessionID,
		ClassID:     sess.ClassID,
		StudentID:   rec.StudentID,
		Status:      rec.Status,
		CheckedInAt: rec.CheckedInAt,
	})
	if err != nil {
		return
	}
	if err := r.queue.Publish(ctx, queue.Message{Type: EventCheckinRecorded, Body: body}); err != nil {
		log.Printf("publish %s for session %s failed: %v", EventCheckinRecorded, rec.SessionID, err)
	}
}
