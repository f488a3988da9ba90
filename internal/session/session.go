package session

import "time"

// Status is a session's lifecycle state. Transitions go strictly
// scheduled -> active -> closed; closed is terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
)

// Geofence is the circular boundary inside which a check-in counts.
type Geofence struct {
	Lat     float64 `json:"lat"`
	Long    float64 `json:"long"`
	RadiusM float64 `json:"radius_m"`
}

// Session is one instructional period for one class. At most one session
// per class is active at any time; the partial unique index on the sessions
// table is the authoritative guard.
type Session struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"class_id"`
	TeacherID string     `json:"teacher_id"`
	Status    Status     `json:"status"`
	StartsAt  time.Time  `json:"starts_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndsAt    time.Time  `json:"ends_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Geofence  Geofence   `json:"geofence"`
	CreatedAt time.Time  `json:"created_at"`
}

// Collecting reports whether a check-in observed at t belongs to this
// session's collection window. A session past its scheduled end no longer
// collects even if the reaper has not closed it yet.
func (s Session) Collecting(t time.Time) bool {
	return s.Status == StatusActive && !t.After(s.EndsAt)
}
