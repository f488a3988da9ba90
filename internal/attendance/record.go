package attendance

import "time"

// RecordStatus is the stored outcome of a check-in. Absence is never
// stored; it is derived at read time from the class roster.
type RecordStatus string

const (
	StatusPresent RecordStatus = "present"
	StatusLate    RecordStatus = "late"
	// StatusAbsent appears only in derived views, never in storage.
	StatusAbsent RecordStatus = "absent"
)

// Record is one student's check-in outcome for one session. At most one
// record exists per (session, student); the unique index in storage is the
// authoritative guard.
type Record struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id"`
	StudentID    string       `json:"student_id"`
	CheckedInAt  time.Time    `json:"checked_in_at"`
	Coordinates  Coordinates  `json:"coordinates"`
	Status       RecordStatus `json:"status"`
	CheckedOutAt *time.Time   `json:"checked_out_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CheckInResult is what the recorder hands back: the surviving record plus
// whether this call created it or replayed an earlier success.
type CheckInResult struct {
	Record          Record `json:"record"`
	AlreadyRecorded bool   `json:"already_recorded"`
}

// Stats summarizes one student's attendance across their class's sessions.
type Stats struct {
	SessionsHeld int     `json:"sessions_held"`
	Present      int     `json:"present"`
	Late         int     `json:"late"`
	Absent       int     `json:"absent"`
	Percentage   float64 `json:"attendance_percentage"`
}
