package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
)

type recordKey struct {
	sessionID string
	studentID string
}

// RecordStore keeps attendance records keyed by (session, student); one
// mutex makes InsertOrGet atomic like the unique index it stands in for.
type RecordStore struct {
	mu      sync.Mutex
	records map[recordKey]attendance.Record
}

func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[recordKey]attendance.Record)}
}

func (s *RecordStore) InsertOrGet(_ context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.SessionID, rec.StudentID}
	if existing, ok := s.records[key]; ok {
		return existing, false, nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	s.records[key] = rec
	return rec, true, nil
}

func (s *RecordStore) Get(_ context.Context, sessionID, studentID string) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey{sessionID, studentID}]
	if !ok {
		return attendance.Record{}, apperr.New(apperr.KindNotFound, "no attendance record for session %s", sessionID)
	}
	return rec, nil
}

func (s *RecordStore) SetCheckOut(_ context.Context, sessionID, studentID string, at time.Time) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{sessionID, studentID}
	rec, ok := s.records[key]
	if !ok || rec.CheckedOutAt != nil {
		return attendance.Record{}, apperr.New(apperr.KindInvalidState, "record already checked out or missing")
	}
	rec.CheckedOutAt = &at
	s.records[key] = rec
	return rec, nil
}

func (s *RecordStore) BySession(_ context.Context, sessionID string) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []attendance.Record
	for _, rec := range s.records {
		if rec.SessionID == sessionID {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CheckedInAt.Before(res[j].CheckedInAt) })
	return res, nil
}

func (s *RecordStore) ByStudent(_ context.Context, studentID string, limit int) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var res []attendance.Record
	for _, rec := range s.records {
		if rec.StudentID == studentID {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CheckedInAt.After(res[j].CheckedInAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
