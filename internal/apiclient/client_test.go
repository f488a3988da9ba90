package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendmate/internal/apperr"
	"attendmate/internal/attendance"
)

func TestActiveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/classes/class-1/session", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"s1","class_id":"class-1","status":"active"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	s, err := c.ActiveSession(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
}

func TestCheckInDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkins", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"record":{"id":"r1","status":"present"},"already_recorded":false}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	result, err := c.CheckIn(context.Background(), "s1",
		attendance.Coordinates{Lat: 12.9716, Long: 77.5946}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "r1", result.Record.ID)
	assert.False(t, result.AlreadyRecorded)
}

func TestErrorKindsSurviveTheWire(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Kind
	}{
		{"out of range", http.StatusUnprocessableEntity, `{"error":"312m from the session area","kind":"out_of_range"}`, apperr.KindOutOfRange},
		{"session closed", http.StatusConflict, `{"error":"session closed","kind":"session_closed"}`, apperr.KindSessionClosed},
		{"not found", http.StatusNotFound, `{"error":"no active session","kind":"not_found"}`, apperr.KindNotFound},
		{"untyped body", http.StatusBadGateway, `upstream timeout`, apperr.KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := New(srv.URL, "tok", time.Second)
			_, err := c.ActiveSession(context.Background(), "class-1")
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestUnreachableServiceIsNetworkKind(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok", 200*time.Millisecond)
	_, err := c.ActiveSession(context.Background(), "class-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}
