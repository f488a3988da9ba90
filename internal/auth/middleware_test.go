package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendmate/internal/identity"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	protected := r.Group("", Require(testKey, testIssuer))
	protected.GET("/me", func(c *gin.Context) {
		caller, _ := Caller(c)
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "role": string(caller.Role)})
	})
	teacherOnly := protected.Group("", RequireRole(identity.RoleTeacher, identity.RoleAdmin))
	teacherOnly.GET("/teaching", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func tokenFor(t *testing.T, u identity.User) string {
	t.Helper()
	pair, err := Issue(u, testIssuer, testKey, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestRequire(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + tokenFor(t, identity.User{ID: "s1", Role: identity.RoleStudent}), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		name     string
		user     identity.User
		wantCode int
	}{
		{"student forbidden", identity.User{ID: "s1", Role: identity.RoleStudent}, http.StatusForbidden},
		{"teacher allowed", identity.User{ID: "t1", Role: identity.RoleTeacher}, http.StatusOK},
		{"admin allowed", identity.User{ID: "a1", Role: identity.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teaching", nil)
			req.Header.Set("Authorization", "Bearer "+tokenFor(t, tt.user))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
