package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendmate/internal/identity"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "attendmate-test"
)

func TestIssueAndParse(t *testing.T) {
	u := identity.User{ID: "student-42", Role: identity.RoleStudent}
	pair, err := Issue(u, testIssuer, testKey, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := Parse(pair.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "student-42", claims.Subject)
	assert.Equal(t, string(identity.RoleStudent), claims.Role)
}

func TestParseRejections(t *testing.T) {
	u := identity.User{ID: "teacher-1", Role: identity.RoleTeacher}
	pair, err := Issue(u, testIssuer, testKey, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		key    string
		issuer string
	}{
		{"wrong key", pair.AccessToken, "other-key", testIssuer},
		{"wrong issuer", pair.AccessToken, testKey, "someone-else"},
		{"garbage token", "not.a.jwt", testKey, testIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.key, tt.issuer)
			assert.Error(t, err)
		})
	}
}

func TestParseExpired(t *testing.T) {
	u := identity.User{ID: "student-42", Role: identity.RoleStudent}
	pair, err := Issue(u, testIssuer, testKey, -time.Minute, time.Hour)
	require.NoError(t, err)

	_, err = Parse(pair.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}
