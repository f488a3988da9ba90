package identity

import (
	"encoding/json"
	"strings"

	"attendmate/internal/apperr"
)

// Profile is the subset of the external identity provider's response the
// service consumes. Fields are optional on the wire; DecodeProfile is where
// they stop being optional.
type Profile struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	ClassID    string `json:"class_id"`
	Active     *bool  `json:"active"`
}

// DecodeProfile maps a raw provider response into a validated User. Any
// missing or malformed field fails the operation; a plausible-looking user
// is never fabricated from a partial response.
func DecodeProfile(raw []byte) (User, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return User{}, apperr.Wrap(apperr.KindInvalid, err, "malformed identity profile")
	}

	if strings.TrimSpace(p.ExternalID) == "" {
		return User{}, apperr.New(apperr.KindInvalid, "identity profile missing id")
	}
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		return User{}, apperr.New(apperr.KindInvalid, "identity profile missing email")
	}
	role, err := ParseRole(p.Role)
	if err != nil {
		return User{}, err
	}
	if role == RoleStudent && strings.TrimSpace(p.ClassID) == "" {
		return User{}, apperr.New(apperr.KindInvalid, "student profile missing class_id")
	}
	if p.Active == nil {
		return User{}, apperr.New(apperr.KindInvalid, "identity profile missing active flag")
	}

	return User{
		ID:      p.ExternalID,
		Name:    strings.TrimSpace(p.Name),
		Email:   strings.ToLower(strings.TrimSpace(p.Email)),
		Role:    role,
		ClassID: strings.TrimSpace(p.ClassID),
		Active:  *p.Active,
	}, nil
}
