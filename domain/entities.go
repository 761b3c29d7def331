package domain

import "time"

// Credentials represents the password-login form input.
// NIK is the 16-digit national identity number used as the login id.
type Credentials struct {
	NIK    string
	Secret string
}

// Validate checks the credentials locally before any network call.
func (c Credentials) Validate() error {
	if !isDigits(c.NIK, 16) {
		return ErrInvalidNIK
	}
	if c.Secret == "" {
		return ErrEmptySecret
	}
	return nil
}

// ValidateOtpCode checks that code is exactly 6 ASCII digits.
func ValidateOtpCode(code string) error {
	if !isDigits(code, 6) {
		return ErrInvalidOtpFormat
	}
	return nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// PendingAuth is the scratch state held between a successful password
// step and OTP verification. Destroyed on verification or cancel.
type PendingAuth struct {
	NIK              string
	ProvisionalToken string
}

// UserProfile is the display payload returned by the backend. The client
// never inspects it beyond optional-field presence.
type UserProfile struct {
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Session is the only persisted authentication artifact.
type Session struct {
	Token         string
	User          *UserProfile
	EstablishedAt time.Time
}

// Age reports how long ago the session was established.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.EstablishedAt)
}

// LoginOutcome is the normalized result of the login call. Either
// OtpRequired is set (with an optional provisional token), or the no-OTP
// path delivered a session token and profile directly.
type LoginOutcome struct {
	OtpRequired      bool
	ProvisionalToken string
	Token            string
	User             *UserProfile
}

// VerifyOutcome is the normalized result of a successful verify-otp call.
type VerifyOutcome struct {
	Token string
	User  *UserProfile
}

// ResendOutcome is the normalized result of a successful resend-otp call.
type ResendOutcome struct {
	ProvisionalToken string
}
