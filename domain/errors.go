package domain

import "errors"

// Local validation errors. These never reach the AuthClient.
var (
	ErrInvalidNIK       = errors.New("nik must be exactly 16 digits")
	ErrEmptySecret      = errors.New("password must not be empty")
	ErrInvalidOtpFormat = errors.New("otp code must be exactly 6 digits")
)

// State machine errors returned synchronously to callers.
var (
	ErrRequestInFlight = errors.New("a request is already in flight")
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrResendThrottled = errors.New("resend cooldown has not elapsed")
)

// Transport errors
var (
	// ErrUnreachable marks transport-level failures: timeouts, connection
	// errors, non-success HTTP statuses, undecodable bodies.
	ErrUnreachable = errors.New("authentication service unreachable")
)

// Session errors
var (
	ErrSessionExpired = errors.New("session has expired")
	ErrNoSession      = errors.New("no stored session")
)

// RejectedError is a business-level rejection from the backend (bad
// credentials, bad code, malformed request). Message is the backend's
// verbatim user-facing text.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected"
	}
	return e.Message
}

// IsRejected reports whether err is a backend rejection and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsUnreachable reports whether err is a transport failure.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
