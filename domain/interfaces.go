package domain

import (
	"context"
	"time"
)

// AuthClient issues the remote calls against the panel's authentication
// endpoint. Every method returns either a normalized outcome, a
// *RejectedError carrying the backend's verbatim message, or an error
// wrapping ErrUnreachable. Implementations must never retry login or
// verify-otp on their own.
type AuthClient interface {
	Login(ctx context.Context, creds Credentials) (*LoginOutcome, error)
	VerifyOtp(ctx context.Context, nik, code string) (*VerifyOutcome, error)
	ResendOtp(ctx context.Context, nik string) (*ResendOutcome, error)
	ValidateSession(ctx context.Context, token string) (*UserProfile, error)
	Logout(ctx context.Context, token string) error
}

// SessionStore wraps client-local persistent storage for the session
// token and the pending-NIK scratch value. All operations are synchronous
// from the caller's perspective. Expiry policy does not live here.
type SessionStore interface {
	SaveToken(token string, establishedAt time.Time) error
	LoadToken() (token string, establishedAt time.Time, ok bool)
	ClearToken() error

	SavePendingNIK(nik string) error
	LoadPendingNIK() (string, bool)
	ClearPendingNIK() error
}

// TimerHandle identifies a scheduled timer. The zero value is never a
// valid handle.
type TimerHandle uint64

// TimerService schedules one-shot and repeating callbacks. Callbacks run
// on timer goroutines; consumers serialize internally.
type TimerService interface {
	StartOneShot(d time.Duration, fn func()) TimerHandle
	StartInterval(period time.Duration, fn func()) TimerHandle
	Cancel(h TimerHandle)
}
