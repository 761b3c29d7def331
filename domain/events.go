package domain

import "time"

// AuthState is the state machine's externally visible state.
type AuthState string

const (
	StateUnauthenticated AuthState = "UNAUTHENTICATED"
	StateLoginSubmitting AuthState = "LOGIN_SUBMITTING"
	StateOtpPending      AuthState = "OTP_PENDING"
	StateOtpSubmitting   AuthState = "OTP_SUBMITTING"
	StateAuthenticated   AuthState = "AUTHENTICATED"
	StateResuming        AuthState = "RESUMING"
)

// EventType identifies a state machine notification.
type EventType string

const (
	EventStateChanged       EventType = "STATE_CHANGED"
	EventOtpExpired         EventType = "OTP_EXPIRED"
	EventOtpResent          EventType = "OTP_RESENT"
	EventCooldownStarted    EventType = "COOLDOWN_STARTED"
	EventCooldownTick       EventType = "COOLDOWN_TICK"
	EventCooldownEnded      EventType = "COOLDOWN_ENDED"
	EventAuthError          EventType = "AUTH_ERROR"
	EventSessionEstablished EventType = "SESSION_ESTABLISHED"
	EventLoggedOut          EventType = "LOGGED_OUT"
)

// ErrorKind classifies an EventAuthError for the UI layer.
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION"
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	KindInvalidOtp         ErrorKind = "INVALID_OTP"
	KindNetwork            ErrorKind = "NETWORK"
	KindSessionExpired     ErrorKind = "SESSION_EXPIRED"
	KindResend             ErrorKind = "RESEND_FAILED"
)

// Event is a notification emitted by the state machine. Only the fields
// relevant to Type are populated.
type Event struct {
	Type      EventType
	From, To  AuthState     // EventStateChanged
	Kind      ErrorKind     // EventAuthError
	Message   string        // EventAuthError: verbatim user-facing text
	Cooldown  time.Duration // EventCooldownStarted
	OtpLeft   time.Duration // EventCooldownTick: OTP expiry remaining
	ResendIn  time.Duration // EventCooldownTick: resend unlock remaining
	User      *UserProfile  // EventSessionEstablished
	Timestamp time.Time
}

// Observer receives state machine notifications. Callbacks are invoked
// outside the machine's lock; calling back into the machine is safe.
type Observer interface {
	OnAuthEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnAuthEvent(e Event) { f(e) }
