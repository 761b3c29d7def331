// Package services contains the authentication state machine that drives
// the panel's login → OTP → session flow.
package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// Config carries the machine's temporal policy.
type Config struct {
	// OtpExpiry is the lifetime of one issued OTP code.
	OtpExpiry time.Duration
	// ResendCooldowns is the escalating resend throttle table, indexed by
	// attempt count and capped at the last entry.
	ResendCooldowns []time.Duration
	// SessionMaxAge is the local session ceiling checked on resume.
	// Zero disables the check; the backend stays authoritative either way.
	SessionMaxAge time.Duration
}

const tickPeriod = time.Second

// Machine owns the authentication state, the OTP timers and the resend
// backoff counter. All mutable state lives on the instance; transitions
// serialize on one mutex and notifications go out after it is released.
type Machine struct {
	cfg    Config
	client domain.AuthClient
	store  domain.SessionStore
	timers domain.TimerService
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   domain.AuthState
	session *domain.Session
	pending *domain.PendingAuth

	// resend backoff; resets only on fresh login or logout
	attempts int

	// epoch guards against stale network and timer completions: it
	// advances whenever the episode that issued them is torn down.
	epoch uint64

	expiryTimer    domain.TimerHandle
	cooldownTimer  domain.TimerHandle
	tickTimer      domain.TimerHandle
	otpDeadline    time.Time
	cooldownUntil  time.Time
	cooldownActive bool
	otpExpired     bool
	resendInFlight bool

	observers []domain.Observer
}

// NewMachine builds the machine and decides the initial state: Resuming
// when a stored session token exists, Unauthenticated otherwise.
func NewMachine(cfg Config, client domain.AuthClient, store domain.SessionStore, timers domain.TimerService, logger *zap.Logger) *Machine {
	m := &Machine{
		cfg:    cfg,
		client: client,
		store:  store,
		timers: timers,
		logger: logger,
		now:    time.Now,
		state:  domain.StateUnauthenticated,
	}
	if _, _, ok := store.LoadToken(); ok {
		m.state = domain.StateResuming
	}
	return m
}

// Subscribe registers an observer for state machine notifications.
func (m *Machine) Subscribe(obs domain.Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// State returns the current state.
func (m *Machine) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the established session, or nil outside Authenticated.
func (m *Machine) Session() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// ResendAvailable reports whether a resend would currently be accepted.
func (m *Machine) ResendAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.StateOtpPending && !m.cooldownActive && !m.resendInFlight
}

// Resume revalidates a stored session token against the backend and moves
// to Authenticated or Unauthenticated. A no-op outside Resuming.
func (m *Machine) Resume(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.StateResuming {
		m.mu.Unlock()
		return nil
	}

	token, establishedAt, ok := m.store.LoadToken()
	if !ok {
		events := m.toUnauthenticatedLocked()
		m.mu.Unlock()
		m.dispatch(events)
		return domain.ErrNoSession
	}

	if m.cfg.SessionMaxAge > 0 && !establishedAt.IsZero() && m.now().Sub(establishedAt) >= m.cfg.SessionMaxAge {
		m.store.ClearToken()
		events := m.toUnauthenticatedLocked()
		events = append(events, m.errorEventLocked(domain.KindSessionExpired, domain.ErrSessionExpired.Error()))
		m.mu.Unlock()
		m.dispatch(events)
		return domain.ErrSessionExpired
	}

	epoch := m.epoch
	m.mu.Unlock()

	user, err := m.client.ValidateSession(ctx, token)

	m.mu.Lock()
	if m.epoch != epoch || m.state != domain.StateResuming {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		// Rejected and unreachable both clear the token and land in
		// Unauthenticated; only the reported error kind differs.
		m.store.ClearToken()
		kind := domain.KindSessionExpired
		msg := domain.ErrSessionExpired.Error()
		if domain.IsUnreachable(err) {
			kind = domain.KindNetwork
			msg = err.Error()
		}
		events := m.toUnauthenticatedLocked()
		events = append(events, m.errorEventLocked(kind, msg))
		m.mu.Unlock()
		m.dispatch(events)
		m.logger.Info("session revalidation failed", zap.Error(err))
		return err
	}

	m.session = &domain.Session{Token: token, User: user, EstablishedAt: establishedAt}
	events := []domain.Event{
		m.setStateLocked(domain.StateAuthenticated),
		{Type: domain.EventSessionEstablished, User: user, Timestamp: m.now()},
	}
	m.mu.Unlock()
	m.dispatch(events)
	return nil
}

// SubmitLogin validates the credentials locally, then performs the login
// call. Local validation failures and a login already in flight are
// reported synchronously without touching the network.
func (m *Machine) SubmitLogin(ctx context.Context, nik, secret string) error {
	creds := domain.Credentials{NIK: nik, Secret: secret}
	if err := creds.Validate(); err != nil {
		m.mu.Lock()
		events := []domain.Event{m.errorEventLocked(domain.KindValidation, err.Error())}
		m.mu.Unlock()
		m.dispatch(events)
		return err
	}

	m.mu.Lock()
	switch m.state {
	case domain.StateUnauthenticated:
	case domain.StateLoginSubmitting:
		m.mu.Unlock()
		return domain.ErrRequestInFlight
	default:
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	epoch := m.epoch
	events := []domain.Event{m.setStateLocked(domain.StateLoginSubmitting)}
	m.mu.Unlock()
	m.dispatch(events)

	outcome, err := m.client.Login(ctx, creds)

	m.mu.Lock()
	if m.epoch != epoch || m.state != domain.StateLoginSubmitting {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		events := []domain.Event{m.setStateLocked(domain.StateUnauthenticated)}
		events = append(events, m.callErrorEventLocked(err, domain.KindInvalidCredentials))
		m.mu.Unlock()
		m.dispatch(events)
		return err
	}

	if outcome.OtpRequired {
		events := m.enterOtpPendingLocked(creds.NIK, outcome.ProvisionalToken)
		m.mu.Unlock()
		m.dispatch(events)
		m.logger.Info("otp step required", zap.String("nik", maskNIK(creds.NIK)))
		return nil
	}

	events = m.establishSessionLocked(outcome.Token, outcome.User)
	m.mu.Unlock()
	m.dispatch(events)
	return nil
}

// SubmitOtp validates the code locally, then performs the verify call.
// A failed verification returns to OtpPending with both timers untouched.
func (m *Machine) SubmitOtp(ctx context.Context, code string) error {
	if err := domain.ValidateOtpCode(code); err != nil {
		m.mu.Lock()
		events := []domain.Event{m.errorEventLocked(domain.KindValidation, err.Error())}
		m.mu.Unlock()
		m.dispatch(events)
		return err
	}

	m.mu.Lock()
	switch m.state {
	case domain.StateOtpPending:
	case domain.StateOtpSubmitting:
		m.mu.Unlock()
		return domain.ErrRequestInFlight
	default:
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	epoch := m.epoch
	nik := m.pending.NIK
	events := []domain.Event{m.setStateLocked(domain.StateOtpSubmitting)}
	m.mu.Unlock()
	m.dispatch(events)

	outcome, err := m.client.VerifyOtp(ctx, nik, code)

	m.mu.Lock()
	if m.epoch != epoch || m.state != domain.StateOtpSubmitting {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		// Timers keep running: a failed attempt does not reset expiry.
		events := []domain.Event{m.setStateLocked(domain.StateOtpPending)}
		events = append(events, m.callErrorEventLocked(err, domain.KindInvalidOtp))
		m.mu.Unlock()
		m.dispatch(events)
		return err
	}

	events = m.establishSessionLocked(outcome.Token, outcome.User)
	m.mu.Unlock()
	m.dispatch(events)
	return nil
}

// ResendOtp requests a fresh code. Only permitted in OtpPending when the
// cooldown has elapsed and no resend is in flight. On success the expiry
// timer restarts at full duration and the cooldown restarts at the table
// entry for the incremented attempt count. On failure neither timer is
// touched.
func (m *Machine) ResendOtp(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.StateOtpPending {
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	if m.resendInFlight {
		m.mu.Unlock()
		return domain.ErrRequestInFlight
	}
	if m.cooldownActive {
		m.mu.Unlock()
		return domain.ErrResendThrottled
	}
	m.resendInFlight = true
	epoch := m.epoch
	nik := m.pending.NIK
	m.mu.Unlock()

	outcome, err := m.client.ResendOtp(ctx, nik)

	m.mu.Lock()
	if m.epoch == epoch {
		m.resendInFlight = false
	}
	if m.epoch != epoch || m.state != domain.StateOtpPending {
		m.mu.Unlock()
		return nil
	}

	if err != nil {
		events := []domain.Event{m.callErrorEventLocked(err, domain.KindResend)}
		m.mu.Unlock()
		m.dispatch(events)
		return err
	}

	m.attempts++
	attempt := m.attempts
	if outcome.ProvisionalToken != "" {
		m.pending.ProvisionalToken = outcome.ProvisionalToken
	}
	m.otpExpired = false
	m.startExpiryTimerLocked()
	cooldown := m.startCooldownTimerLocked()
	events := []domain.Event{
		{Type: domain.EventOtpResent, Timestamp: m.now()},
		{Type: domain.EventCooldownStarted, Cooldown: cooldown, Timestamp: m.now()},
	}
	m.mu.Unlock()
	m.dispatch(events)
	m.logger.Info("otp resent", zap.Int("attempt", attempt), zap.Duration("cooldown", cooldown))
	return nil
}

// Cancel abandons the OTP step and returns to the login form. Both timers
// are cancelled and any in-flight resend or verify completion for this
// episode will be discarded.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if m.state != domain.StateOtpPending {
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	events := m.toUnauthenticatedLocked()
	m.mu.Unlock()
	m.dispatch(events)
	return nil
}

// Logout ends the session. The remote call is best-effort: local state
// and the stored token are cleared regardless of its outcome.
func (m *Machine) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.StateAuthenticated {
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	token := m.session.Token
	m.session = nil
	m.store.ClearToken()
	events := m.toUnauthenticatedLocked()
	events = append(events, domain.Event{Type: domain.EventLoggedOut, Timestamp: m.now()})
	m.mu.Unlock()
	m.dispatch(events)

	if err := m.client.Logout(ctx, token); err != nil {
		m.logger.Warn("remote logout failed", zap.Error(err))
	}
	return nil
}

// enterOtpPendingLocked starts a fresh OTP episode: new PendingAuth,
// backoff reset to zero, expiry at full duration, cooldown at table[0].
func (m *Machine) enterOtpPendingLocked(nik, provisionalToken string) []domain.Event {
	m.pending = &domain.PendingAuth{NIK: nik, ProvisionalToken: provisionalToken}
	m.attempts = 0
	m.otpExpired = false
	m.resendInFlight = false
	if err := m.store.SavePendingNIK(nik); err != nil {
		m.logger.Warn("could not persist pending nik", zap.Error(err))
	}

	events := []domain.Event{m.setStateLocked(domain.StateOtpPending)}
	m.startExpiryTimerLocked()
	cooldown := m.startCooldownTimerLocked()
	m.startTickTimerLocked()
	events = append(events, domain.Event{Type: domain.EventCooldownStarted, Cooldown: cooldown, Timestamp: m.now()})
	return events
}

// establishSessionLocked persists the token and moves to Authenticated,
// tearing down any OTP episode.
func (m *Machine) establishSessionLocked(token string, user *domain.UserProfile) []domain.Event {
	establishedAt := m.now()
	if err := m.store.SaveToken(token, establishedAt); err != nil {
		m.logger.Error("could not persist session token", zap.Error(err))
	}
	m.store.ClearPendingNIK()
	m.session = &domain.Session{Token: token, User: user, EstablishedAt: establishedAt}
	m.pending = nil
	m.cancelTimersLocked()
	m.epoch++

	return []domain.Event{
		m.setStateLocked(domain.StateAuthenticated),
		{Type: domain.EventSessionEstablished, User: user, Timestamp: m.now()},
	}
}

// toUnauthenticatedLocked tears down whatever episode is active and
// resets every scrap of per-login state.
func (m *Machine) toUnauthenticatedLocked() []domain.Event {
	m.pending = nil
	m.attempts = 0
	m.otpExpired = false
	m.resendInFlight = false
	m.cancelTimersLocked()
	m.store.ClearPendingNIK()
	m.epoch++
	return []domain.Event{m.setStateLocked(domain.StateUnauthenticated)}
}

func (m *Machine) startExpiryTimerLocked() {
	if m.expiryTimer != 0 {
		m.timers.Cancel(m.expiryTimer)
	}
	epoch := m.epoch
	m.otpDeadline = m.now().Add(m.cfg.OtpExpiry)
	m.expiryTimer = m.timers.StartOneShot(m.cfg.OtpExpiry, func() { m.onExpiry(epoch) })
}

func (m *Machine) startCooldownTimerLocked() time.Duration {
	if m.cooldownTimer != 0 {
		m.timers.Cancel(m.cooldownTimer)
	}
	cooldown := m.cooldownFor(m.attempts)
	epoch := m.epoch
	m.cooldownActive = true
	m.cooldownUntil = m.now().Add(cooldown)
	m.cooldownTimer = m.timers.StartOneShot(cooldown, func() { m.onCooldownEnd(epoch) })
	return cooldown
}

func (m *Machine) startTickTimerLocked() {
	if m.tickTimer != 0 {
		m.timers.Cancel(m.tickTimer)
	}
	epoch := m.epoch
	m.tickTimer = m.timers.StartInterval(tickPeriod, func() { m.onTick(epoch) })
}

func (m *Machine) cancelTimersLocked() {
	for _, h := range []domain.TimerHandle{m.expiryTimer, m.cooldownTimer, m.tickTimer} {
		if h != 0 {
			m.timers.Cancel(h)
		}
	}
	m.expiryTimer, m.cooldownTimer, m.tickTimer = 0, 0, 0
	m.cooldownActive = false
}

// cooldownFor returns the throttle for the given attempt count, capped at
// the table's last entry.
func (m *Machine) cooldownFor(attempts int) time.Duration {
	table := m.cfg.ResendCooldowns
	if len(table) == 0 {
		return time.Minute
	}
	if attempts >= len(table) {
		return table[len(table)-1]
	}
	return table[attempts]
}

// onExpiry handles the OTP expiry timer. The state does not change; the
// code is flagged stale and exactly one OtpExpired notification goes out.
func (m *Machine) onExpiry(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || (m.state != domain.StateOtpPending && m.state != domain.StateOtpSubmitting) {
		m.mu.Unlock()
		return
	}
	m.expiryTimer = 0
	m.otpExpired = true
	events := []domain.Event{{Type: domain.EventOtpExpired, Timestamp: m.now()}}
	m.mu.Unlock()
	m.dispatch(events)
	m.logger.Info("otp expired before verification")
}

func (m *Machine) onCooldownEnd(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.cooldownTimer = 0
	m.cooldownActive = false
	events := []domain.Event{{Type: domain.EventCooldownEnded, Timestamp: m.now()}}
	m.mu.Unlock()
	m.dispatch(events)
}

// onTick emits the remaining-seconds notification UIs render countdowns
// from.
func (m *Machine) onTick(epoch uint64) {
	m.mu.Lock()
	if m.epoch != epoch || (m.state != domain.StateOtpPending && m.state != domain.StateOtpSubmitting) {
		m.mu.Unlock()
		return
	}
	now := m.now()
	ev := domain.Event{Type: domain.EventCooldownTick, Timestamp: now}
	if !m.otpExpired && m.otpDeadline.After(now) {
		ev.OtpLeft = m.otpDeadline.Sub(now)
	}
	if m.cooldownActive && m.cooldownUntil.After(now) {
		ev.ResendIn = m.cooldownUntil.Sub(now)
	}
	m.mu.Unlock()
	m.dispatch([]domain.Event{ev})
}

func (m *Machine) setStateLocked(to domain.AuthState) domain.Event {
	from := m.state
	m.state = to
	m.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	return domain.Event{Type: domain.EventStateChanged, From: from, To: to, Timestamp: m.now()}
}

func (m *Machine) errorEventLocked(kind domain.ErrorKind, message string) domain.Event {
	return domain.Event{Type: domain.EventAuthError, Kind: kind, Message: message, Timestamp: m.now()}
}

// callErrorEventLocked classifies an AuthClient error into the UI-facing
// notification, preserving the backend's message verbatim on rejections.
func (m *Machine) callErrorEventLocked(err error, rejectedKind domain.ErrorKind) domain.Event {
	if rej, ok := domain.IsRejected(err); ok {
		return m.errorEventLocked(rejectedKind, rej.Message)
	}
	return m.errorEventLocked(domain.KindNetwork, err.Error())
}

func (m *Machine) dispatch(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	observers := make([]domain.Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, ev := range events {
		for _, obs := range observers {
			obs.OnAuthEvent(ev)
		}
	}
}

// maskNIK keeps the last four digits for logs.
func maskNIK(nik string) string {
	if len(nik) <= 4 {
		return nik
	}
	return "************" + nik[len(nik)-4:]
}
