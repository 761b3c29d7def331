package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
	"github.com/BulshitMan-BM/ntr-sub000/internal/mocks"
)

const (
	testNIK    = "1234567890123456"
	testSecret = "x"
)

var testCooldowns = []time.Duration{
	60 * time.Second,
	600 * time.Second,
	1200 * time.Second,
	1800 * time.Second,
	3600 * time.Second,
}

func newTestMachine(t *testing.T) (*Machine, *mocks.MockAuthClient, *mocks.MockSessionStore, *mocks.MockTimerService, *mocks.RecordingObserver) {
	t.Helper()

	client := mocks.NewMockAuthClient()
	store := mocks.NewMockSessionStore()
	timers := mocks.NewMockTimerService()
	obs := mocks.NewRecordingObserver()

	m := NewMachine(Config{
		OtpExpiry:       180 * time.Second,
		ResendCooldowns: testCooldowns,
		SessionMaxAge:   24 * time.Hour,
	}, client, store, timers, zap.NewNop())
	m.Subscribe(obs)
	return m, client, store, timers, obs
}

// findOneShot returns the armed one-shot timer with the given duration.
func findOneShot(t *testing.T, timers *mocks.MockTimerService, d time.Duration) *mocks.ScheduledTimer {
	t.Helper()
	for _, st := range timers.OneShots() {
		if st.Duration == d {
			return st
		}
	}
	return nil
}

func loginToOtpPending(t *testing.T, m *Machine, client *mocks.MockAuthClient) {
	t.Helper()
	require.NoError(t, m.SubmitLogin(context.Background(), testNIK, testSecret))
	require.Equal(t, domain.StateOtpPending, m.State())
}

func TestSubmitLogin_LocalValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name        string
		nik         string
		secret      string
		expectedErr error
	}{
		{name: "short nik", nik: "12345", secret: "x", expectedErr: domain.ErrInvalidNIK},
		{name: "long nik", nik: "12345678901234567", secret: "x", expectedErr: domain.ErrInvalidNIK},
		{name: "alpha nik", nik: "1234567890abcdef", secret: "x", expectedErr: domain.ErrInvalidNIK},
		{name: "empty secret", nik: testNIK, secret: "", expectedErr: domain.ErrEmptySecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, client, _, _, obs := newTestMachine(t)

			err := m.SubmitLogin(context.Background(), tt.nik, tt.secret)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, domain.StateUnauthenticated, m.State(), "state must not change")
			assert.Equal(t, 0, client.LoginCalls, "no network call may be issued")

			ev, ok := obs.LastOfType(domain.EventAuthError)
			require.True(t, ok)
			assert.Equal(t, domain.KindValidation, ev.Kind)
		})
	}
}

func TestSubmitOtp_LocalValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{name: "short", code: "12345"},
		{name: "long", code: "1234567"},
		{name: "alpha", code: "12a456"},
		{name: "empty", code: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, client, _, _, _ := newTestMachine(t)
			loginToOtpPending(t, m, client)

			err := m.SubmitOtp(context.Background(), tt.code)
			assert.ErrorIs(t, err, domain.ErrInvalidOtpFormat)
			assert.Equal(t, domain.StateOtpPending, m.State())
			assert.Equal(t, 0, client.VerifyCalls)
		})
	}
}

func TestSubmitLogin_OtpRequiredEntersOtpPending(t *testing.T) {
	m, client, store, timers, obs := newTestMachine(t)

	require.NoError(t, m.SubmitLogin(context.Background(), testNIK, testSecret))

	assert.Equal(t, domain.StateOtpPending, m.State())
	assert.Equal(t, 1, client.LoginCalls)

	// expiry timer at full duration, resend locked for the first table entry
	require.NotNil(t, findOneShot(t, timers, 180*time.Second), "expiry timer should be armed at 180s")
	require.NotNil(t, findOneShot(t, timers, 60*time.Second), "cooldown timer should be armed at 60s")
	assert.False(t, m.ResendAvailable(), "resend must be disabled during the initial cooldown")

	nik, ok := store.LoadPendingNIK()
	require.True(t, ok)
	assert.Equal(t, testNIK, nik)

	ev, ok := obs.LastOfType(domain.EventCooldownStarted)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, ev.Cooldown)

	assert.False(t, store.HasToken(), "no session may be persisted before OTP verification")
}

func TestSubmitLogin_NoOtpPathAuthenticatesImmediately(t *testing.T) {
	m, client, store, _, _ := newTestMachine(t)
	client.LoginFunc = func(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
		return &domain.LoginOutcome{Token: "tok-direct", User: &domain.UserProfile{Name: "Adi"}}, nil
	}

	require.NoError(t, m.SubmitLogin(context.Background(), testNIK, testSecret))

	assert.Equal(t, domain.StateAuthenticated, m.State())
	token, _, ok := store.LoadToken()
	require.True(t, ok, "session must be persisted")
	assert.Equal(t, "tok-direct", token)
}

func TestSubmitLogin_RejectionReturnsToUnauthenticated(t *testing.T) {
	m, client, store, _, obs := newTestMachine(t)
	client.LoginFunc = func(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
		return nil, &domain.RejectedError{Message: "NIK atau password salah"}
	}

	err := m.SubmitLogin(context.Background(), testNIK, testSecret)
	require.Error(t, err)

	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.False(t, store.HasToken())

	ev, ok := obs.LastOfType(domain.EventAuthError)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidCredentials, ev.Kind)
	assert.Equal(t, "NIK atau password salah", ev.Message, "backend message must surface verbatim")
}

func TestSubmitLogin_NetworkFailureReturnsToUnauthenticated(t *testing.T) {
	m, client, _, _, obs := newTestMachine(t)
	client.LoginFunc = func(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
		return nil, domain.ErrUnreachable
	}

	err := m.SubmitLogin(context.Background(), testNIK, testSecret)
	require.Error(t, err)
	assert.Equal(t, domain.StateUnauthenticated, m.State())

	ev, ok := obs.LastOfType(domain.EventAuthError)
	require.True(t, ok)
	assert.Equal(t, domain.KindNetwork, ev.Kind)
}

func TestSubmitLogin_SecondCallWhileInFlightIsRejected(t *testing.T) {
	m, client, _, _, _ := newTestMachine(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	client.LoginFunc = func(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
		close(entered)
		<-release
		return &domain.LoginOutcome{OtpRequired: true}, nil
	}

	done := make(chan error, 1)
	go func() { done <- m.SubmitLogin(context.Background(), testNIK, testSecret) }()
	<-entered

	err := m.SubmitLogin(context.Background(), testNIK, testSecret)
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, client.LoginCalls, "only one login request may exist at a time")
}

func TestSubmitOtp_SuccessEstablishesSession(t *testing.T) {
	m, client, store, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	require.NoError(t, m.SubmitOtp(context.Background(), "123456"))

	assert.Equal(t, domain.StateAuthenticated, m.State())
	token, _, ok := store.LoadToken()
	require.True(t, ok)
	assert.Equal(t, "session-token", token)

	_, ok = store.LoadPendingNIK()
	assert.False(t, ok, "pending scratch value must be destroyed")
	assert.Empty(t, timers.Active(), "both OTP timers must be cancelled")

	ev, ok := obs.LastOfType(domain.EventSessionEstablished)
	require.True(t, ok)
	require.NotNil(t, ev.User)
	assert.Equal(t, "Tester", ev.User.Name)
}

func TestSubmitOtp_RejectionKeepsTimersRunning(t *testing.T) {
	m, client, store, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)
	before := len(timers.Active())

	err := m.SubmitOtp(context.Background(), "000000")
	require.Error(t, err)

	assert.Equal(t, domain.StateOtpPending, m.State(), "failure returns to OtpPending")
	assert.False(t, store.HasToken())
	assert.Len(t, timers.Active(), before, "failure must not reset or cancel timers")

	ev, ok := obs.LastOfType(domain.EventAuthError)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidOtp, ev.Kind)
	assert.Equal(t, "Kode OTP salah", ev.Message)
}

func TestSubmitOtp_SecondCallWhileInFlightIsRejected(t *testing.T) {
	m, client, _, _, _ := newTestMachine(t)
	loginToOtpPending(t, m, client)

	release := make(chan struct{})
	entered := make(chan struct{})
	client.VerifyOtpFunc = func(ctx context.Context, nik, code string) (*domain.VerifyOutcome, error) {
		close(entered)
		<-release
		return &domain.VerifyOutcome{Token: "tok", User: &domain.UserProfile{}}, nil
	}

	done := make(chan error, 1)
	go func() { done <- m.SubmitOtp(context.Background(), "123456") }()
	<-entered

	err := m.SubmitOtp(context.Background(), "654321")
	assert.ErrorIs(t, err, domain.ErrRequestInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, client.VerifyCalls)
}

func TestExpiryTimer_EmitsExactlyOneEventWithoutStateChange(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	expiry := findOneShot(t, timers, 180*time.Second)
	require.NotNil(t, expiry)

	require.True(t, timers.Fire(expiry.Handle))
	assert.Equal(t, domain.StateOtpPending, m.State(), "expiry does not transition state")
	assert.Equal(t, 1, obs.CountType(domain.EventOtpExpired))

	// a second firing of the same handle is impossible; the handle is spent
	assert.False(t, timers.Fire(expiry.Handle))
	assert.Equal(t, 1, obs.CountType(domain.EventOtpExpired))
}

func TestResendOtp_ThrottledWhileCooldownRuns(t *testing.T) {
	m, client, _, _, _ := newTestMachine(t)
	loginToOtpPending(t, m, client)

	err := m.ResendOtp(context.Background())
	assert.ErrorIs(t, err, domain.ErrResendThrottled)
	assert.Equal(t, 0, client.ResendCalls)
}

func TestResendOtp_FollowsBackoffTable(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	// cooldown for the initial issuance is table[0]
	require.NotNil(t, findOneShot(t, timers, 60*time.Second))

	expected := []time.Duration{
		600 * time.Second,
		1200 * time.Second,
		1800 * time.Second,
		3600 * time.Second,
		3600 * time.Second, // capped at the last entry
		3600 * time.Second,
	}

	for i, want := range expected {
		cooldown := findLatestCooldown(t, timers)
		require.True(t, timers.Fire(cooldown.Handle), "resend unlock %d", i)
		require.True(t, m.ResendAvailable())

		obs.Reset()
		require.NoError(t, m.ResendOtp(context.Background()))

		ev, ok := obs.LastOfType(domain.EventCooldownStarted)
		require.True(t, ok)
		assert.Equal(t, want, ev.Cooldown, "cooldown after resend %d", i+1)
		require.NotNil(t, findOneShot(t, timers, 180*time.Second),
			"expiry timer must restart at full duration on every resend")
	}
	assert.Equal(t, len(expected), client.ResendCalls)
}

// findLatestCooldown returns the armed one-shot that is not the 180s
// expiry timer.
func findLatestCooldown(t *testing.T, timers *mocks.MockTimerService) *mocks.ScheduledTimer {
	t.Helper()
	var latest *mocks.ScheduledTimer
	for _, st := range timers.OneShots() {
		if st.Duration != 180*time.Second {
			latest = st
		}
	}
	require.NotNil(t, latest, "cooldown timer should be armed")
	return latest
}

func TestResendOtp_FailureDoesNotRestartCooldown(t *testing.T) {
	m, client, _, timers, _ := newTestMachine(t)
	loginToOtpPending(t, m, client)
	client.ResendOtpFunc = func(ctx context.Context, nik string) (*domain.ResendOutcome, error) {
		return nil, &domain.RejectedError{Message: "Terlalu banyak permintaan"}
	}

	cooldown := findOneShot(t, timers, 60*time.Second)
	require.True(t, timers.Fire(cooldown.Handle))

	err := m.ResendOtp(context.Background())
	require.Error(t, err)

	// attemptCount untouched, cooldown not re-armed: the user may retry
	// immediately because the previous cooldown already elapsed
	assert.True(t, m.ResendAvailable())
	assert.Nil(t, findOneShot(t, timers, 600*time.Second), "failed resend must not escalate the table")

	client.ResendOtpFunc = nil
	require.NoError(t, m.ResendOtp(context.Background()))
	assert.Equal(t, 2, client.ResendCalls)
}

func TestCancel_TearsDownOtpEpisode(t *testing.T) {
	m, client, store, timers, _ := newTestMachine(t)
	loginToOtpPending(t, m, client)

	require.NoError(t, m.Cancel())

	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.Empty(t, timers.Active(), "both timers must be cancelled")
	_, ok := store.LoadPendingNIK()
	assert.False(t, ok)

	// a fresh login starts again at the first table entry
	loginToOtpPending(t, m, client)
	require.NotNil(t, findOneShot(t, timers, 60*time.Second))
}

func TestCancel_DiscardsInFlightResendCompletion(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	cooldown := findOneShot(t, timers, 60*time.Second)
	require.True(t, timers.Fire(cooldown.Handle))

	release := make(chan struct{})
	entered := make(chan struct{})
	client.ResendOtpFunc = func(ctx context.Context, nik string) (*domain.ResendOutcome, error) {
		close(entered)
		<-release
		return &domain.ResendOutcome{ProvisionalToken: "late"}, nil
	}

	done := make(chan error, 1)
	go func() { done <- m.ResendOtp(context.Background()) }()
	<-entered

	require.NoError(t, m.Cancel())
	obs.Reset()
	close(release)
	require.NoError(t, <-done)

	// the late completion must not re-arm timers or emit resend events
	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.Empty(t, timers.Active())
	assert.Equal(t, 0, obs.CountType(domain.EventOtpResent))
	assert.Equal(t, 0, obs.CountType(domain.EventCooldownStarted))
}

func TestLogout_ClearsSessionEvenWhenRemoteCallFails(t *testing.T) {
	m, client, store, _, _ := newTestMachine(t)
	loginToOtpPending(t, m, client)
	require.NoError(t, m.SubmitOtp(context.Background(), "123456"))
	require.True(t, store.HasToken())

	client.LogoutFunc = func(ctx context.Context, token string) error {
		return domain.ErrUnreachable
	}

	require.NoError(t, m.Logout(context.Background()), "remote logout failure is best-effort")
	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.False(t, store.HasToken(), "stored token must be cleared regardless")
	assert.Equal(t, 1, client.LogoutCalls)
	assert.Nil(t, m.Session())
}

func TestResume_ValidTokenAuthenticates(t *testing.T) {
	client := mocks.NewMockAuthClient()
	store := mocks.NewMockSessionStore().Seed("stored-tok", time.Now().Add(-time.Hour))
	timers := mocks.NewMockTimerService()
	m := NewMachine(Config{
		OtpExpiry:       180 * time.Second,
		ResendCooldowns: testCooldowns,
		SessionMaxAge:   24 * time.Hour,
	}, client, store, timers, zap.NewNop())

	require.Equal(t, domain.StateResuming, m.State(), "stored token starts the machine in Resuming")

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, domain.StateAuthenticated, m.State())
	assert.Equal(t, 1, client.ValidateCalls, "resume must always revalidate remotely")

	sess := m.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "stored-tok", sess.Token)
}

func TestResume_RejectedTokenIsCleared(t *testing.T) {
	client := mocks.NewMockAuthClient()
	client.ValidateSessionFunc = func(ctx context.Context, token string) (*domain.UserProfile, error) {
		return nil, &domain.RejectedError{}
	}
	store := mocks.NewMockSessionStore().Seed("stale-tok", time.Now().Add(-time.Hour))
	m := NewMachine(Config{
		OtpExpiry:       180 * time.Second,
		ResendCooldowns: testCooldowns,
		SessionMaxAge:   24 * time.Hour,
	}, client, store, mocks.NewMockTimerService(), zap.NewNop())
	obs := mocks.NewRecordingObserver()
	m.Subscribe(obs)

	err := m.Resume(context.Background())
	require.Error(t, err)

	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.False(t, store.HasToken(), "rejected token must be cleared")

	ev, ok := obs.LastOfType(domain.EventAuthError)
	require.True(t, ok)
	assert.Equal(t, domain.KindSessionExpired, ev.Kind)
}

func TestResume_LocalAgeCeilingSkipsNetwork(t *testing.T) {
	client := mocks.NewMockAuthClient()
	store := mocks.NewMockSessionStore().Seed("old-tok", time.Now().Add(-25*time.Hour))
	m := NewMachine(Config{
		OtpExpiry:       180 * time.Second,
		ResendCooldowns: testCooldowns,
		SessionMaxAge:   24 * time.Hour,
	}, client, store, mocks.NewMockTimerService(), zap.NewNop())

	err := m.Resume(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.False(t, store.HasToken())
	assert.Equal(t, 0, client.ValidateCalls, "an over-age session is discarded locally")
}

func TestResume_NoStoredTokenStartsUnauthenticated(t *testing.T) {
	m, client, _, _, _ := newTestMachine(t)
	assert.Equal(t, domain.StateUnauthenticated, m.State())
	assert.NoError(t, m.Resume(context.Background()), "resume outside Resuming is a no-op")
	assert.Equal(t, 0, client.ValidateCalls)
}

func TestBackoffResetOnlyOnFreshLoginOrLogout(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	// escalate to attempt 1
	require.True(t, timers.Fire(findOneShot(t, timers, 60*time.Second).Handle))
	require.NoError(t, m.ResendOtp(context.Background()))
	require.NotNil(t, findOneShot(t, timers, 600*time.Second))

	// cancel back to login; a fresh login resets to the first entry
	require.NoError(t, m.Cancel())
	obs.Reset()
	loginToOtpPending(t, m, client)
	ev, ok := obs.LastOfType(domain.EventCooldownStarted)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, ev.Cooldown)
}

func TestCooldownEndEmitsEventAndUnlocksResend(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)
	require.False(t, m.ResendAvailable())

	cooldown := findOneShot(t, timers, 60*time.Second)
	require.True(t, timers.Fire(cooldown.Handle))

	assert.True(t, m.ResendAvailable())
	assert.Equal(t, 1, obs.CountType(domain.EventCooldownEnded))
}

func TestCountdownTicksCarryRemainingDurations(t *testing.T) {
	m, client, _, timers, obs := newTestMachine(t)
	loginToOtpPending(t, m, client)

	var tick *mocks.ScheduledTimer
	for _, st := range timers.Active() {
		if st.Repeats {
			tick = st
		}
	}
	require.NotNil(t, tick, "a countdown interval must run while OtpPending")
	require.Equal(t, time.Second, tick.Duration)

	require.True(t, timers.Fire(tick.Handle))
	ev, ok := obs.LastOfType(domain.EventCooldownTick)
	require.True(t, ok)
	assert.Greater(t, ev.OtpLeft, time.Duration(0))
	assert.Greater(t, ev.ResendIn, time.Duration(0))
}
