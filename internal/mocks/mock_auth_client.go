package mocks

import (
	"context"
	"sync"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

// MockAuthClient implements domain.AuthClient for testing. Each operation
// counts its invocations so tests can assert that no (or exactly one)
// network call was issued.
type MockAuthClient struct {
	LoginFunc           func(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error)
	VerifyOtpFunc       func(ctx context.Context, nik, code string) (*domain.VerifyOutcome, error)
	ResendOtpFunc       func(ctx context.Context, nik string) (*domain.ResendOutcome, error)
	ValidateSessionFunc func(ctx context.Context, token string) (*domain.UserProfile, error)
	LogoutFunc          func(ctx context.Context, token string) error

	mu              sync.Mutex
	LoginCalls      int
	VerifyCalls     int
	ResendCalls     int
	ValidateCalls   int
	LogoutCalls     int
}

// NewMockAuthClient creates a MockAuthClient with default behaviors.
func NewMockAuthClient() *MockAuthClient {
	return &MockAuthClient{}
}

// Login records the call and delegates to LoginFunc. Default: OTP step
// required with a provisional token.
func (m *MockAuthClient) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
	m.mu.Lock()
	m.LoginCalls++
	m.mu.Unlock()
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	return &domain.LoginOutcome{OtpRequired: true, ProvisionalToken: "prov-token"}, nil
}

// VerifyOtp records the call and delegates to VerifyOtpFunc. Default:
// accept "123456".
func (m *MockAuthClient) VerifyOtp(ctx context.Context, nik, code string) (*domain.VerifyOutcome, error) {
	m.mu.Lock()
	m.VerifyCalls++
	m.mu.Unlock()
	if m.VerifyOtpFunc != nil {
		return m.VerifyOtpFunc(ctx, nik, code)
	}
	if code != "123456" {
		return nil, &domain.RejectedError{Message: "Kode OTP salah"}
	}
	return &domain.VerifyOutcome{Token: "session-token", User: &domain.UserProfile{Name: "Tester"}}, nil
}

// ResendOtp records the call and delegates to ResendOtpFunc.
func (m *MockAuthClient) ResendOtp(ctx context.Context, nik string) (*domain.ResendOutcome, error) {
	m.mu.Lock()
	m.ResendCalls++
	m.mu.Unlock()
	if m.ResendOtpFunc != nil {
		return m.ResendOtpFunc(ctx, nik)
	}
	return &domain.ResendOutcome{ProvisionalToken: "prov-token-2"}, nil
}

// ValidateSession records the call and delegates to ValidateSessionFunc.
func (m *MockAuthClient) ValidateSession(ctx context.Context, token string) (*domain.UserProfile, error) {
	m.mu.Lock()
	m.ValidateCalls++
	m.mu.Unlock()
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return &domain.UserProfile{Name: "Tester"}, nil
}

// Logout records the call and delegates to LogoutFunc.
func (m *MockAuthClient) Logout(ctx context.Context, token string) error {
	m.mu.Lock()
	m.LogoutCalls++
	m.mu.Unlock()
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

// Calls returns a snapshot of all call counters.
func (m *MockAuthClient) Calls() (login, verify, resend, validate, logout int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LoginCalls, m.VerifyCalls, m.ResendCalls, m.ValidateCalls, m.LogoutCalls
}

// Compile-time interface compliance verification
var _ domain.AuthClient = (*MockAuthClient)(nil)
