// Package transport implements domain.AuthClient against the panel's
// single authentication endpoint: one POST URL, JSON bodies discriminated
// by an "action" field, session token in the X-Session-Id header.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

const sessionHeader = "X-Session-Id"

type Options struct {
	EndpointURL string
	Timeout     time.Duration
	// DeviceInfo overrides the generated audit string. Optional.
	DeviceInfo string
}

// Client is the HTTP AuthClient. It never retries: login and verify-otp
// must only ever be re-issued by an explicit user action.
type Client struct {
	http       *http.Client
	url        string
	deviceInfo string
	logger     *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	deviceInfo := opts.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = buildDeviceInfo()
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		url:        opts.EndpointURL,
		deviceInfo: deviceInfo,
		logger:     logger,
	}
}

// buildDeviceInfo assembles the audit string sent with every call. Any
// piece may be missing; a call never fails locally over device info.
func buildDeviceInfo() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", hostname, runtime.GOOS, uuid.NewString())
}

type request struct {
	Action     string `json:"action"`
	ID         string `json:"id,omitempty"`
	Secret     string `json:"secret,omitempty"`
	Code       string `json:"code,omitempty"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type userPayload struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Avatar       string `json:"avatar"`
	SessionToken string `json:"sessionToken"`
}

func (u *userPayload) profile() *domain.UserProfile {
	if u == nil {
		return nil
	}
	return &domain.UserProfile{Name: u.Name, Role: u.Role, Avatar: u.Avatar}
}

type envelope struct {
	Success          bool         `json:"success"`
	Message          string       `json:"message"`
	Step             string       `json:"step"`
	Token            string       `json:"token"`
	ProvisionalToken string       `json:"provisionalToken"`
	User             *userPayload `json:"user"`
}

// Login implements domain.AuthClient.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginOutcome, error) {
	env, err := c.call(ctx, request{
		Action:     "login",
		ID:         creds.NIK,
		Secret:     creds.Secret,
		DeviceInfo: c.deviceInfo,
	}, "")
	if err != nil {
		return nil, err
	}

	if env.Step == "otp" {
		return &domain.LoginOutcome{
			OtpRequired:      true,
			ProvisionalToken: env.ProvisionalToken,
		}, nil
	}
	return &domain.LoginOutcome{
		Token: env.Token,
		User:  env.User.profile(),
	}, nil
}

// VerifyOtp implements domain.AuthClient. The session token rides inside
// the user payload on this call.
func (c *Client) VerifyOtp(ctx context.Context, nik, code string) (*domain.VerifyOutcome, error) {
	env, err := c.call(ctx, request{
		Action:     "verify-otp",
		ID:         nik,
		Code:       code,
		DeviceInfo: c.deviceInfo,
	}, "")
	if err != nil {
		return nil, err
	}
	if env.User == nil || env.User.SessionToken == "" {
		return nil, fmt.Errorf("verify-otp response missing session token: %w", domain.ErrUnreachable)
	}
	return &domain.VerifyOutcome{
		Token: env.User.SessionToken,
		User:  env.User.profile(),
	}, nil
}

// ResendOtp implements domain.AuthClient.
func (c *Client) ResendOtp(ctx context.Context, nik string) (*domain.ResendOutcome, error) {
	env, err := c.call(ctx, request{
		Action:     "resend-otp",
		ID:         nik,
		DeviceInfo: c.deviceInfo,
	}, "")
	if err != nil {
		return nil, err
	}
	return &domain.ResendOutcome{ProvisionalToken: env.ProvisionalToken}, nil
}

// ValidateSession implements domain.AuthClient.
func (c *Client) ValidateSession(ctx context.Context, token string) (*domain.UserProfile, error) {
	env, err := c.call(ctx, request{
		Action:     "validate-session",
		DeviceInfo: c.deviceInfo,
	}, token)
	if err != nil {
		return nil, err
	}
	return env.User.profile(), nil
}

// Logout implements domain.AuthClient. Callers treat failures as
// best-effort; the error is still reported for logging.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.call(ctx, request{Action: "logout"}, token)
	return err
}

func (c *Client) call(ctx context.Context, req request, token string) (*envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set(sessionHeader, token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("auth call failed", zap.String("action", req.Action), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", req.Action, domain.ErrUnreachable)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.logger.Warn("auth response undecodable",
			zap.String("action", req.Action), zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", req.Action, domain.ErrUnreachable)
	}

	// Business rejections arrive as success:false with a 2xx or 4xx
	// status; anything else without a decodable rejection is transport.
	if !env.Success {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%s: status %d: %w", req.Action, resp.StatusCode, domain.ErrUnreachable)
		}
		return nil, &domain.RejectedError{Message: env.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d: %w", req.Action, resp.StatusCode, domain.ErrUnreachable)
	}

	c.logger.Debug("auth call ok", zap.String("action", req.Action))
	return &env, nil
}

var _ domain.AuthClient = (*Client)(nil)
