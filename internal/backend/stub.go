// Package backend is an in-memory stand-in for the panel's remote
// authentication endpoint. It implements only the documented contract:
// one POST route, JSON bodies discriminated by "action", session token in
// the X-Session-Id header. The e2e tests and the local dev server run
// against it.
package backend

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BulshitMan-BM/ntr-sub000/domain"
)

const sessionHeader = "X-Session-Id"

type Options struct {
	// Users maps NIK to password.
	Users map[string]string
	// RequireOtp makes login answer with the OTP step. When false, login
	// returns a session immediately (the no-OTP deployment variant).
	RequireOtp bool
	// FixedOtp, when non-empty, is issued instead of a random code.
	FixedOtp string
	Logger   *zap.Logger
}

// Stub holds the endpoint's in-memory state.
type Stub struct {
	opts Options

	mu       sync.Mutex
	pending  map[string]string             // nik -> outstanding code
	sessions map[string]domain.UserProfile // token -> profile
}

func New(opts Options) *Stub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Stub{
		opts:     opts,
		pending:  make(map[string]string),
		sessions: make(map[string]domain.UserProfile),
	}
}

// Router builds the gin engine exposing the single endpoint at "/".
func (s *Stub) Router() *gin.Engine {
	r := gin.New()
	r.POST("/", s.handle)
	return r
}

// LastCode returns the outstanding OTP code for a NIK. Test hook.
func (s *Stub) LastCode(nik string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.pending[nik]
	return code, ok
}

// SessionCount returns the number of live sessions. Test hook.
func (s *Stub) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type request struct {
	Action     string `json:"action"`
	ID         string `json:"id"`
	Secret     string `json:"secret"`
	Code       string `json:"code"`
	DeviceInfo string `json:"deviceInfo"`
}

func (s *Stub) handle(c *gin.Context) {
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Permintaan tidak valid"})
		return
	}

	switch req.Action {
	case "login":
		s.handleLogin(c, req)
	case "verify-otp":
		s.handleVerifyOtp(c, req)
	case "resend-otp":
		s.handleResendOtp(c, req)
	case "validate-session":
		s.handleValidateSession(c)
	case "logout":
		s.handleLogout(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Aksi tidak dikenal"})
	}
}

func (s *Stub) handleLogin(c *gin.Context, req request) {
	secret, ok := s.opts.Users[req.ID]
	if !ok || secret != req.Secret {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "NIK atau password salah"})
		return
	}

	if !s.opts.RequireOtp {
		token := s.openSession(req.ID)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"token":   token,
			"user":    s.profileFor(req.ID),
		})
		return
	}

	code := s.issueCode(req.ID)
	s.opts.Logger.Info("otp issued", zap.String("nik", req.ID), zap.String("code", code))
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"step":             "otp",
		"provisionalToken": uuid.NewString(),
	})
}

func (s *Stub) handleVerifyOtp(c *gin.Context, req request) {
	s.mu.Lock()
	code, ok := s.pending[req.ID]
	if ok && code == req.Code {
		delete(s.pending, req.ID)
	}
	s.mu.Unlock()

	if !ok || code != req.Code {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Kode OTP salah"})
		return
	}

	token := s.openSession(req.ID)
	profile := s.profileFor(req.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"name":         profile["name"],
			"role":         profile["role"],
			"avatar":       profile["avatar"],
			"sessionToken": token,
		},
	})
}

func (s *Stub) handleResendOtp(c *gin.Context, req request) {
	s.mu.Lock()
	_, ok := s.pending[req.ID]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Tidak ada OTP yang menunggu"})
		return
	}

	code := s.issueCode(req.ID)
	s.opts.Logger.Info("otp reissued", zap.String("nik", req.ID), zap.String("code", code))
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"provisionalToken": uuid.NewString(),
	})
}

func (s *Stub) handleValidateSession(c *gin.Context) {
	token := c.GetHeader(sessionHeader)
	s.mu.Lock()
	profile, ok := s.sessions[token]
	s.mu.Unlock()
	if token == "" || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Sesi tidak valid"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": profile})
}

func (s *Stub) handleLogout(c *gin.Context) {
	token := c.GetHeader(sessionHeader)
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Stub) issueCode(nik string) string {
	code := s.opts.FixedOtp
	if code == "" {
		code = randomCode(6)
	}
	s.mu.Lock()
	s.pending[nik] = code
	s.mu.Unlock()
	return code
}

func (s *Stub) openSession(nik string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = domain.UserProfile{
		Name: "Admin " + nik[len(nik)-4:],
		Role: "admin",
	}
	s.mu.Unlock()
	return token
}

func (s *Stub) profileFor(nik string) gin.H {
	return gin.H{
		"name":   "Admin " + nik[len(nik)-4:],
		"role":   "admin",
		"avatar": "",
	}
}

func randomCode(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// fall back to a constant code when the system RNG is unavailable
			return fmt.Sprintf("%0*d", length, 0)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}
