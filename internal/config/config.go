package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type EndpointConfig struct {
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

type OtpConfig struct {
	Expiry          string `yaml:"expiry"`
	ResendCooldowns []int  `yaml:"resend_cooldowns"`
}

type SessionConfig struct {
	MaxAge string `yaml:"max_age"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "file", "memory" or "redis"
	Dir     string `yaml:"dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

type ConfigFile struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	OTP      OtpConfig      `yaml:"otp"`
	Session  SessionConfig  `yaml:"session"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// Config is the resolved runtime configuration.
type Config struct {
	EndpointURL     string
	RequestTimeout  time.Duration
	OtpExpiry       time.Duration
	ResendCooldowns []time.Duration
	SessionMaxAge   time.Duration
	StoreBackend    string
	StoreDir        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DevLog          bool
}

// DefaultResendCooldowns is the escalating resend throttle table, indexed
// by attempt count and capped at the last entry.
var DefaultResendCooldowns = []time.Duration{
	60 * time.Second,
	600 * time.Second,
	1200 * time.Second,
	1800 * time.Second,
	3600 * time.Second,
}

const (
	defaultOtpExpiry      = 180 * time.Second
	defaultSessionMaxAge  = 24 * time.Hour
	defaultRequestTimeout = 15 * time.Second
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads the config file at path (or the NTR_CONFIG env override) and
// fills gaps with environment variables and defaults. A missing file is
// not an error; everything has a usable default except the endpoint URL.
func Load(path string) (*Config, error) {
	if p := os.Getenv("NTR_CONFIG"); p != "" {
		path = p
	}

	var file ConfigFile
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("could not parse config yaml: %w", err)
		}
	}

	cfg := &Config{
		EndpointURL:     env("NTR_ENDPOINT", file.Endpoint.URL),
		RequestTimeout:  defaultRequestTimeout,
		OtpExpiry:       defaultOtpExpiry,
		ResendCooldowns: DefaultResendCooldowns,
		SessionMaxAge:   defaultSessionMaxAge,
		StoreBackend:    env("NTR_STORE", firstNonEmpty(file.Store.Backend, "file")),
		StoreDir:        env("NTR_STORE_DIR", file.Store.Dir),
		RedisAddr:       env("NTR_REDIS_ADDR", firstNonEmpty(file.Redis.Addr, "localhost:6379")),
		RedisPassword:   env("NTR_REDIS_PASSWORD", file.Redis.Password),
		RedisDB:         file.Redis.DB,
		DevLog:          file.Log.Development || os.Getenv("NTR_DEV_LOG") == "true",
	}

	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("endpoint url is required (endpoint.url or NTR_ENDPOINT)")
	}

	if file.Endpoint.Timeout != "" {
		d, err := time.ParseDuration(file.Endpoint.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if file.OTP.Expiry != "" {
		d, err := time.ParseDuration(file.OTP.Expiry)
		if err != nil {
			return nil, fmt.Errorf("invalid otp expiry: %w", err)
		}
		cfg.OtpExpiry = d
	}

	if len(file.OTP.ResendCooldowns) > 0 {
		cooldowns := make([]time.Duration, 0, len(file.OTP.ResendCooldowns))
		for _, secs := range file.OTP.ResendCooldowns {
			if secs <= 0 {
				return nil, fmt.Errorf("resend cooldowns must be positive, got %d", secs)
			}
			cooldowns = append(cooldowns, time.Duration(secs)*time.Second)
		}
		cfg.ResendCooldowns = cooldowns
	}

	if file.Session.MaxAge != "" {
		d, err := time.ParseDuration(file.Session.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid session max age: %w", err)
		}
		cfg.SessionMaxAge = d // 0 disables the local ceiling
	}

	if cfg.StoreDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not resolve home dir for state storage: %w", err)
		}
		cfg.StoreDir = home + "/.ntr-sub000"
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
