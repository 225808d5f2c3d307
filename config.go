package goSession

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration. Build it from [DefaultConfig]
// and treat it as immutable once passed to the builder.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "rs256", "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh-token families.
type SessionConfig struct {
	RefreshTTL time.Duration
	// RetentionTTL keeps records past expiry so replays are recognized as
	// reuse instead of unknown tokens.
	RetentionTTL time.Duration
	RedisPrefix  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures Argon2id hashing and the length policy applied
// to reset passwords.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

// PasswordResetConfig configures the reset flow.
type PasswordResetConfig struct {
	Enabled  bool
	ResetTTL time.Duration
	// ExposeToken returns the raw token from RequestPasswordReset and reports
	// unknown emails as ErrUserNotFound. Meant for test harnesses.
	ExposeToken bool
	// RevokeSessions revokes every refresh family of the user after a
	// successful reset.
	RevokeSessions bool
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. JWT keys are not set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "goSession",
		},
		Session: SessionConfig{
			RefreshTTL:   720 * time.Hour,
			RetentionTTL: 24 * time.Hour,
			RedisPrefix:  "gs",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:        true,
			ResetTTL:       5 * time.Minute,
			ExposeToken:    false,
			RevokeSessions: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration. Every failure wraps [ErrConfigInvalid].
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return configError("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "rs256", "ed25519":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
			return configError("%s requires PrivateKey or PublicKey", c.JWT.SigningMethod)
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return configError("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return configError("unsupported JWT signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configError("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		return configError("Session RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.Session.RefreshTTL {
		return configError("JWT AccessTTL must be shorter than Session RefreshTTL")
	}
	if c.Session.RetentionTTL < 0 {
		return configError("Session RetentionTTL must be >= 0")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " \t\r\n") {
		return configError("Session RedisPrefix must not contain whitespace")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, "{}") {
		return configError("Session RedisPrefix must not contain braces")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return configError("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return configError("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return configError("Password SaltLength and KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return configError("Password length bounds are inconsistent")
	}

	// Reset
	if c.PasswordReset.Enabled && c.PasswordReset.ResetTTL <= 0 {
		return configError("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.ResetTTL > 24*time.Hour {
		return configError("PasswordReset ResetTTL must be <= 24h")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigInvalid, fmt.Sprintf(format, args...))
}
