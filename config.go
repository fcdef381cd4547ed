package conduitauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-realworld/conduitauth/internal/audit"
	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/conduit-realworld/conduitauth/password"
	"github.com/conduit-realworld/conduitauth/session"
)

// Config is the full Engine configuration. Build copies it; later changes to the
// caller's value have no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access token codec.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	// Leeway tolerates clock skew on expiry. Zero disables it.
	Leeway time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures session lifetimes and the Redis key layout.
type SessionConfig struct {
	// TTL is the forced session expiry. Zero creates sessions without one.
	TTL time.Duration
	// NullRetention is the Redis key TTL for sessions without forced expiry.
	NullRetention time.Duration
	// ExpiredRetention keeps an expired Redis record readable past ExpiresAt so it
	// is reported as session_expired. Zero means JWT.AccessTTL, which outlasts
	// every token issued while the session was valid.
	ExpiredRetention time.Duration
	RedisPrefix      string
	SweepInterval    time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the default Argon2id hasher.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// UpgradeOnLogin rehashes a password after a successful login when its
	// parameters are weaker than the current ones.
	UpgradeOnLogin bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. JWT.PrivateKey must still be set.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     7 * 24 * time.Hour,
			SigningMethod: string(jwt.MethodHS256),
		},
		Session: SessionConfig{
			TTL:           0,
			NullRetention: session.DefaultNullRetention,
			RedisPrefix:   session.DefaultRedisPrefix,
			SweepInterval: session.DefaultSweepInterval,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
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

func (c Config) codecConfig(now func() time.Time) jwt.Config {
	return jwt.Config{
		AccessTTL:     c.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(strings.ToLower(c.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(c.JWT.PrivateKey),
		PublicKey:     cloneBytes(c.JWT.PublicKey),
		Issuer:        c.JWT.Issuer,
		Leeway:        c.JWT.Leeway,
		Now:           now,
	}
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MaxPasswordBytes: c.Password.MaxPasswordBytes,
	}
}

// RedisSessionConfig is the RedisStore configuration Build uses for WithRedis.
// A nil now means time.Now.
func (c Config) RedisSessionConfig(now func() time.Time) session.RedisConfig {
	retention := c.Session.ExpiredRetention
	if retention == 0 {
		retention = c.JWT.AccessTTL
	}
	return session.RedisConfig{
		Prefix:           c.Session.RedisPrefix,
		TTL:              c.Session.TTL,
		NullRetention:    c.Session.NullRetention,
		ExpiredRetention: retention,
		Now:              now,
	}
}

func (c Config) auditConfig() audit.Config {
	return audit.Config{
		Enabled:    c.Audit.Enabled,
		BufferSize: c.Audit.BufferSize,
		DropIfFull: c.Audit.DropIfFull,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case string(jwt.MethodHS256):
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case string(jwt.MethodEd25519):
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey or PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.TTL < 0 {
		return errors.New("Session TTL must be >= 0")
	}
	if c.Session.ExpiredRetention < 0 {
		return errors.New("Session ExpiredRetention must be >= 0")
	}
	if c.Session.NullRetention <= 0 {
		return errors.New("Session NullRetention must be > 0")
	}
	if c.Session.RedisPrefix == "" || strings.ContainsAny(c.Session.RedisPrefix, ": ") {
		return errors.New("Session RedisPrefix must be non-empty and contain no ':' or spaces")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	// Password
	if err := c.passwordConfig().Validate(); err != nil {
		return err
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
