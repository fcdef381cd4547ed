package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/conduit-realworld/conduitauth"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultUserImage is served for users without an image.
const DefaultUserImage = "https://static.productionready.io/images/smiley-cyrus.jpg"

// AppConfig is the conduitd server configuration, read from the environment.
type AppConfig struct {
	HTTP    HTTPConfig
	Log     LogConfig
	JWT     JWTConfig
	Session SessionConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`
	DB      DBConfig

	MetricsEnabled   bool   `env:"METRICS_ENABLED"    envDefault:"true"`
	AuditEnabled     bool   `env:"AUDIT_ENABLED"      envDefault:"false"`
	DefaultUserImage string `env:"DEFAULT_USER_IMAGE" envDefault:"https://static.productionready.io/images/smiley-cyrus.jpg"`
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR"             envDefault:":8000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type JWTConfig struct {
	Secret    string        `env:"JWT_SECRET,required,notEmpty,unset"`
	AccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"168h"`
	Leeway    time.Duration `env:"JWT_LEEWAY"     envDefault:"0s"`
	Issuer    string        `env:"JWT_ISSUER"`
}

type SessionConfig struct {
	Backend       string        `env:"SESSION_BACKEND"        envDefault:"memory"`
	TTL           time.Duration `env:"SESSION_TTL"            envDefault:"0s"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	// ExpiredRetention zero follows JWT_ACCESS_TTL.
	ExpiredRetention time.Duration `env:"SESSION_EXPIRED_RETENTION" envDefault:"0s"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

type DBConfig struct {
	URL           string `env:"DATABASE_URL"`
	RunMigrations bool   `env:"DB_RUN_MIGRATIONS" envDefault:"true"`
	MaxConns      int32  `env:"DB_MAX_CONNS"      envDefault:"10"`
}

// Load reads an optional .env file from the working directory, then parses the
// environment.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, cfg.Validate()
}

// Sanitize normalizes enumerations and clamps out-of-range values.
func (c *AppConfig) Sanitize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "text" {
		c.Log.Format = "json"
	}
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	if c.Session.Backend == "" {
		c.Session.Backend = BackendMemory
	}
	if c.Session.TTL < 0 {
		c.Session.TTL = 0
	}
	if c.Session.ExpiredRetention < 0 {
		c.Session.ExpiredRetention = 0
	}
	if c.Session.SweepInterval < 0 {
		c.Session.SweepInterval = 0
	}
	if c.JWT.Leeway < 0 {
		c.JWT.Leeway = 0
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.DB.MaxConns <= 0 {
		c.DB.MaxConns = 10
	}
	if strings.TrimSpace(c.DefaultUserImage) == "" {
		c.DefaultUserImage = DefaultUserImage
	}
}

// Validate checks the settings the engine config does not cover.
func (c *AppConfig) Validate() error {
	switch c.Session.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DB.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	cfg := c.AuthConfig()
	return cfg.Validate()
}

// AuthConfig maps the environment onto the engine configuration.
func (c *AppConfig) AuthConfig() conduitauth.Config {
	cfg := conduitauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.Leeway = c.JWT.Leeway
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.Session.TTL = c.Session.TTL
	cfg.Session.SweepInterval = c.Session.SweepInterval
	cfg.Session.ExpiredRetention = c.Session.ExpiredRetention
	cfg.Audit.Enabled = c.AuditEnabled
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	return cfg
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", level)
	}
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w *os.File) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
