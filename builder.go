package conduitauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/conduit-realworld/conduitauth/internal/audit"
	"github.com/conduit-realworld/conduitauth/jwt"
	"github.com/conduit-realworld/conduitauth/password"
	"github.com/conduit-realworld/conduitauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessionStore   SessionStore
	userProvider   UserProvider
	passwordHasher PasswordHasher
	auditSink      AuditSink
	logger         *slog.Logger
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis using Config.Session. It is ignored when
// WithSessionStore is also set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

// WithUserProvider sets the user lookup. Register, Login and UpdateUser also need it
// to implement CredentialStore.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.passwordHasher = h
	return b
}

// WithAuditSink sets the audit destination. Without one, enabled audit events are
// logged through the Engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance, session creation and freshness checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- SESSION STORE --------
	store := b.sessionStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		store = session.NewRedisStore(b.redis, cfg.RedisSessionConfig(now))
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(cfg.codecConfig(now))
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.passwordHasher
	if hasher == nil {
		ph, err := password.NewArgon2(cfg.passwordConfig())
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewSlogSink(logger)
	}

	metrics := NewMetrics(cfg.Metrics)
	authenticator, err := NewAuthenticator(AuthenticatorDeps{
		Codec:    codec,
		Sessions: store,
		Users:    b.userProvider,
		Now:      now,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cfg,
		codec:         codec,
		sessions:      store,
		users:         b.userProvider,
		hasher:        hasher,
		authenticator: authenticator,
		audit:         audit.NewDispatcher(cfg.auditConfig(), sink),
		metrics:       metrics,
		logger:        logger,
		now:           now,
	}
	if creds, ok := b.userProvider.(CredentialStore); ok {
		engine.credentials = creds
	}

	b.built = true

	return engine, nil
}
