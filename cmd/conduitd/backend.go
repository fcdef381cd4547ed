package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/conduit-realworld/conduitauth"
	"github.com/conduit-realworld/conduitauth/internal/appconfig"
	"github.com/conduit-realworld/conduitauth/internal/httpapi"
	"github.com/conduit-realworld/conduitauth/internal/postgres"
	"github.com/conduit-realworld/conduitauth/session"
	"github.com/conduit-realworld/conduitauth/userstore"
)

// userBackend is what the server needs from a user store.
type userBackend interface {
	conduitauth.CredentialStore
	httpapi.ProfileStore
}

type backend struct {
	sessions conduitauth.SessionStore
	users    userBackend
	closers  []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend selects the session store named by SESSION_BACKEND. Users live in
// Postgres whenever DATABASE_URL is set and in memory otherwise.
func openBackend(ctx context.Context, cfg appconfig.AppConfig, authCfg conduitauth.Config, logger *slog.Logger) (*backend, error) {
	be := &backend{}

	var pool *pgxpool.Pool
	if cfg.DB.URL != "" {
		if cfg.DB.RunMigrations {
			logger.Info("running database migrations")
			if err := postgres.Migrate(cfg.DB.URL); err != nil {
				return nil, err
			}
		}
		p, err := postgres.Connect(ctx, cfg.DB.URL, postgres.PoolConfig{MaxConns: cfg.DB.MaxConns})
		if err != nil {
			return nil, err
		}
		pool = p
		be.closers = append(be.closers, pool.Close)
		be.users = postgres.NewUserStore(pool)
	} else {
		be.users = userstore.NewMemory()
	}

	switch cfg.Session.Backend {
	case appconfig.BackendMemory:
		be.sessions = session.NewMemoryStore(authCfg.Session.TTL, nil)
	case appconfig.BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		be.closers = append(be.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			be.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		be.sessions = session.NewRedisStore(client, authCfg.RedisSessionConfig(nil))
	case appconfig.BackendPostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres session backend requires DATABASE_URL")
		}
		be.sessions = postgres.NewSessionStore(pool, authCfg.Session.TTL, nil)
	default:
		be.close()
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	logger.Info("backend ready", "sessions", cfg.Session.Backend, "users_in_postgres", pool != nil)
	return be, nil
}
