// Command conduitd serves the Conduit account API backed by the session
// authenticator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/conduit-realworld/conduitauth"
	"github.com/conduit-realworld/conduitauth/internal/appconfig"
	"github.com/conduit-realworld/conduitauth/internal/httpapi"
	"github.com/conduit-realworld/conduitauth/metrics/export/prometheus"
	"github.com/conduit-realworld/conduitauth/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("conduitd exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authCfg := cfg.AuthConfig()
	be, err := openBackend(ctx, cfg, authCfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	engine, err := conduitauth.New().
		WithConfig(authCfg).
		WithSessionStore(be.sessions).
		WithUserProvider(be.users).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	logPosture(logger, engine)

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics = prometheus.NewExporter(engine).Handler()
	}
	api := httpapi.New(httpapi.Options{
		Engine:           engine,
		Profiles:         be.users,
		Metrics:          metrics,
		DefaultUserImage: cfg.DefaultUserImage,
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr, "session_backend", cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if expirer, ok := be.sessions.(session.Expirer); ok && cfg.Session.SweepInterval > 0 {
		sweeper, err := session.NewSweeper(expirer, session.SweeperOptions{
			Interval: cfg.Session.SweepInterval,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	return g.Wait()
}

func logPosture(logger *slog.Logger, engine *conduitauth.Engine) {
	cfg := engine.Config()
	for _, w := range cfg.Lint() {
		level := slog.LevelInfo
		if w.Severity >= conduitauth.LintWarn {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "config lint", "code", w.Code, "severity", w.Severity.String(), "detail", w.Message)
	}

	r := engine.SecurityReport()
	logger.Info("security posture",
		"signing", r.SigningAlgorithm,
		"access_ttl", r.AccessTTL,
		"session_ttl", r.SessionTTL,
		"argon2_memory_kib", r.Argon2.Memory,
		"audit", r.AuditEnabled,
		"logout_all", r.LogoutAllSupported,
		"session_listing", r.SessionListingSupported,
	)
}
