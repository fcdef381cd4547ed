package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when a Sweeper is built with a non-positive interval.
const DefaultSweepInterval = time.Minute

// Expirer is implemented by stores that can purge expired sessions in bulk.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically deletes expired sessions.
type Sweeper struct {
	store    Expirer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// SweeperOptions holds the dependencies for creating a Sweeper.
type SweeperOptions struct {
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewSweeper returns a sweeper over store.
func NewSweeper(store Expirer, opts SweeperOptions) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweeper requires a store")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sweeper{
		store:    store,
		interval: opts.Interval,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	removed, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "session sweep failed", "error", err, "removed", removed)
		return removed, err
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "session sweep completed", "removed", removed)
	}
	return removed, nil
}

// Run sweeps on every tick until ctx is cancelled. Sweep failures are logged and do
// not stop the loop. It returns nil on cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting session sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.WithoutCancel(ctx), "session sweeper stopped")
			return nil
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
