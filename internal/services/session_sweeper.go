package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/audiobrew/web/internal/metrics"
	"github.com/audiobrew/web/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// SweeperConfig controls how often expired sessions are purged.
type SweeperConfig struct {
	Interval time.Duration
}

// SessionSweeper deletes expired sessions from stores that keep them forever.
type SessionSweeper struct {
	purger  repository.SessionPurger
	monitor ConnectionHealth
	clock   clockwork.Clock
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     SweeperConfig
}

func NewSessionSweeper(
	purger repository.SessionPurger,
	monitor ConnectionHealth,
	clock clockwork.Clock,
	logger *zap.Logger,
	cfg SweeperConfig,
) *SessionSweeper {
	if cfg.Interval < time.Second {
		cfg.Interval = 10 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SessionSweeper{
		purger:  purger,
		monitor: monitor,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("session sweep failed", zap.Error(err))
		}
	})

	return s
}

// Start launches the cron scheduler.
func (s *SessionSweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("session sweeper started", zap.Duration("interval", s.cfg.Interval))
}

// Stop gracefully stops the scheduler, waiting for a running sweep.
func (s *SessionSweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("session sweeper stopped")
}

// Sweep removes expired sessions once and reports how many were deleted.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	if s == nil || s.purger == nil {
		return 0, nil
	}
	if s.monitor != nil && !s.monitor.IsOnline() {
		s.logger.Debug("skipping session sweep (store offline)")
		return 0, nil
	}

	removed, err := s.purger.PurgeExpired(ctx, s.clock.Now())
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		metrics.SessionsSweptTotal.Add(float64(removed))
		s.logger.Info("expired sessions purged", zap.Int("count", removed))
	}
	return removed, nil
}
