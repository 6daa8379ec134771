// Package reaper finalises abandoned sessions. Buyers who walk away without
// a word leave a live summary row and an expired hot entry behind; the
// sweeper turns those into timed_out summaries so the audit trail closes.
package reaper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/types"
)

// sweepBatch bounds how many sessions one sweep finalises.
const sweepBatch = 100

// Reaper periodically sweeps expired, non-terminal sessions.
type Reaper struct {
	hot      hotstore.Store
	durable  storage.Storage
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Config holds reaper configuration.
type Config struct {
	Hot      hotstore.Store
	Durable  storage.Storage
	Interval time.Duration
	Logger   *zap.Logger
}

// New creates a reaper.
func New(cfg *Config) (*Reaper, error) {
	if cfg.Hot == nil {
		return nil, fmt.Errorf("hot store cannot be nil")
	}
	if cfg.Durable == nil {
		return nil, fmt.Errorf("durable storage cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	r := &Reaper{
		hot:      cfg.Hot,
		durable:  cfg.Durable,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		now:      time.Now,
	}

	if r.interval <= 0 {
		r.interval = time.Minute
	}

	return r, nil
}

// SetNow overrides the clock for tests.
func (r *Reaper) SetNow(now func() time.Time) {
	r.now = now
}

// Start runs the sweep loop until the context is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("reaper-started",
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper-stopped")
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("sweep-failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("sweep-finalised-sessions", zap.Int("count", n))
			}
		}
	}
}

// Sweep finalises expired sessions once and returns how many it closed. A
// session still holding a live hot entry is left for the service to time out
// on next touch, which keeps the two writers from racing.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()

	stale, err := r.durable.ExpiredActiveSessions(ctx, now, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	closed := 0
	for i := range stale {
		summary := stale[i]

		if _, err := r.hot.LoadSession(ctx, summary.SessionID); err == nil {
			continue
		}

		summary.State = types.StateTimedOut
		summary.Tactic = types.TacticTimeout
		summary.ClosedAt = now

		if err := r.durable.UpsertSummary(ctx, &summary); err != nil {
			r.logger.Error("reap-summary-failed",
				zap.String("session-id", summary.SessionID),
				zap.Error(err))
			continue
		}

		closed++
		sessionsReapedTotal.Inc()

		r.logger.Debug("session-reaped",
			zap.String("session-id", summary.SessionID),
			zap.Time("expired-at", summary.ExpiresAt))
	}

	return closed, nil
}
