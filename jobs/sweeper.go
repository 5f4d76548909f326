package jobs

import (
	"context"
	"fmt"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-paypal-proxy/core"
)

const JobIDPendingOrderSweep = "proxy.pending_orders.sweep"

const defaultSweepInterval = time.Hour

type SweeperConfig struct {
	Store    core.PendingOrderStore
	Logger   core.Logger
	Interval time.Duration
	Now      func() time.Time
}

// Sweeper deletes pending order contexts whose TTL elapsed without a PayPal
// order ever being created against them.
type Sweeper struct {
	store    core.PendingOrderStore
	logger   core.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("jobs: pending order store is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Sweeper{
		store:    cfg.Store,
		logger:   cfg.Logger,
		interval: interval,
		now:      now,
	}, nil
}

func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// SweepOnce removes every expired pending order and reports the count.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("jobs: pending order sweep failed: %w", err)
	}
	if count > 0 && s.logger != nil {
		s.logger.Info("expired pending orders swept", "count", count)
	}
	return count, nil
}

// Run sweeps immediately, then on every interval tick until the context is
// cancelled. Sweep failures are logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	if _, err := s.SweepOnce(ctx); err != nil && s.logger != nil {
		s.logger.Error("pending order sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && s.logger != nil {
				s.logger.Error("pending order sweep failed", "error", err)
			}
		}
	}
}

// SweepMessage builds the queue message for one sweep run. The idempotency
// key buckets by interval so duplicate schedulers collapse to one execution.
func (s *Sweeper) SweepMessage() *job.ExecutionMessage {
	bucket := s.now().Truncate(s.interval).Unix()
	return &job.ExecutionMessage{
		JobID:          JobIDPendingOrderSweep,
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDPendingOrderSweep, bucket),
		DedupPolicy:    "drop",
	}
}
