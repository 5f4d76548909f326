package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-paypal-proxy/core"
)

const (
	retryDelay   = time.Minute
	pollInterval = time.Second
)

// Scheduler enqueues a sweep message every interval. It is split from the
// Worker so multiple proxy instances can share one queue with a single
// consumer pool.
type Scheduler struct {
	sweeper  *Sweeper
	enqueuer queue.Enqueuer
	logger   core.Logger
}

func NewScheduler(sweeper *Sweeper, enqueuer queue.Enqueuer, logger core.Logger) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("jobs: sweeper is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("jobs: queue enqueuer is required")
	}
	return &Scheduler{sweeper: sweeper, enqueuer: enqueuer, logger: logger}, nil
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.enqueue(ctx)

	ticker := time.NewTicker(s.sweeper.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.enqueue(ctx)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context) {
	receipt, err := s.enqueuer.Enqueue(ctx, s.sweeper.SweepMessage())
	if err != nil {
		if s.logger != nil {
			s.logger.Error("sweep enqueue failed", "error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("sweep enqueued", "dispatch_id", receipt.DispatchID)
	}
}

// Worker consumes sweep messages. Transient sweep failures nack with a
// retry disposition and delay; messages for unknown job ids are failed.
type Worker struct {
	sweeper  *Sweeper
	dequeuer queue.Dequeuer
	logger   core.Logger
}

func NewWorker(sweeper *Sweeper, dequeuer queue.Dequeuer, logger core.Logger) (*Worker, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("jobs: sweeper is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("jobs: queue dequeuer is required")
	}
	return &Worker{sweeper: sweeper, dequeuer: dequeuer, logger: logger}, nil
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("jobs: dequeue failed: %w", err)
		}
		// Polling adapters report an empty queue as a nil delivery.
		if delivery == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}
		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery queue.Delivery) {
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDPendingOrderSweep {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		if w.logger != nil {
			w.logger.Info("dropping message for unknown job", "job_id", jobID)
		}
		_ = delivery.Nack(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionFailed,
			Reason:      "unknown job id",
		})
		return
	}

	if _, err := w.sweeper.SweepOnce(ctx); err != nil {
		if w.logger != nil {
			w.logger.Error("sweep execution failed", "error", err)
		}
		_ = delivery.Nack(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionRetry,
			Delay:       retryDelay,
			Reason:      err.Error(),
		})
		return
	}
	_ = delivery.Ack(ctx)
}
