package worker

import (
	"context"
	"time"

	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

// StaleReaper is the queue operation that recovers expired leases.
type StaleReaper interface {
	ReapStale(ctx context.Context, nowMs int64) (int, error)
}

// Reaper periodically returns work whose visibility timeout expired to the
// pending list, so items leased by a crashed worker are not lost. Reap errors
// are logged and swallowed; the next tick tries again.
type Reaper struct {
	queue  StaleReaper
	period time.Duration
	logger log.Logger
}

func NewReaper(q StaleReaper, period time.Duration, logger log.Logger) *Reaper {
	if period <= 0 {
		period = 5 * time.Minute
	}
	return &Reaper{
		queue:  q,
		period: period,
		logger: logger.With(log.Component("reaper")),
	}
}

// Run reaps on a fixed period until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.queue.ReapStale(ctx, 0)
			if err != nil {
				r.logger.Error("reap pass failed", log.Err(err))
				continue
			}
			if n > 0 {
				r.logger.Info("recovered stale work", log.Int("items", n))
			}
		}
	}
}
