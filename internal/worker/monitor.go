package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Zuzuna54/fintech-app-demo/internal/queue"
	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

var (
	pendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payment_queue_pending_depth",
		Help: "Items waiting for a worker",
	})
	inFlightDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payment_queue_in_flight_depth",
		Help: "Items currently leased to a worker",
	})
	deadLetterDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payment_queue_dead_letter_depth",
		Help: "Items parked after exhausting their retry budget",
	})
)

// StatsSource reports queue depths.
type StatsSource interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// Monitor samples queue depths on a period, logs them, and exports them as
// gauges. Observation only; it never mutates queue state.
type Monitor struct {
	queue  StatsSource
	period time.Duration
	logger log.Logger
}

func NewMonitor(q StatsSource, period time.Duration, logger log.Logger) *Monitor {
	if period <= 0 {
		period = time.Minute
	}
	return &Monitor{
		queue:  q,
		period: period,
		logger: logger.With(log.Component("monitor")),
	}
}

// Run samples until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s, err := m.queue.Stats(ctx)
			if err != nil {
				m.logger.Error("stats sample failed", log.Err(err))
				continue
			}
			pendingDepth.Set(float64(s.Pending))
			inFlightDepth.Set(float64(s.InFlight))
			deadLetterDepth.Set(float64(s.DeadLetter))
			m.logger.Info("queue depths",
				log.Int("pending", s.Pending),
				log.Int("in_flight", s.InFlight),
				log.Int("dead_letter", s.DeadLetter))
		}
	}
}
