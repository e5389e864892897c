package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Zuzuna54/fintech-app-demo/internal/ledger"
	"github.com/Zuzuna54/fintech-app-demo/internal/queue"
	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

var (
	settledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_completed_total",
		Help: "Payments settled successfully",
	})
	terminalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_terminal_failures_total",
		Help: "Payments that failed with a business error and were acknowledged",
	})
	transientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_transient_failures_total",
		Help: "Settlement attempts that hit a transient error and were retried",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_dropped_total",
		Help: "Work items dropped because the payment row no longer exists",
	})
)

// WorkQueue is the slice of the queue the worker drives.
type WorkQueue interface {
	Dequeue(ctx context.Context, visibility time.Duration, nowMs int64) (*queue.Delivery, error)
	Acknowledge(ctx context.Context, paymentID string) error
	Retry(ctx context.Context, paymentID string, item *queue.Item, nowMs int64) (queue.RetryOutcome, error)
}

// Ledger is the slice of the ledger store the worker drives.
type Ledger interface {
	ApplyTransfer(ctx context.Context, paymentID uuid.UUID) error
	MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID) error
}

// Worker pulls settlement work and applies it to the ledger. Run several
// against one queue; the queue hands each item to exactly one of them.
type Worker struct {
	queue      WorkQueue
	ledger     Ledger
	visibility time.Duration
	logger     log.Logger
}

func New(q WorkQueue, l Ledger, visibility time.Duration, logger log.Logger) *Worker {
	if visibility <= 0 {
		visibility = 30 * time.Minute
	}
	return &Worker{
		queue:      q,
		ledger:     l,
		visibility: visibility,
		logger:     logger.With(log.Component("worker")),
	}
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		d, err := w.queue.Dequeue(ctx, w.visibility, 0)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", log.Err(err))
			continue
		}
		w.process(ctx, d)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// process settles one delivery and decides its fate: acknowledge, retry, or
// drop. Failures to acknowledge are only logged; the reaper will redeliver
// and the ledger no-ops a second settlement of a completed payment.
func (w *Worker) process(ctx context.Context, d *queue.Delivery) {
	item := d.Item
	logger := w.logger.With(log.Str("payment_id", item.PaymentID), log.Int("retries", item.Retries))

	pid, err := uuid.Parse(item.PaymentID)
	if err != nil {
		logger.Warn("dropping item with malformed payment id", log.Err(err))
		droppedTotal.Inc()
		w.ack(ctx, item.PaymentID, logger)
		return
	}

	err = w.ledger.ApplyTransfer(ctx, pid)
	switch {
	case err == nil:
		settledTotal.Inc()
		logger.Info("payment settled")
		w.ack(ctx, item.PaymentID, logger)

	case errors.Is(err, ledger.ErrPaymentNotFound):
		// The queue item outlived its payment row. Nothing to settle.
		droppedTotal.Inc()
		logger.Warn("dropping item for missing payment")
		w.ack(ctx, item.PaymentID, logger)

	case ledger.IsTerminal(err):
		// The ledger already committed the failed status.
		terminalTotal.Inc()
		logger.Info("payment failed", log.Err(err))
		w.ack(ctx, item.PaymentID, logger)

	default:
		transientTotal.Inc()
		logger.Warn("settlement attempt failed", log.Err(err))
		// Tentative failure mark; a later attempt overwrites it on success.
		if markErr := w.ledger.MarkPaymentFailed(ctx, pid); markErr != nil {
			logger.Error("could not mark payment failed", log.Err(markErr))
		}
		outcome, retryErr := w.queue.Retry(ctx, item.PaymentID, item, 0)
		if retryErr != nil {
			logger.Error("retry failed, item stays leased for the reaper", log.Err(retryErr))
			return
		}
		if outcome == queue.DeadLettered {
			logger.Error("payment dead-lettered after exhausting retries")
		}
	}
}

func (w *Worker) ack(ctx context.Context, paymentID string, logger log.Logger) {
	if err := w.queue.Acknowledge(ctx, paymentID); err != nil {
		logger.Error("acknowledge failed", log.Err(err))
	}
}
