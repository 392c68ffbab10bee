package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// CompletedEvent is a verified "payment completed" gateway event. The
// signature has already been checked by the HTTP boundary; the
// reconciler trusts the payload but not the delivery semantics, which
// are at-least-once and possibly out of order.
type CompletedEvent struct {
	RiderID    uuid.UUID
	PaymentIDs []uuid.UUID
}

// Reconciler settles asynchronous gateway confirmations against payment
// rows. It never computes amounts and never touches sessions.
type Reconciler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewReconciler(repo *Repository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		logger: logger,
	}
}

// HandleCompleted marks the event's payments PAID. When the event names
// the payments it covers, only those rows move; events without that
// detail fall back to sweeping the rider's PENDING payments, which is
// the most the payload lets us claim was collected. Idempotent: a
// replay finds nothing left in PENDING and moves zero rows.
//
// Transient store failures are retried with capped backoff here because
// provoking a gateway redelivery is far more expensive than retrying
// locally. Failure of one event never affects later deliveries.
func (r *Reconciler) HandleCompleted(ctx context.Context, ev CompletedEvent) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var (
			moved int64
			err   error
		)
		if len(ev.PaymentIDs) > 0 {
			moved, err = r.repo.MarkPaid(ctx, ev.PaymentIDs)
		} else {
			moved, err = r.repo.MarkPaidForRider(ctx, ev.RiderID)
		}
		if err != nil {
			return retry.RetryableError(err)
		}

		if moved == 0 {
			r.logger.InfoContext(ctx, "payment event already settled",
				"riderId", ev.RiderID, "paymentIds", len(ev.PaymentIDs))
		} else {
			r.logger.InfoContext(ctx, "payments marked paid",
				"riderId", ev.RiderID, "count", moved)
		}
		return nil
	})
}
