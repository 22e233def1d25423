package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentcancel/internal/app/commands"
	bookinghandlers "rentcancel/internal/app/handlers/booking"
	handlersupport "rentcancel/internal/app/handlers/support"
	"rentcancel/internal/app/uow"
)

var ErrWorkerNotConfigured = errors.New("reconcile: worker missing dependencies")

// Worker retries refunds left pending after a provider failure. Each pending
// booking is settled through the command bus so it gets the same
// transaction and logging as a request-driven settlement.
type Worker struct {
	UoWFactory uow.UoWFactory
	Bus        commands.Bus
	Interval   time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.UoWFactory == nil || w.Bus == nil {
		return ErrWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && w.Logger != nil {
				w.Logger.ErrorContext(ctx, "refund reconciliation pass failed", "error", err)
			}
		}
	}
}

// RunOnce makes one pass and returns how many refunds were settled.
// Individual failures are logged and left for the next pass.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.pending(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		_, err := w.Bus.Dispatch(ctx, bookinghandlers.SettleDeferredRefundCommand{BookingID: id})
		if err != nil {
			if w.Logger != nil {
				w.Logger.WarnContext(ctx, "pending refund not settled", "booking_id", id, "error", err)
			}
			continue
		}
		settled++
	}
	if settled > 0 && w.Logger != nil {
		w.Logger.InfoContext(ctx, "pending refunds settled", "count", settled, "scanned", len(ids))
	}
	return settled, nil
}

func (w *Worker) pending(ctx context.Context) ([]string, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, w.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookings, err := unit.Booking().ListPendingRefunds(execCtx, w.batchSize())
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, string(b.ID))
	}
	return ids, nil
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return time.Minute
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}
