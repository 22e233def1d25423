package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/dto"
	"rentcancel/internal/app/outbox"
	"rentcancel/internal/app/policies"
	"rentcancel/internal/app/uow"
	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
)

const settleDeferredRefundKey = "booking.refund.settle"

// SettleDeferredRefundCommand retries the refund of a cancellation whose
// provider call was deferred.
type SettleDeferredRefundCommand struct {
	BookingID string
}

func (c SettleDeferredRefundCommand) Key() string { return settleDeferredRefundKey }

func (c SettleDeferredRefundCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	return nil
}

type SettleDeferredRefundHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
}

func (h *SettleDeferredRefundHandler) Handle(ctx context.Context, cmd SettleDeferredRefundCommand) (*dto.RefundSettlement, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if h.Payments == nil {
		return nil, errors.New("booking: payments port required")
	}
	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, ErrUnitOfWorkRequired
		}
		var err error
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, err
		}
		ctx = uow.ContextWithUnitOfWork(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	booking, err := unit.Booking().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if booking.Cancellation == nil {
		return nil, domainbooking.ErrNotCancelled
	}
	if !booking.RefundOutstanding() {
		result := dto.MapSettlement(booking)
		return &result, nil
	}

	receipt, err := h.Payments.Refund(ctx, refundInstruction(booking))
	if err != nil {
		failure := refundFailure(string(booking.ID), err)
		if h.Logger != nil {
			if errors.Is(failure, refund.ErrDataIntegrity) {
				h.Logger.ErrorContext(ctx, "deferred refund conflicts with executed refund", "booking_id", booking.ID, "error", err)
			} else {
				h.Logger.WarnContext(ctx, "deferred refund still failing", "booking_id", booking.ID, "error", err)
			}
		}
		return nil, failure
	}
	if err := booking.SettleRefund(receipt.Reference, h.now()); err != nil {
		return nil, err
	}
	if err := unit.Booking().Save(ctx, booking); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.encoder(), booking); err != nil {
		return nil, err
	}
	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, err
		}
		committed = true
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "deferred refund settled", "booking_id", booking.ID, "reference", receipt.Reference, "replayed", receipt.Replayed)
	}
	result := dto.MapSettlement(booking)
	return &result, nil
}

func (h *SettleDeferredRefundHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *SettleDeferredRefundHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

var _ commands.Handler[SettleDeferredRefundCommand, *dto.RefundSettlement] = (*SettleDeferredRefundHandler)(nil)
