package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentcancel/internal/app/commands"
	"rentcancel/internal/app/dto"
	"rentcancel/internal/app/middleware"
	"rentcancel/internal/app/outbox"
	"rentcancel/internal/app/policies"
	"rentcancel/internal/app/uow"
	domainbooking "rentcancel/internal/domain/booking"
	"rentcancel/internal/domain/refund"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID       string
	ActorID         string
	ActorRoles      []string
	Reason          string
	IdempotencyKeyV string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

// IdempotencyKey scopes the client key to the actor and booking so one
// client key can never replay another party's result.
func (c CancelBookingCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdempotencyKeyV)
	if key == "" {
		return ""
	}
	return c.ActorID + ":" + c.BookingID + ":" + key
}

func (c CancelBookingCommand) ResultPrototype() any { return &dto.CancellationResult{} }

func (c CancelBookingCommand) Validate() error {
	if strings.TrimSpace(c.Reason) == "" {
		return domainbooking.ErrMissingReason
	}
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	if strings.TrimSpace(c.ActorID) == "" {
		return ErrActorRequired
	}
	return nil
}

type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Payments   policies.PaymentsPort
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Now        func() time.Time
	// DeferOnProviderError keeps the cancellation and leaves the refund
	// pending for reconciliation instead of aborting on provider failure.
	DeferOnProviderError bool
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.CancellationResult, error) {
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

	view, err := loadView(ctx, unit, cmd.BookingID)
	if err != nil {
		h.logIntegrity(ctx, cmd, err)
		return nil, err
	}
	actor, err := resolveActor(view, cmd.ActorID, cmd.ActorRoles)
	if err != nil {
		return nil, err
	}
	booking := view.booking
	now := h.now()
	breakdown, err := booking.Cancel(domainbooking.CancelParams{
		Actor:  actor,
		Reason: cmd.Reason,
		Policy: view.listing.Policy(),
		Now:    now,
	})
	if err != nil {
		h.logIntegrity(ctx, cmd, err)
		return nil, err
	}

	if booking.RefundOutstanding() {
		receipt, err := h.Payments.Refund(ctx, refundInstruction(booking))
		switch {
		case err == nil:
			if err := booking.SettleRefund(receipt.Reference, now); err != nil {
				return nil, err
			}
		case h.DeferOnProviderError && deferrable(err):
			if h.Logger != nil {
				h.Logger.WarnContext(ctx, "refund deferred", "booking_id", booking.ID, "amount", breakdown.RefundAmount, "error", err)
			}
			if err := booking.DeferRefund(err.Error(), now); err != nil {
				return nil, err
			}
		default:
			failure := refundFailure(string(booking.ID), err)
			h.logIntegrity(ctx, cmd, failure)
			return nil, failure
		}
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
		h.Logger.InfoContext(ctx, "booking cancelled",
			"booking_id", booking.ID,
			"actor", actor,
			"policy", breakdown.Policy,
			"refund", breakdown.RefundAmount,
			"fee", breakdown.CancellationFee,
			"refund_status", booking.Cancellation.RefundStatus,
		)
	}
	result := dto.MapCancellation(booking)
	return &result, nil
}

func (h *CancelBookingHandler) logIntegrity(ctx context.Context, cmd CancelBookingCommand, err error) {
	if h.Logger == nil || !errors.Is(err, refund.ErrDataIntegrity) {
		return
	}
	h.Logger.ErrorContext(ctx, "refund data integrity violation", "booking_id", cmd.BookingID, "error", err)
}

func (h *CancelBookingHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CancelBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// refundInstruction always carries the amount stored on the cancellation
// record and the booking id as key, so every replay is the same refund.
func refundInstruction(b *domainbooking.Booking) policies.RefundInstruction {
	return policies.RefundInstruction{
		BookingID:      string(b.ID),
		PaymentRef:     b.PaymentReference,
		Amount:         b.Cancellation.RefundAmount(),
		Reason:         b.Cancellation.Reason,
		IdempotencyKey: string(b.ID),
	}
}

var _ commands.Handler[CancelBookingCommand, *dto.CancellationResult] = (*CancelBookingHandler)(nil)
var _ middleware.IdempotentCommand = (*CancelBookingCommand)(nil)
var _ middleware.SelfValidating = CancelBookingCommand{}
