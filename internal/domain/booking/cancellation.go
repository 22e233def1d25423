package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/money"
)

var (
	ErrMissingReason = errors.New("booking: cancellation reason is required")
	ErrUnknownActor  = errors.New("booking: unknown cancelling actor")
)

// Actor is who asked for the cancellation.
type Actor string

const (
	ActorGuest Actor = "guest"
	ActorHost  Actor = "host"
	ActorAdmin Actor = "admin"
)

// Party maps an actor to the calculator rule it is charged under. Admin
// cancellations never penalise the guest.
func (a Actor) Party() (refund.Party, error) {
	switch a {
	case ActorGuest:
		return refund.PartyGuest, nil
	case ActorHost, ActorAdmin:
		return refund.PartyHost, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActor, a)
	}
}

func (a Actor) cancelledStatus() Status {
	switch a {
	case ActorHost:
		return StatusCancelledByHost
	case ActorAdmin:
		return StatusCancelledByAdmin
	default:
		return StatusCancelledByGuest
	}
}

type RefundStatus string

const (
	RefundPending     RefundStatus = "pending"
	RefundSettled     RefundStatus = "settled"
	RefundNotRequired RefundStatus = "not_required"
)

// Cancellation is the immutable record of an applied cancellation. Only the
// refund settlement fields move after it is written.
type Cancellation struct {
	By              Actor
	Reason          string
	At              time.Time
	Breakdown       refund.Breakdown
	RefundStatus    RefundStatus
	RefundReference string
	RefundSettledAt time.Time
	LastRefundError string
}

func (c Cancellation) RefundAmount() money.Money {
	return c.Breakdown.Refund()
}

func (c Cancellation) CancellationFee() money.Money {
	return c.Breakdown.Fee()
}

type CancelParams struct {
	Actor  Actor
	Reason string
	Policy refund.Policy
	Now    time.Time
}

// EvaluateRefund runs the refund calculator against the booking without
// changing it. Preview and Cancel share this path.
func (b *Booking) EvaluateRefund(actor Actor, policy refund.Policy, now time.Time) (refund.Breakdown, error) {
	if !b.Cancellable() {
		return refund.Breakdown{}, ErrInvalidState
	}
	party, err := actor.Party()
	if err != nil {
		return refund.Breakdown{}, err
	}
	if err := b.Pricing.Validate(); err != nil {
		return refund.Breakdown{}, err
	}
	breakdown := refund.Compute(b.Pricing, policy, party, refund.Timing{
		CreatedAt: b.CreatedAt,
		StartDate: b.Range.CheckIn,
		Now:       now,
	})
	if err := breakdown.Verify(b.Pricing); err != nil {
		return refund.Breakdown{}, err
	}
	return breakdown, nil
}

func (b *Booking) Cancel(params CancelParams) (refund.Breakdown, error) {
	reason := strings.TrimSpace(params.Reason)
	if reason == "" {
		return refund.Breakdown{}, ErrMissingReason
	}
	breakdown, err := b.EvaluateRefund(params.Actor, params.Policy, params.Now)
	if err != nil {
		return refund.Breakdown{}, err
	}
	now := params.Now.UTC()
	status := RefundPending
	if breakdown.RefundAmount == 0 {
		status = RefundNotRequired
	}
	b.Status = params.Actor.cancelledStatus()
	b.Cancellation = &Cancellation{
		By:           params.Actor,
		Reason:       reason,
		At:           now,
		Breakdown:    breakdown,
		RefundStatus: status,
	}
	b.UpdatedAt = now
	b.Record(BookingCancelled{
		BookingID:             b.ID,
		ListingID:             b.ListingID,
		GuestID:               b.GuestID,
		Status:                b.Status,
		CancelledBy:           params.Actor,
		Reason:                reason,
		Policy:                breakdown.Policy,
		SubtotalRefundPercent: breakdown.SubtotalRefundPercent,
		Refund:                breakdown.Refund(),
		CancellationFee:       breakdown.Fee(),
		IsInGracePeriod:       breakdown.IsInGracePeriod,
		At:                    now,
	})
	return breakdown, nil
}

// RefundOutstanding reports whether money still has to reach the guest.
func (b *Booking) RefundOutstanding() bool {
	return b.Cancellation != nil && b.Cancellation.RefundStatus == RefundPending
}

func (b *Booking) SettleRefund(reference string, now time.Time) error {
	if b.Cancellation == nil {
		return ErrNotCancelled
	}
	if b.Cancellation.RefundStatus != RefundPending {
		return ErrRefundAlreadySettled
	}
	now = now.UTC()
	b.Cancellation.RefundStatus = RefundSettled
	b.Cancellation.RefundReference = reference
	b.Cancellation.RefundSettledAt = now
	b.Cancellation.LastRefundError = ""
	b.UpdatedAt = now
	b.Record(RefundSettledEvent{BookingID: b.ID, Amount: b.Cancellation.RefundAmount(), Reference: reference, At: now})
	return nil
}

// DeferRefund leaves the refund pending for the reconciliation path.
func (b *Booking) DeferRefund(cause string, now time.Time) error {
	if b.Cancellation == nil {
		return ErrNotCancelled
	}
	if b.Cancellation.RefundStatus != RefundPending {
		return ErrRefundAlreadySettled
	}
	now = now.UTC()
	b.Cancellation.LastRefundError = cause
	b.UpdatedAt = now
	b.Record(RefundDeferred{BookingID: b.ID, Amount: b.Cancellation.RefundAmount(), Cause: cause, At: now})
	return nil
}
