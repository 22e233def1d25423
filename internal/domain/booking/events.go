package booking

import (
	"time"

	"rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/money"
)

type BookingConfirmed struct {
	BookingID BookingID
	ListingID listings.ListingID
	Total     money.Money
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID
	At        time.Time
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID             BookingID
	ListingID             listings.ListingID
	GuestID               string
	Status                Status
	CancelledBy           Actor
	Reason                string
	Policy                refund.Policy
	SubtotalRefundPercent int
	Refund                money.Money
	CancellationFee       money.Money
	IsInGracePeriod       bool
	At                    time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type RefundSettledEvent struct {
	BookingID BookingID
	Amount    money.Money
	Reference string
	At        time.Time
}

func (e RefundSettledEvent) EventName() string     { return "booking.refund_settled" }
func (e RefundSettledEvent) AggregateID() string   { return string(e.BookingID) }
func (e RefundSettledEvent) OccurredAt() time.Time { return e.At }

type RefundDeferred struct {
	BookingID BookingID
	Amount    money.Money
	Cause     string
	At        time.Time
}

func (e RefundDeferred) EventName() string     { return "booking.refund_deferred" }
func (e RefundDeferred) AggregateID() string   { return string(e.BookingID) }
func (e RefundDeferred) OccurredAt() time.Time { return e.At }
