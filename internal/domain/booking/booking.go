package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentcancel/internal/domain/listings"
	"rentcancel/internal/domain/refund"
	"rentcancel/internal/domain/shared/daterange"
	"rentcancel/internal/domain/shared/events"
)

var (
	ErrInvalidGuests        = errors.New("booking: guests count must be positive")
	ErrGuestRequired        = errors.New("booking: guest id required")
	ErrInvalidState         = errors.New("booking: invalid state transition")
	ErrPaymentRefRequired   = errors.New("booking: payment reference required")
	ErrBookingNotFound      = errors.New("booking: not found")
	ErrConcurrentUpdate     = errors.New("booking: concurrent update detected")
	ErrNightsMismatch       = errors.New("booking: pricing nights do not match date range")
	ErrNotCancelled         = errors.New("booking: booking is not cancelled")
	ErrRefundAlreadySettled = errors.New("booking: refund already settled")
)

type BookingID string

type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusConfirmed        Status = "confirmed"
	StatusCompleted        Status = "completed"
	StatusCancelledByGuest Status = "cancelled_by_guest"
	StatusCancelledByHost  Status = "cancelled_by_host"
	StatusCancelledByAdmin Status = "cancelled_by_admin"
)

func (s Status) Cancelled() bool {
	switch s {
	case StatusCancelledByGuest, StatusCancelledByHost, StatusCancelledByAdmin:
		return true
	}
	return false
}

type Booking struct {
	ID        BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	// Pricing is frozen when the booking is created and never recalculated.
	Pricing          refund.Pricing
	Status           Status
	PaymentReference string
	Cancellation     *Cancellation
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListPendingRefunds(ctx context.Context, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Pricing   refund.Pricing
	CreatedAt time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if err := params.Pricing.Validate(); err != nil {
		return nil, err
	}
	if params.Pricing.Nights != params.Range.Nights() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrNightsMismatch, params.Pricing.Nights, params.Range.Nights())
	}
	now := params.CreatedAt.UTC()
	pricing := params.Pricing
	pricing.Currency = strings.ToUpper(pricing.Currency)
	return &Booking{
		ID:        params.ID,
		ListingID: params.ListingID,
		GuestID:   params.GuestID,
		Range:     params.Range,
		Guests:    params.Guests,
		Pricing:   pricing,
		Status:    StatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPaid confirms the booking once the payment provider captured the guest's payment.
func (b *Booking) MarkPaid(paymentRef string, now time.Time) error {
	if b.Status != StatusPendingPayment {
		return ErrInvalidState
	}
	if strings.TrimSpace(paymentRef) == "" && b.Pricing.Total > 0 {
		return ErrPaymentRefRequired
	}
	b.PaymentReference = strings.TrimSpace(paymentRef)
	b.Status = StatusConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, Total: b.Pricing.TotalMoney(), At: b.UpdatedAt})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

// Cancellable reports whether a cancellation may still be applied.
func (b *Booking) Cancellable() bool {
	return b.Status == StatusConfirmed
}
