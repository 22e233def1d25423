package policies

import (
	"context"
	"errors"
	"fmt"

	"rentcancel/internal/domain/shared/money"
)

// ErrRefundRejected is returned by providers that refused the refund outright.
// Transport failures are returned as-is.
var ErrRefundRejected = errors.New("payments: refund rejected")

// ErrRefundKeyConflict is a rejection for a key that already refunded a
// different amount. No retry under that key can succeed.
var ErrRefundKeyConflict = fmt.Errorf("%w: idempotency key already used for a different amount", ErrRefundRejected)

// RefundInstruction asks the payment provider to return money to the guest.
// Providers must treat IdempotencyKey as the identity of the refund: a
// repeated instruction with the same key never moves money twice.
type RefundInstruction struct {
	BookingID      string
	PaymentRef     string
	Amount         money.Money
	Reason         string
	IdempotencyKey string
}

type RefundReceipt struct {
	Reference string
	// Replayed is set when the provider recognised the idempotency key.
	Replayed bool
}

type PaymentsPort interface {
	Refund(ctx context.Context, instr RefundInstruction) (RefundReceipt, error)
}
