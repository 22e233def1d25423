package refund

import (
	"fmt"

	"rentcancel/internal/domain/shared/money"
)

// Breakdown is the refund split produced for one cancellation evaluation.
type Breakdown struct {
	Policy                Policy
	Party                 Party
	Currency              string
	DaysUntilCheckIn      int
	SubtotalRefundPercent int
	SubtotalRefund        int64
	CleaningFeeRefund     int64
	ServiceFeeRefund      int64
	RefundAmount          int64
	CancellationFee       int64
	// RefundPercentage is for display only and never feeds arithmetic.
	RefundPercentage float64
	IsInGracePeriod  bool
}

func (b Breakdown) Refund() money.Money {
	return money.Money{Amount: b.RefundAmount, Currency: b.Currency}
}

func (b Breakdown) Fee() money.Money {
	return money.Money{Amount: b.CancellationFee, Currency: b.Currency}
}

// Verify checks the breakdown against the snapshot it was computed from.
func (b Breakdown) Verify(p Pricing) error {
	if b.CancellationFee < 0 {
		return fmt.Errorf("%w: negative cancellation fee %d", ErrDataIntegrity, b.CancellationFee)
	}
	if b.RefundAmount+b.CancellationFee != p.Total {
		return fmt.Errorf("%w: refund %d + fee %d != total %d", ErrDataIntegrity, b.RefundAmount, b.CancellationFee, p.Total)
	}
	if b.SubtotalRefundPercent < 0 || b.SubtotalRefundPercent > 100 {
		return fmt.Errorf("%w: refund percent %d out of range", ErrDataIntegrity, b.SubtotalRefundPercent)
	}
	return nil
}
