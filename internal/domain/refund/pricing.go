package refund

import (
	"errors"
	"fmt"
	"strings"

	"rentcancel/internal/domain/shared/money"
)

// ErrDataIntegrity marks a pricing snapshot or breakdown that violates its
// bookkeeping invariants. Callers must abort rather than clamp.
var ErrDataIntegrity = errors.New("refund: data integrity violation")

// Pricing is the booking's price snapshot frozen at booking time.
type Pricing struct {
	Subtotal        int64
	CleaningFee     int64
	GuestServiceFee int64
	Taxes           int64
	Total           int64
	Currency        string
	Nights          int
}

func (p Pricing) Validate() error {
	if len(strings.TrimSpace(p.Currency)) != 3 {
		return fmt.Errorf("%w: currency %q", ErrDataIntegrity, p.Currency)
	}
	if p.Nights < 1 {
		return fmt.Errorf("%w: nights must be at least 1, got %d", ErrDataIntegrity, p.Nights)
	}
	if p.Subtotal < 0 || p.CleaningFee < 0 || p.GuestServiceFee < 0 || p.Taxes < 0 || p.Total < 0 {
		return fmt.Errorf("%w: negative price component", ErrDataIntegrity)
	}
	if sum := p.Subtotal + p.CleaningFee + p.GuestServiceFee + p.Taxes; sum != p.Total {
		return fmt.Errorf("%w: total %d does not match components %d", ErrDataIntegrity, p.Total, sum)
	}
	return nil
}

func (p Pricing) TotalMoney() money.Money {
	return money.Money{Amount: p.Total, Currency: strings.ToUpper(p.Currency)}
}
