package refund

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Compute splits a booking's payment into refunded and forfeited parts.
// It is pure: identical inputs always yield an identical Breakdown.
func Compute(pricing Pricing, policy Policy, party Party, timing Timing) Breakdown {
	if !policy.Valid() {
		policy = DefaultPolicy
	}
	days := timing.DaysUntilCheckIn()
	grace := timing.StandardGrace()

	percent := 100
	if party != PartyHost {
		percent = guestSubtotalPercent(policy, pricing.Nights, days, timing)
	}

	b := Breakdown{
		Policy:                policy,
		Party:                 party,
		Currency:              strings.ToUpper(pricing.Currency),
		DaysUntilCheckIn:      days,
		SubtotalRefundPercent: percent,
		SubtotalRefund:        percentOf(pricing.Subtotal, percent),
		IsInGracePeriod:       grace,
	}
	// cleaning is never performed once the check-in day is reached
	if days > 0 {
		b.CleaningFeeRefund = pricing.CleaningFee
	}
	if party == PartyHost || grace {
		b.ServiceFeeRefund = pricing.GuestServiceFee
	}
	b.RefundAmount = b.SubtotalRefund + b.CleaningFeeRefund + b.ServiceFeeRefund
	b.CancellationFee = pricing.Total - b.RefundAmount
	b.RefundPercentage = displayPercentage(b.RefundAmount, pricing.Total)
	return b
}

// guestSubtotalPercent picks the subtotal tier for a guest cancellation.
// days goes negative once check-in has passed. Every tiered policy then falls
// to its lowest row, and for moderate (also the fallback for unknown policies)
// that row is 50%, so a guest leaving mid-stay still gets half the subtotal back.
func guestSubtotalPercent(policy Policy, nights, days int, timing Timing) int {
	switch policy {
	case PolicyFlexible:
		if timing.HoursUntilCheckIn() >= 24 {
			return 100
		}
		return 0
	case PolicyStrict:
		return strictTiers(days)
	case PolicyStrictLongTerm:
		if nights < longStayNightsThreshold {
			return strictTiers(days)
		}
		switch {
		case timing.LongStayGrace():
			return 100
		case days >= 30:
			return 50
		default:
			return 0
		}
	case PolicySuperStrict:
		switch {
		case days >= 30:
			return 100
		case days >= 14:
			return 50
		default:
			return 0
		}
	case PolicyNonRefundable:
		return 0
	default:
		if days >= 5 {
			return 100
		}
		return 50
	}
}

func strictTiers(days int) int {
	switch {
	case days >= 14:
		return 100
	case days >= 7:
		return 50
	default:
		return 0
	}
}

// percentOf rounds half away from zero, matching "round to nearest integer"
// for the non-negative amounts handled here.
func percentOf(amount int64, percent int) int64 {
	if percent <= 0 || amount == 0 {
		return 0
	}
	if percent >= 100 {
		return amount
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(hundred).
		Round(0).
		IntPart()
}

func displayPercentage(refund, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct, _ := decimal.NewFromInt(refund).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2).Float64()
	return pct
}
