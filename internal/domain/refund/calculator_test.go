package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func samplePricing() Pricing {
	return Pricing{
		Subtotal:        10000,
		CleaningFee:     1000,
		GuestServiceFee: 880,
		Total:           11880,
		Currency:        "DZD",
		Nights:          5,
	}
}

func timingFor(sinceBooking time.Duration, untilCheckIn time.Duration) Timing {
	return Timing{
		CreatedAt: baseNow.Add(-sinceBooking),
		StartDate: baseNow.Add(untilCheckIn),
		Now:       baseNow,
	}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func TestComputeModerateOutsideGrace(t *testing.T) {
	b := Compute(samplePricing(), PolicyModerate, PartyGuest, timingFor(72*time.Hour, days(10)))

	assert.Equal(t, 100, b.SubtotalRefundPercent)
	assert.Equal(t, int64(10000), b.SubtotalRefund)
	assert.Equal(t, int64(1000), b.CleaningFeeRefund)
	assert.Equal(t, int64(0), b.ServiceFeeRefund)
	assert.Equal(t, int64(11000), b.RefundAmount)
	assert.Equal(t, int64(880), b.CancellationFee)
	assert.False(t, b.IsInGracePeriod)
	assert.Equal(t, "DZD", b.Currency)
}

func TestComputeGracePeriodRefundsServiceFee(t *testing.T) {
	b := Compute(samplePricing(), PolicyModerate, PartyGuest, timingFor(time.Hour, days(20)))

	assert.True(t, b.IsInGracePeriod)
	assert.Equal(t, int64(880), b.ServiceFeeRefund)
	assert.Equal(t, int64(11880), b.RefundAmount)
	assert.Equal(t, int64(0), b.CancellationFee)
	assert.Equal(t, 100.0, b.RefundPercentage)
}

func TestComputeStrictMiddleTier(t *testing.T) {
	b := Compute(samplePricing(), PolicyStrict, PartyGuest, timingFor(72*time.Hour, days(10)))

	assert.Equal(t, 50, b.SubtotalRefundPercent)
	assert.Equal(t, int64(5000), b.SubtotalRefund)
	assert.Equal(t, int64(6000), b.RefundAmount)
	assert.Equal(t, int64(5880), b.CancellationFee)
}

func TestComputeHostCancellationIgnoresPolicy(t *testing.T) {
	for _, policy := range Policies() {
		t.Run(string(policy), func(t *testing.T) {
			b := Compute(samplePricing(), policy, PartyHost, timingFor(30*24*time.Hour, days(2)))

			assert.Equal(t, 100, b.SubtotalRefundPercent)
			assert.Equal(t, int64(1000), b.CleaningFeeRefund)
			assert.Equal(t, int64(880), b.ServiceFeeRefund)
			assert.Equal(t, int64(0), b.CancellationFee)
		})
	}
}

func TestComputeStrictLongTermWithoutLongStayGrace(t *testing.T) {
	p := samplePricing()
	p.Nights = 30
	b := Compute(p, PolicyStrictLongTerm, PartyGuest, timingFor(72*time.Hour, days(29)))

	assert.Equal(t, 0, b.SubtotalRefundPercent)
	assert.Equal(t, int64(0), b.SubtotalRefund)
}

func TestComputeFlexibleOnCheckInDay(t *testing.T) {
	b := Compute(samplePricing(), PolicyFlexible, PartyGuest, timingFor(72*time.Hour, 0))

	assert.Equal(t, 0, b.DaysUntilCheckIn)
	assert.Equal(t, 0, b.SubtotalRefundPercent)
	assert.Equal(t, int64(0), b.CleaningFeeRefund)
	assert.Equal(t, int64(0), b.RefundAmount)
	assert.Equal(t, int64(11880), b.CancellationFee)
}

func TestComputePolicyTiers(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		nights  int
		since   time.Duration
		until   time.Duration
		percent int
	}{
		{"flexible one day out", PolicyFlexible, 5, 72 * time.Hour, days(1), 100},
		{"flexible under a day rounds up", PolicyFlexible, 5, 72 * time.Hour, 3 * time.Hour, 100},
		{"moderate boundary", PolicyModerate, 5, 72 * time.Hour, days(5), 100},
		{"moderate inside window", PolicyModerate, 5, 72 * time.Hour, days(4), 50},
		{"strict boundary full", PolicyStrict, 5, 72 * time.Hour, days(14), 100},
		{"strict boundary half", PolicyStrict, 5, 72 * time.Hour, days(7), 50},
		{"strict late", PolicyStrict, 5, 72 * time.Hour, days(6), 0},
		{"strict long term short stay", PolicyStrictLongTerm, 27, 72 * time.Hour, days(8), 50},
		{"strict long term exactly 28 nights uses long stay rule", PolicyStrictLongTerm, 28, 72 * time.Hour, days(14), 0},
		{"strict long term long stay grace", PolicyStrictLongTerm, 28, time.Hour, days(28), 100},
		{"strict long term thirty days", PolicyStrictLongTerm, 40, 72 * time.Hour, days(30), 50},
		{"super strict full", PolicySuperStrict, 5, 72 * time.Hour, days(30), 100},
		{"super strict half", PolicySuperStrict, 5, 72 * time.Hour, days(14), 50},
		{"super strict late", PolicySuperStrict, 5, 72 * time.Hour, days(13), 0},
		{"non refundable far out", PolicyNonRefundable, 5, time.Hour, days(90), 0},
		{"unknown falls back to moderate", Policy("weekly_special"), 5, 72 * time.Hour, days(3), 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := samplePricing()
			p.Nights = tc.nights
			b := Compute(p, tc.policy, PartyGuest, timingFor(tc.since, tc.until))
			assert.Equal(t, tc.percent, b.SubtotalRefundPercent)
		})
	}
}

func TestComputeUnknownPolicyReportsModerate(t *testing.T) {
	b := Compute(samplePricing(), Policy("legacy"), PartyGuest, timingFor(72*time.Hour, days(10)))
	assert.Equal(t, PolicyModerate, b.Policy)
}

func TestComputeGraceBoundaryAtFortyEightHours(t *testing.T) {
	b := Compute(samplePricing(), PolicyStrict, PartyGuest, timingFor(48*time.Hour, days(14)))
	assert.True(t, b.IsInGracePeriod)
	assert.Equal(t, int64(880), b.ServiceFeeRefund)

	b = Compute(samplePricing(), PolicyStrict, PartyGuest, timingFor(48*time.Hour+time.Second, days(14)))
	assert.False(t, b.IsInGracePeriod)
	assert.Equal(t, int64(0), b.ServiceFeeRefund)
}

func TestComputeAfterCheckIn(t *testing.T) {
	for _, policy := range []Policy{PolicyFlexible, PolicyStrict, PolicyStrictLongTerm, PolicySuperStrict, PolicyNonRefundable} {
		b := Compute(samplePricing(), policy, PartyGuest, timingFor(10*24*time.Hour, -days(2)))
		assert.Equal(t, 0, b.SubtotalRefundPercent, policy)
		assert.Equal(t, int64(0), b.CleaningFeeRefund, policy)
	}
	b := Compute(samplePricing(), PolicyModerate, PartyGuest, timingFor(10*24*time.Hour, -days(2)))
	assert.Equal(t, 50, b.SubtotalRefundPercent)
	assert.Equal(t, int64(0), b.CleaningFeeRefund)

	host := Compute(samplePricing(), PolicyStrict, PartyHost, timingFor(10*24*time.Hour, -days(2)))
	assert.Equal(t, 100, host.SubtotalRefundPercent)
	assert.Equal(t, int64(0), host.CleaningFeeRefund)
}

func TestComputeRoundsHalfUp(t *testing.T) {
	p := Pricing{Subtotal: 1001, Total: 1001, Currency: "EUR", Nights: 1}
	b := Compute(p, PolicyStrict, PartyGuest, timingFor(72*time.Hour, days(8)))
	assert.Equal(t, int64(501), b.SubtotalRefund)
	assert.Equal(t, int64(500), b.CancellationFee)
}

func TestComputeZeroTotal(t *testing.T) {
	p := Pricing{Currency: "EUR", Nights: 2}
	b := Compute(p, PolicyFlexible, PartyGuest, timingFor(time.Hour, days(20)))
	assert.Equal(t, int64(0), b.RefundAmount)
	assert.Equal(t, int64(0), b.CancellationFee)
	assert.Equal(t, 0.0, b.RefundPercentage)
}

func TestComputeProperties(t *testing.T) {
	pricings := []Pricing{
		samplePricing(),
		{Subtotal: 333, CleaningFee: 17, GuestServiceFee: 29, Taxes: 11, Total: 390, Currency: "EUR", Nights: 30},
		{Subtotal: 0, CleaningFee: 500, GuestServiceFee: 40, Total: 540, Currency: "EUR", Nights: 1},
	}
	sinces := []time.Duration{0, time.Hour, 48 * time.Hour, 49 * time.Hour, 30 * 24 * time.Hour}
	untils := []time.Duration{-days(3), -time.Hour, 0, time.Hour, days(5), days(7), days(14), days(28), days(30), days(60)}
	parties := []Party{PartyGuest, PartyHost}

	for _, p := range pricings {
		for _, policy := range append(Policies(), Policy("unknown")) {
			for _, party := range parties {
				for _, since := range sinces {
					for _, until := range untils {
						timing := timingFor(since, until)
						b := Compute(p, policy, party, timing)

						require.NoError(t, b.Verify(p))
						assert.Equal(t, p.Total, b.RefundAmount+b.CancellationFee)
						assert.GreaterOrEqual(t, b.SubtotalRefundPercent, 0)
						assert.LessOrEqual(t, b.SubtotalRefundPercent, 100)
						assert.Equal(t, b, Compute(p, policy, party, timing))

						if party == PartyHost {
							assert.Equal(t, 100, b.SubtotalRefundPercent)
							assert.Equal(t, p.GuestServiceFee, b.ServiceFeeRefund)
						}
						if party == PartyGuest && policy == PolicyNonRefundable {
							assert.Equal(t, 0, b.SubtotalRefundPercent)
						}
						if b.IsInGracePeriod {
							assert.Equal(t, p.GuestServiceFee, b.ServiceFeeRefund)
						} else if party == PartyGuest {
							assert.Equal(t, int64(0), b.ServiceFeeRefund)
						}
					}
				}
			}
		}
	}
}

func TestVerifyRejectsBrokenSnapshot(t *testing.T) {
	p := samplePricing()
	p.Total = 100
	b := Compute(p, PolicyFlexible, PartyHost, timingFor(time.Hour, days(20)))
	assert.ErrorIs(t, b.Verify(p), ErrDataIntegrity)
}
