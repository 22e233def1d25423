package refund

import "time"

const (
	day = 24 * time.Hour

	graceWindow             = 48 * time.Hour
	standardGraceLeadDays   = 14
	longStayGraceLeadDays   = 28
	longStayNightsThreshold = 28
)

// Timing carries every instant the calculator needs. Now is always injected so
// the result does not depend on when the function happens to run.
type Timing struct {
	CreatedAt time.Time
	StartDate time.Time
	Now       time.Time
}

// DaysUntilCheckIn is ceil((StartDate - Now) / 24h). It is negative once the
// check-in day has passed.
func (t Timing) DaysUntilCheckIn() int {
	d := t.StartDate.Sub(t.Now)
	days := d / day
	if d > 0 && d%day != 0 {
		days++
	}
	return int(days)
}

// HoursUntilCheckIn follows the day granularity used by the policy tiers.
func (t Timing) HoursUntilCheckIn() int {
	return t.DaysUntilCheckIn() * 24
}

func (t Timing) SinceBooking() time.Duration {
	return t.Now.Sub(t.CreatedAt)
}

// StandardGrace is active within 48h of booking when check-in is at least 14 days out.
func (t Timing) StandardGrace() bool {
	return t.SinceBooking() <= graceWindow && t.DaysUntilCheckIn() >= standardGraceLeadDays
}

// LongStayGrace is the stricter window used for strict_long_term stays of 28+ nights.
func (t Timing) LongStayGrace() bool {
	return t.SinceBooking() <= graceWindow && t.DaysUntilCheckIn() >= longStayGraceLeadDays
}
