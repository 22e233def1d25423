package refund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysUntilCheckInCeil(t *testing.T) {
	cases := []struct {
		until time.Duration
		want  int
	}{
		{0, 0},
		{time.Nanosecond, 1},
		{24 * time.Hour, 1},
		{24*time.Hour + time.Minute, 2},
		{-time.Hour, 0},
		{-24 * time.Hour, -1},
		{-25 * time.Hour, -1},
		{-48 * time.Hour, -2},
	}
	for _, tc := range cases {
		timing := Timing{StartDate: baseNow.Add(tc.until), Now: baseNow}
		assert.Equal(t, tc.want, timing.DaysUntilCheckIn(), tc.until.String())
	}
}

func TestGraceWindows(t *testing.T) {
	timing := timingFor(47*time.Hour, days(20))
	assert.True(t, timing.StandardGrace())
	assert.False(t, timing.LongStayGrace())

	timing = timingFor(2*time.Hour, days(28))
	assert.True(t, timing.StandardGrace())
	assert.True(t, timing.LongStayGrace())

	timing = timingFor(2*time.Hour, days(13))
	assert.False(t, timing.StandardGrace())
}

func TestHoursUntilCheckIn(t *testing.T) {
	assert.Equal(t, 48, timingFor(0, days(2)).HoursUntilCheckIn())
}
