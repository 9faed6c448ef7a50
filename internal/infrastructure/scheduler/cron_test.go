package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_Invalid(t *testing.T) {
	cases := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-2 * * * *",
		"a * * * *",
		", * * * *",
	}
	for _, expr := range cases {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
	}
}

func TestCronNext(t *testing.T) {
	// Wednesday 2026-03-04 07:15 UTC.
	base := time.Date(2026, 3, 4, 7, 15, 0, 0, time.UTC)

	cases := []struct {
		expr string
		want time.Time
	}{
		{"*/30 * * * *", time.Date(2026, 3, 4, 7, 30, 0, 0, time.UTC)},
		{"0 * * * *", time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"0 */6 * * *", time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)},
		{"0 8 * * *", time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)},
		{"0 2 * * *", time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC)},
		{"0 10 * * 1", time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)},
		{"15,45 7 * * *", time.Date(2026, 3, 4, 7, 45, 0, 0, time.UTC)},
		{"0 9-17 * * *", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		ce, err := ParseCronExpression(tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, ce.Next(base), tc.expr)
	}
}

func TestCronNext_ExactMatchAdvances(t *testing.T) {
	// Next never returns its input minute, so a job firing at 08:00
	// schedules the following 08:00.
	ce := MustParseCronExpression("0 8 * * *")
	at := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC), ce.Next(at))
}

func TestCronWindowKey(t *testing.T) {
	ce := MustParseCronExpression("0 * * * *")

	a := ce.WindowKey(time.Date(2026, 3, 4, 8, 0, 3, 0, time.UTC))
	b := ce.WindowKey(time.Date(2026, 3, 4, 8, 0, 59, 0, time.UTC))
	c := ce.WindowKey(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, a, b, "same minute shares a window")
	assert.NotEqual(t, a, c)
	assert.Equal(t, "2026-03-04T08:00", a)
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(6 * time.Hour)
	base := time.Date(2026, 3, 4, 7, 15, 0, 0, time.UTC)

	assert.Equal(t, base.Add(6*time.Hour), s.Next(base))
	assert.Equal(t, "@every 6h0m0s", s.String())

	// Windows align to the epoch, so 07:15 and 11:59 share the 06:00 slot.
	assert.Equal(t, s.WindowKey(base), s.WindowKey(time.Date(2026, 3, 4, 11, 59, 0, 0, time.UTC)))
	assert.NotEqual(t, s.WindowKey(base), s.WindowKey(base.Add(6*time.Hour)))
}

func TestCronPresets(t *testing.T) {
	for _, expr := range []string{
		Every30Minutes, EveryHour, Every6Hours, EveryDay2AM, EveryDay8AM, EveryMonday10,
	} {
		_, err := ParseCronExpression(expr)
		assert.NoError(t, err, expr)
	}
}
