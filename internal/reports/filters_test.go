package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDateRange(t *testing.T) {
	now := time.Date(2024, 2, 14, 15, 30, 0, 0, time.UTC)
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

	cases := []struct {
		name       string
		preset     string
		start, end string
		past       bool
		from, to   time.Time
	}{
		{"daily", DateRangeDaily, "", "", false, day(2, 14), day(2, 15)},
		{"weekly ahead", DateRangeWeekly, "", "", false, day(2, 14), day(2, 21)},
		{"weekly back", DateRangeWeekly, "", "", true, day(2, 8), day(2, 15)},
		{"monthly", DateRangeMonthly, "", "", false, day(2, 1), day(3, 1)},
		{"default ahead", "", "", "", false, day(2, 14), day(3, 15)},
		{"custom includes end day", DateRangeCustom, "2024-03-01", "2024-03-03", false, day(3, 1), day(3, 4)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to, err := GetDateRange(now, tc.preset, tc.start, tc.end, tc.past)
			require.NoError(t, err)
			assert.Equal(t, tc.from, from)
			assert.Equal(t, tc.to, to)
		})
	}
}

func TestGetDateRange_InvalidCustom(t *testing.T) {
	now := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	for _, r := range [][2]string{
		{"", "2024-03-01"},
		{"2024-03-05", "2024-03-01"},
		{"03/01/2024", "2024-03-05"},
		{"2024-01-01", "2025-06-01"},
	} {
		_, _, err := GetDateRange(now, DateRangeCustom, r[0], r[1], false)
		assert.ErrorIs(t, err, ErrInvalidRange, "%v", r)
	}
}
