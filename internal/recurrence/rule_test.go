package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Validate(t *testing.T) {
	start := date(2024, 1, 1)

	tests := []struct {
		name  string
		rule  Rule
		field string
	}{
		{"valid weekly", Rule{Pattern: PatternWeekly, Days: []int{0, 6}, Start: start}, ""},
		{"valid monthly", Rule{Pattern: PatternMonthly, Days: []int{1, 31}, Start: start}, ""},
		{"unknown pattern", Rule{Pattern: "daily", Days: []int{1}, Start: start}, "pattern"},
		{"empty days", Rule{Pattern: PatternWeekly, Start: start}, "days"},
		{"weekday too large", Rule{Pattern: PatternWeekly, Days: []int{7}, Start: start}, "days"},
		{"weekday negative", Rule{Pattern: PatternWeekly, Days: []int{-1}, Start: start}, "days"},
		{"month day zero", Rule{Pattern: PatternMonthly, Days: []int{0}, Start: start}, "days"},
		{"month day too large", Rule{Pattern: PatternMonthly, Days: []int{32}, Start: start}, "days"},
		{"missing start", Rule{Pattern: PatternWeekly, Days: []int{1}}, "start_date"},
		{"end before start", Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start, End: ptr(date(2023, 12, 1))}, "end_date"},
		{"end equal start", Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start, End: ptr(start)}, "end_date"},
		{"negative duration", Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start, Duration: -time.Minute}, "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestOptions_EstimateOccurrences(t *testing.T) {
	opts := DefaultOptions
	start := date(2024, 1, 1)

	// Three months from Jan 1 is 91 days: ceil(91/7) = 13 weeks.
	assert.Equal(t, 39, opts.EstimateOccurrences(Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, Start: start}))
	// ceil(91/30) = 4 periods.
	assert.Equal(t, 8, opts.EstimateOccurrences(Rule{Pattern: PatternMonthly, Days: []int{1, 15}, Start: start}))
	// Explicit end date: 14 days is exactly two weeks.
	assert.Equal(t, 2, opts.EstimateOccurrences(Rule{Pattern: PatternWeekly, Days: []int{2}, Start: start, End: ptr(date(2024, 1, 15))}))
	// Duplicates do not count twice.
	assert.Equal(t, 13, opts.EstimateOccurrences(Rule{Pattern: PatternWeekly, Days: []int{2, 2}, Start: start}))
}

func TestOptions_CheckLimit(t *testing.T) {
	opts := DefaultOptions
	start := date(2024, 1, 1)

	err := opts.CheckLimit(Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, Start: start})
	assert.NoError(t, err)

	daily := Rule{Pattern: PatternWeekly, Days: []int{0, 1, 2, 3, 4, 5, 6}, Start: start, End: ptr(start.AddDate(0, 0, 120))}
	err = opts.CheckLimit(daily)
	var le *LimitError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 126, le.Estimated)
	assert.Equal(t, 100, le.Max)
	assert.Equal(t, "recurring pattern would create approximately 126 instances, exceeding the maximum of 100", err.Error())
	assert.True(t, IsValidation(err))

	// Malformed rules are reported before estimating.
	err = opts.CheckLimit(Rule{Pattern: PatternMonthly, Start: start})
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	// A raised cap lets the same rule through.
	assert.NoError(t, Options{MaxOccurrences: 200}.CheckLimit(daily))
}

func TestOptions_Windows(t *testing.T) {
	opts := DefaultOptions
	start := date(2024, 1, 10)
	now := date(2024, 2, 1)

	from, to := opts.DefaultWindow(Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start})
	assert.Equal(t, start, from)
	assert.Equal(t, date(2024, 4, 10), to)

	from, to = opts.DefaultWindow(Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start, End: ptr(date(2024, 2, 10))})
	assert.Equal(t, start, from)
	assert.Equal(t, date(2024, 2, 10), to)

	from, to = opts.PreviewRange(Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start}, now)
	assert.Equal(t, now, from)
	assert.Equal(t, date(2024, 3, 2), to)

	// The rule's end date wins when it comes first.
	_, to = opts.PreviewRange(Rule{Pattern: PatternWeekly, Days: []int{1}, Start: start, End: ptr(date(2024, 2, 10))}, now)
	assert.Equal(t, date(2024, 2, 10), to)
}

func TestRuleChanged(t *testing.T) {
	base := Rule{Pattern: PatternWeekly, Days: []int{1, 3}, Start: date(2024, 1, 1), Duration: time.Hour}

	assert.False(t, RuleChanged(base, base))

	reordered := base
	reordered.Days = []int{3, 1}
	assert.False(t, RuleChanged(base, reordered))

	days := base
	days.Days = []int{1, 4}
	assert.True(t, RuleChanged(base, days))

	pattern := base
	pattern.Pattern = PatternMonthly
	assert.True(t, RuleChanged(base, pattern))

	end := base
	end.End = ptr(date(2024, 3, 1))
	assert.True(t, RuleChanged(base, end))

	sameEnd := end
	sameEnd.End = ptr(date(2024, 3, 1))
	assert.False(t, RuleChanged(end, sameEnd))

	duration := base
	duration.Duration = 90 * time.Minute
	assert.True(t, RuleChanged(base, duration))
}

func TestRule_RRule(t *testing.T) {
	weekly := Rule{Pattern: PatternWeekly, Days: []int{5, 1, 3}, Start: date(2024, 1, 1)}
	s, err := weekly.RRule()
	require.NoError(t, err)
	assert.Contains(t, s, "FREQ=WEEKLY")
	assert.Contains(t, s, "BYDAY=MO,WE,FR")

	monthly := Rule{Pattern: PatternMonthly, Days: []int{15, 1}, Start: date(2024, 1, 1), End: ptr(date(2024, 6, 1))}
	s, err = monthly.RRule()
	require.NoError(t, err)
	assert.Contains(t, s, "FREQ=MONTHLY")
	assert.Contains(t, s, "BYMONTHDAY=1,15")
	assert.Contains(t, s, "UNTIL=20240531T235959Z")

	_, err = Rule{Pattern: PatternWeekly, Start: date(2024, 1, 1)}.RRule()
	assert.Error(t, err)
}
