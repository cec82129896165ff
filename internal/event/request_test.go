package event

import (
	"testing"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)

	f := weeklyRun().EventFields
	s, err := f.parseSchedule(berlin)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, berlin), s.Start)
	require.NotNil(t, s.End)
	assert.Equal(t, 90*time.Minute, s.End.Sub(s.Start))
	require.NotNil(t, s.RecurEnd)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, berlin), *s.RecurEnd)
	assert.Equal(t, recurrence.PatternWeekly, s.Pattern)

	r := s.rule()
	assert.Equal(t, 90*time.Minute, r.Duration)
	assert.Equal(t, []int{1, 3, 5}, r.Days)
}

func TestParseSchedule_EdgeCases(t *testing.T) {
	t.Run("date only starts at midnight", func(t *testing.T) {
		f := EventFields{Title: "x", StartDate: "2024-05-04"}
		s, err := f.parseSchedule(time.UTC)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), s.Start)
		assert.Nil(t, s.End)
		assert.False(t, s.Recurring)
	})

	t.Run("end equal to start means no end", func(t *testing.T) {
		f := EventFields{Title: "x", StartDate: "2024-05-04", StartTime: "10:00", EndTime: "10:00"}
		s, err := f.parseSchedule(time.UTC)
		require.NoError(t, err)
		assert.Nil(t, s.End)
	})

	t.Run("pattern is case-insensitive", func(t *testing.T) {
		f := EventFields{Title: "x", StartDate: "2024-05-04", IsRecurring: true, RecurrencePattern: " Monthly ", RecurrenceDays: []int{4}}
		s, err := f.parseSchedule(time.UTC)
		require.NoError(t, err)
		assert.Equal(t, recurrence.PatternMonthly, s.Pattern)
	})

	for _, bad := range []EventFields{
		{StartDate: "2024-13-01"},
		{StartDate: "2024-05-04", StartTime: "25:00"},
		{StartDate: "2024-05-04", EndTime: "noon"},
		{StartDate: "2024-05-04", IsRecurring: true, RecurrenceEndDate: "soon"},
	} {
		_, err := bad.parseSchedule(time.UTC)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", bad)
	}
}

func TestApplyClearsRecurrenceForOneOffs(t *testing.T) {
	e := &Event{IsRecurring: true, RecurrencePattern: "weekly", IsActive: true}
	e.SetDays([]int{1})

	f := EventFields{Title: "  Picnic ", StartDate: "2024-05-04"}
	s, err := f.parseSchedule(time.UTC)
	require.NoError(t, err)
	f.apply(e, s)

	assert.Equal(t, "Picnic", e.Title)
	assert.False(t, e.IsRecurring)
	assert.Empty(t, e.RecurrencePattern)
	assert.Nil(t, e.Days())
	assert.Nil(t, e.RecurrenceEndDate)
	assert.True(t, e.IsActive)
}

func TestPreviewKey(t *testing.T) {
	tmpl := &Event{
		ID:                3,
		Title:             "Run",
		IsRecurring:       true,
		RecurrencePattern: "weekly",
		StartTime:         time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	tmpl.SetDays([]int{1, 3})
	from := time.Date(2024, 1, 5, 14, 0, 0, 0, time.UTC)

	key := previewKey(tmpl.Template(time.UTC), from)
	assert.Regexp(t, `^preview:3:[0-9a-f]{16}:2024010514$`, key)
	assert.Equal(t, key, previewKey(tmpl.Template(time.UTC), from))

	tmpl.SetDays([]int{1, 4})
	assert.NotEqual(t, key, previewKey(tmpl.Template(time.UTC), from))
	assert.NotEqual(t, key, previewKey(tmpl.Template(time.UTC), from.Add(time.Hour)))
}
