package reports

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid date range")

// GetDateRange resolves a preset or custom range to [start, end). Schedule
// ranges run forward from the start of today; audit ranges (past=true) end
// at the close of today. Custom dates are "2006-01-02" and the end day is
// included.
func GetDateRange(now time.Time, dateRange, startStr, endStr string, past bool) (time.Time, time.Time, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	span := func(days int) (time.Time, time.Time, error) {
		if past {
			return tomorrow.AddDate(0, 0, -days), tomorrow, nil
		}
		return today, today.AddDate(0, 0, days), nil
	}

	switch dateRange {
	case DateRangeDaily:
		return today, tomorrow, nil
	case DateRangeWeekly:
		return span(7)
	case DateRangeMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case DateRangeCustom:
		if startStr == "" || endStr == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date and end_date required for custom range", ErrInvalidRange)
		}
		start, err := time.ParseInLocation("2006-01-02", startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		end, err := time.ParseInLocation("2006-01-02", endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		end = end.AddDate(0, 0, 1)
		if !start.Before(end) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must not be after end_date", ErrInvalidRange)
		}
		if end.Sub(start) > 366*24*time.Hour {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: custom range is limited to one year", ErrInvalidRange)
		}
		return start, end, nil
	default:
		return span(30)
	}
}
