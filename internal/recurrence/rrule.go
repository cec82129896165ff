package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ROption converts the rule into an RFC 5545 option set. The exclusive end date
// becomes an inclusive UNTIL one second earlier. ClampToMonthEnd has no RFC 5545
// equivalent; the option always describes the skipping behaviour.
func (r Rule) ROption() (*rrule.ROption, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	opt := &rrule.ROption{
		Dtstart:  r.Start,
		Interval: 1,
	}
	days := r.normalizedDays()
	switch r.Pattern {
	case PatternWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = make([]rrule.Weekday, 0, len(days))
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case PatternMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = days
	}
	if r.End != nil {
		opt.Until = r.End.Add(-time.Second)
	}
	return opt, nil
}

// RRule renders the rule as an RRULE value, e.g. "FREQ=WEEKLY;BYDAY=MO,WE,FR".
func (r Rule) RRule() (string, error) {
	opt, err := r.ROption()
	if err != nil {
		return "", err
	}
	if _, err := rrule.NewRRule(*opt); err != nil {
		return "", fmt.Errorf("failed to build RRULE: %w", err)
	}
	return opt.RRuleString(), nil
}
