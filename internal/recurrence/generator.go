package recurrence

import (
	"slices"
	"time"
)

// Generator expands rules into occurrence dates. It holds no state between
// calls, so the same inputs always yield the same sequence.
type Generator struct {
	opts Options
}

// NewGenerator creates a generator; zero option fields fall back to DefaultOptions.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts.normalized()}
}

// Options returns the effective options of the generator.
func (g *Generator) Options() Options {
	return g.opts
}

// Generate returns the occurrences of r inside [windowStart, windowEnd), in
// ascending order and without duplicates. Results never precede the rule start
// and never reach the rule end date. At most MaxOccurrences dates are returned.
// A malformed rule is rejected with a *ValidationError.
func (g *Generator) Generate(r Rule, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	lower := windowStart
	if r.Start.After(lower) {
		lower = r.Start
	}
	upper := windowEnd
	if r.End != nil && r.End.Before(upper) {
		upper = *r.End
	}
	if !lower.Before(upper) {
		return nil, nil
	}

	if r.Pattern == PatternMonthly {
		return g.monthly(r, lower, upper), nil
	}
	return g.weekly(r, lower, upper), nil
}

func (g *Generator) weekly(r Rule, lower, upper time.Time) []time.Time {
	days := r.normalizedDays()
	var out []time.Time

	day := midnight(lower.In(r.Start.Location()))
	for len(out) < g.opts.MaxOccurrences {
		next := nextWeeklyDate(day, days)
		occ := atTimeOf(next, r.Start)
		if !occ.Before(upper) {
			break
		}
		if !occ.Before(lower) {
			out = append(out, occ)
		}
		day = next.AddDate(0, 0, 1)
	}
	return out
}

// nextWeeklyDate returns the first date on or after from whose weekday is
// selected. With no match inside a week it falls back to the first listed day
// of the following week.
func nextWeeklyDate(from time.Time, days []int) time.Time {
	for i := 0; i < 7; i++ {
		d := from.AddDate(0, 0, i)
		if slices.Contains(days, int(d.Weekday())) {
			return d
		}
	}
	if len(days) == 0 {
		return from.AddDate(0, 0, 7)
	}
	offset := ((days[0]-int(from.Weekday()))%7 + 7) % 7
	return from.AddDate(0, 0, offset+7)
}

func (g *Generator) monthly(r Rule, lower, upper time.Time) []time.Time {
	loc := r.Start.Location()
	days := r.normalizedDays()
	var out []time.Time

	l := lower.In(loc)
	for month := time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc); month.Before(upper); month = month.AddDate(0, 1, 0) {
		for _, d := range g.daysInMonth(month, days) {
			occ := atTimeOf(time.Date(month.Year(), month.Month(), d, 0, 0, 0, 0, loc), r.Start)
			if occ.Before(lower) {
				continue
			}
			if !occ.Before(upper) {
				return out
			}
			out = append(out, occ)
			if len(out) >= g.opts.MaxOccurrences {
				return out
			}
		}
	}
	return out
}

// daysInMonth resolves the selected days against the length of month using the
// configured policy. The result is ascending and duplicate free.
func (g *Generator) daysInMonth(month time.Time, days []int) []int {
	last := lastDayOfMonth(month)
	resolved := make([]int, 0, len(days))
	for _, d := range days {
		switch {
		case d <= last:
			resolved = append(resolved, d)
		case g.opts.MonthDayPolicy == ClampToMonthEnd:
			resolved = append(resolved, last)
		}
	}
	return slices.Compact(resolved)
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// atTimeOf places date at the time-of-day of ref, in ref's location.
func atTimeOf(date, ref time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}
