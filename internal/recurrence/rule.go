package recurrence

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Validate checks the rule invariants. A rule that fails here must never reach
// the generator.
func (r Rule) Validate() error {
	if !r.Pattern.Valid() {
		return &ValidationError{Field: "pattern", Message: fmt.Sprintf("unsupported pattern %q, use weekly or monthly", r.Pattern)}
	}
	if len(r.Days) == 0 {
		return &ValidationError{Field: "days", Message: "at least one day must be selected"}
	}
	lo, hi := 0, 6
	if r.Pattern == PatternMonthly {
		lo, hi = 1, 31
	}
	for _, d := range r.Days {
		if d < lo || d > hi {
			return &ValidationError{Field: "days", Message: fmt.Sprintf("day %d is out of range %d-%d for a %s pattern", d, lo, hi, r.Pattern)}
		}
	}
	if r.Start.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start date is required"}
	}
	if r.End != nil && !r.End.After(r.Start) {
		return &ValidationError{Field: "end_date", Message: "end date must be after the start date"}
	}
	if r.Duration < 0 {
		return &ValidationError{Field: "end_time", Message: "end time must not be before the start time"}
	}
	return nil
}

// normalizedDays returns the selected days sorted ascending without duplicates.
func (r Rule) normalizedDays() []int {
	days := slices.Clone(r.Days)
	slices.Sort(days)
	return slices.Compact(days)
}

// EndAt returns the end time of an occurrence starting at start, or nil when
// the template has no end time.
func (r Rule) EndAt(start time.Time) *time.Time {
	if r.Duration <= 0 {
		return nil
	}
	end := start.Add(r.Duration)
	return &end
}

// RuleChanged reports whether moving from old to updated alters future occurrences.
func RuleChanged(old, updated Rule) bool {
	if old.Pattern != updated.Pattern || !old.Start.Equal(updated.Start) || old.Duration != updated.Duration {
		return true
	}
	if !slices.Equal(old.normalizedDays(), updated.normalizedDays()) {
		return true
	}
	switch {
	case old.End == nil && updated.End == nil:
		return false
	case old.End == nil || updated.End == nil:
		return true
	default:
		return !old.End.Equal(*updated.End)
	}
}

// DefaultWindow is the generation window used when materializing a template
// eagerly: from its start to its end date, or to the default horizon.
func (o Options) DefaultWindow(r Rule) (time.Time, time.Time) {
	if r.End != nil {
		return r.Start, *r.End
	}
	return r.Start, o.horizonFrom(r.Start)
}

// PreviewRange is the fixed look-ahead from now, cut short by the rule's end
// date when that comes first.
func (o Options) PreviewRange(r Rule, now time.Time) (time.Time, time.Time) {
	o = o.normalized()
	end := now.Add(o.PreviewWindow)
	if r.End != nil && r.End.Before(end) {
		end = *r.End
	}
	return now, end
}

// EstimateOccurrences approximates the number of instances a rule creates over
// its default window as ceil(daySpan/period) x |days|. It over- or under-counts
// near month and week boundaries and is only a pre-filter.
func (o Options) EstimateOccurrences(r Rule) int {
	from, to := o.DefaultWindow(r)
	daySpan := int(math.Ceil(to.Sub(from).Hours() / 24))
	if daySpan <= 0 {
		return 0
	}
	period := r.Pattern.periodDays()
	periods := (daySpan + period - 1) / period
	return periods * len(r.normalizedDays())
}

// CheckLimit validates the rule and rejects it when the estimate exceeds the cap.
func (o Options) CheckLimit(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	o = o.normalized()
	if n := o.EstimateOccurrences(r); n > o.MaxOccurrences {
		return &LimitError{Estimated: n, Max: o.MaxOccurrences}
	}
	return nil
}
