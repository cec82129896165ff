package recurrence

import (
	"time"
)

// Pattern is the recurrence frequency of a template event.
type Pattern string

const (
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// Valid reports whether p is a supported pattern.
func (p Pattern) Valid() bool {
	return p == PatternWeekly || p == PatternMonthly
}

// periodDays is the approximate period length used by the instance-count estimate.
func (p Pattern) periodDays() int {
	if p == PatternMonthly {
		return 30
	}
	return 7
}

// Rule describes when a template event recurs.
//
// Days holds weekday indices (0 = Sunday ... 6 = Saturday) for weekly rules and
// day-of-month values (1-31) for monthly rules. Start carries both the date and
// the time-of-day of the first occurrence. End, when set, is exclusive.
type Rule struct {
	Pattern  Pattern
	Days     []int
	Start    time.Time
	End      *time.Time
	Duration time.Duration
}

// Display holds the attributes copied verbatim from a template onto its instances.
type Display struct {
	GroupID     uint
	LocationID  *uint
	Title       string
	Description string
	EventType   string
	Location    string
	ImageURL    string
}

// Template is a recurring event definition. It never occurs itself.
type Template struct {
	ID      uint
	Rule    Rule
	Display Display
}

// Instance is one concrete, attendable occurrence of a template.
type Instance struct {
	ID       uint
	ParentID uint
	Start    time.Time
	End      *time.Time
	Display  Display
}

// OccurrencePreview is the read-side view of an upcoming occurrence.
// ID is zero when the occurrence has not been materialized yet.
type OccurrencePreview struct {
	ID            uint       `json:"id"`
	ParentEventID uint       `json:"parent_event_id"`
	Title         string     `json:"title"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
}

// MonthDayPolicy decides what happens to a monthly day that a month does not have.
type MonthDayPolicy string

const (
	// SkipInvalidDays drops the occurrence for months that lack the day (no Feb 31).
	SkipInvalidDays MonthDayPolicy = "skip"
	// ClampToMonthEnd moves the occurrence to the month's last day (Feb 31 -> Feb 29).
	ClampToMonthEnd MonthDayPolicy = "clamp"
)

// Options tunes generation and materialization.
type Options struct {
	MaxOccurrences int            // cap on instances per rule and per generated window
	MonthDayPolicy MonthDayPolicy // handling of days past a month's length
	HorizonMonths  int            // look-ahead in calendar months when a rule has no end date
	PreviewWindow  time.Duration  // fixed look-ahead for previews and rolling top-up
	TopUpBuffer    time.Duration  // top-up triggers when the latest instance is closer than this
}

// DefaultOptions mirrors the behaviour organizers see in the product.
var DefaultOptions = Options{
	MaxOccurrences: 100,
	MonthDayPolicy: SkipInvalidDays,
	HorizonMonths:  3,
	PreviewWindow:  30 * 24 * time.Hour,
	TopUpBuffer:    30 * 24 * time.Hour,
}

func (o Options) normalized() Options {
	if o.MaxOccurrences <= 0 {
		o.MaxOccurrences = DefaultOptions.MaxOccurrences
	}
	if o.MonthDayPolicy != ClampToMonthEnd {
		o.MonthDayPolicy = SkipInvalidDays
	}
	if o.PreviewWindow <= 0 {
		o.PreviewWindow = DefaultOptions.PreviewWindow
	}
	if o.HorizonMonths <= 0 {
		o.HorizonMonths = DefaultOptions.HorizonMonths
	}
	if o.TopUpBuffer <= 0 {
		o.TopUpBuffer = DefaultOptions.TopUpBuffer
	}
	return o
}

// horizonFrom returns the default horizon measured from t.
func (o Options) horizonFrom(t time.Time) time.Time {
	months := o.HorizonMonths
	if months <= 0 {
		months = DefaultOptions.HorizonMonths
	}
	return t.AddDate(0, months, 0)
}
