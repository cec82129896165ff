package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ErrInvalidInput marks request fields that cannot be parsed.
var ErrInvalidInput = errors.New("invalid input")

// ============================
// 🟡 Request bodies

// EventFields are the editable fields shared by create and update.
type EventFields struct {
	Title       string `json:"title" binding:"required" example:"Morning run"`
	Description string `json:"description" example:"5k around the lake"`
	EventType   string `json:"event_type" example:"meetup"`
	Location    string `json:"location" example:"North gate"`
	LocationID  *uint  `json:"location_id,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	StartDate string `json:"start_date" binding:"required" example:"2024-01-01"` // YYYY-MM-DD
	StartTime string `json:"start_time,omitempty" example:"10:00"`               // HH:MM, 24h
	EndTime   string `json:"end_time,omitempty" example:"11:30"`                 // HH:MM, 24h

	IsRecurring       bool   `json:"is_recurring"`
	RecurrencePattern string `json:"recurrence_pattern,omitempty" example:"weekly"`
	RecurrenceDays    []int  `json:"recurrence_days,omitempty"`
	RecurrenceEndDate string `json:"recurrence_end_date,omitempty" example:"2024-03-31"` // YYYY-MM-DD, inclusive

	IsActive *bool `json:"is_active,omitempty"`
}

type CreateEventRequest struct {
	GroupID uint `json:"group_id" example:"1"`
	EventFields
}

type UpdateEventRequest struct {
	EventFields
}

// schedule holds the parsed time fields of a request.
type schedule struct {
	Start     time.Time
	End       *time.Time
	RecurEnd  *time.Time
	Pattern   recurrence.Pattern
	Days      []int
	Recurring bool
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// parseSchedule interprets dates and times in loc. The end time falls on the
// start date; the recurrence end date includes that whole day.
func (f *EventFields) parseSchedule(loc *time.Location) (schedule, error) {
	var s schedule

	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(f.StartDate), loc)
	if err != nil {
		return s, invalid("start_date must use YYYY-MM-DD")
	}
	s.Start = day
	if f.StartTime != "" {
		t, err := time.Parse(timeLayout, strings.TrimSpace(f.StartTime))
		if err != nil {
			return s, invalid("start_time must use HH:MM in 24-hour format")
		}
		s.Start = time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	}

	if f.EndTime != "" {
		t, err := time.Parse(timeLayout, strings.TrimSpace(f.EndTime))
		if err != nil {
			return s, invalid("end_time must use HH:MM in 24-hour format")
		}
		end := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		if end.Before(s.Start) {
			return s, invalid("end time must not be before the start time")
		}
		if end.After(s.Start) {
			s.End = &end
		}
	}

	s.Recurring = f.IsRecurring
	if !s.Recurring {
		return s, nil
	}

	s.Pattern = recurrence.Pattern(strings.ToLower(strings.TrimSpace(f.RecurrencePattern)))
	s.Days = f.RecurrenceDays
	if f.RecurrenceEndDate != "" {
		last, err := time.ParseInLocation(dateLayout, strings.TrimSpace(f.RecurrenceEndDate), loc)
		if err != nil {
			return s, invalid("recurrence_end_date must use YYYY-MM-DD")
		}
		end := last.AddDate(0, 0, 1).Add(-time.Second)
		s.RecurEnd = &end
	}
	return s, nil
}

// rule builds the recurrence rule the schedule describes.
func (s schedule) rule() recurrence.Rule {
	r := recurrence.Rule{
		Pattern: s.Pattern,
		Days:    s.Days,
		Start:   s.Start,
		End:     s.RecurEnd,
	}
	if s.End != nil {
		r.Duration = s.End.Sub(s.Start)
	}
	return r
}

// apply copies the request onto e. Recurrence columns are cleared for
// non-recurring events.
func (f *EventFields) apply(e *Event, s schedule) {
	e.Title = strings.TrimSpace(f.Title)
	e.Description = f.Description
	e.EventType = strings.TrimSpace(f.EventType)
	e.Location = strings.TrimSpace(f.Location)
	e.LocationID = f.LocationID
	e.ImageURL = strings.TrimSpace(f.ImageURL)
	e.StartTime = s.Start
	e.EndTime = s.End
	if f.IsActive != nil {
		e.IsActive = *f.IsActive
	}

	e.IsRecurring = s.Recurring
	if s.Recurring {
		e.RecurrencePattern = string(s.Pattern)
		e.SetDays(s.Days)
		e.RecurrenceEndDate = s.RecurEnd
	} else {
		e.RecurrencePattern = ""
		e.SetDays(nil)
		e.RecurrenceEndDate = nil
	}
}

// ============================
// 📤 Responses

type CreateEventResponse struct {
	Event            *Event `json:"event"`
	InstancesCreated int    `json:"instances_created"`
	InstancesFailed  int    `json:"instances_failed,omitempty"`
}

type UpdateEventResponse struct {
	Event            *Event `json:"event"`
	Regenerated      bool   `json:"regenerated"`
	InstancesCreated int    `json:"instances_created"`
	InstancesUpdated int64  `json:"instances_updated"`
	InstancesRemoved int64  `json:"instances_removed,omitempty"`
}

type PreviewResponse struct {
	TemplateID  uint                           `json:"template_id,omitempty"`
	From        time.Time                      `json:"from"`
	To          time.Time                      `json:"to"`
	Estimated   int                            `json:"estimated_instances"`
	Occurrences []recurrence.OccurrencePreview `json:"occurrences"`
}
