package event

import (
	"encoding/json"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
	"gorm.io/datatypes"
)

// ============================
// 🔷 GORM Event Model
//
// One table holds three kinds of rows: one-off events, recurring templates
// (IsRecurring with no parent) and instances (ParentEventID set). A template
// never occurs itself; only its instances are attendable.
type Event struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	GroupID     uint   `gorm:"not null;index" json:"group_id"`
	LocationID  *uint  `gorm:"index" json:"location_id,omitempty"`
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	EventType   string `gorm:"type:varchar(100)" json:"event_type"`
	Location    string `gorm:"type:text" json:"location"`
	ImageURL    string `gorm:"type:text" json:"image_url,omitempty"`

	StartTime time.Time  `gorm:"not null;index;uniqueIndex:idx_events_parent_start,priority:2" json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	IsRecurring       bool           `gorm:"default:false;index" json:"is_recurring"`
	RecurrencePattern string         `gorm:"type:varchar(20)" json:"recurrence_pattern,omitempty"`
	RecurrenceDays    datatypes.JSON `json:"recurrence_days,omitempty" swaggertype:"array,integer"`
	RecurrenceEndDate *time.Time     `json:"recurrence_end_date,omitempty"`

	ParentEventID *uint  `gorm:"index;uniqueIndex:idx_events_parent_start,priority:1" json:"parent_event_id,omitempty"`
	Parent        *Event `gorm:"foreignKey:ParentEventID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedBy uint      `gorm:"not null" json:"created_by"` // 0 for system-materialized instances
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	RSVPCount int `gorm:"-" json:"rsvp_count"`
}

func (Event) TableName() string {
	return "events"
}

// IsTemplate reports whether e defines a recurrence.
func (e *Event) IsTemplate() bool {
	return e.IsRecurring && e.ParentEventID == nil
}

// IsInstance reports whether e was materialized from a template.
func (e *Event) IsInstance() bool {
	return e.ParentEventID != nil
}

func (e *Event) Days() []int {
	if len(e.RecurrenceDays) == 0 {
		return nil
	}
	var days []int
	if err := json.Unmarshal(e.RecurrenceDays, &days); err != nil {
		return nil
	}
	return days
}

func (e *Event) SetDays(days []int) {
	if len(days) == 0 {
		e.RecurrenceDays = nil
		return
	}
	raw, _ := json.Marshal(days)
	e.RecurrenceDays = datatypes.JSON(raw)
}

// Rule returns the recurrence rule of a template with its times in loc.
// Weekdays and the time of day are evaluated in that zone, so rows read back
// from the database must be converted before generating dates.
func (e *Event) Rule(loc *time.Location) recurrence.Rule {
	if loc == nil {
		loc = e.StartTime.Location()
	}
	r := recurrence.Rule{
		Pattern: recurrence.Pattern(e.RecurrencePattern),
		Days:    e.Days(),
		Start:   e.StartTime.In(loc),
	}
	if e.RecurrenceEndDate != nil {
		end := e.RecurrenceEndDate.In(loc)
		r.End = &end
	}
	if e.EndTime != nil {
		r.Duration = e.EndTime.Sub(e.StartTime)
	}
	return r
}

func (e *Event) Display() recurrence.Display {
	return recurrence.Display{
		GroupID:     e.GroupID,
		LocationID:  e.LocationID,
		Title:       e.Title,
		Description: e.Description,
		EventType:   e.EventType,
		Location:    e.Location,
		ImageURL:    e.ImageURL,
	}
}

func (e *Event) Template(loc *time.Location) recurrence.Template {
	return recurrence.Template{ID: e.ID, Rule: e.Rule(loc), Display: e.Display()}
}

// instanceRow maps a materialized occurrence onto an events row.
func instanceRow(inst *recurrence.Instance) *Event {
	parent := inst.ParentID
	return &Event{
		GroupID:       inst.Display.GroupID,
		LocationID:    inst.Display.LocationID,
		Title:         inst.Display.Title,
		Description:   inst.Display.Description,
		EventType:     inst.Display.EventType,
		Location:      inst.Display.Location,
		ImageURL:      inst.Display.ImageURL,
		StartTime:     inst.Start,
		EndTime:       inst.End,
		ParentEventID: &parent,
		IsActive:      true,
	}
}

func (e *Event) toInstance() recurrence.Instance {
	var parent uint
	if e.ParentEventID != nil {
		parent = *e.ParentEventID
	}
	return recurrence.Instance{
		ID:       e.ID,
		ParentID: parent,
		Start:    e.StartTime,
		End:      e.EndTime,
		Display:  e.Display(),
	}
}

// displayColumns are the columns a display-only change rewrites on instances.
func displayColumns(d recurrence.Display) map[string]interface{} {
	return map[string]interface{}{
		"group_id":    d.GroupID,
		"location_id": d.LocationID,
		"title":       d.Title,
		"description": d.Description,
		"event_type":  d.EventType,
		"location":    d.Location,
		"image_url":   d.ImageURL,
	}
}

// ============================
// 📊 Stats
type EventStatsResponse struct {
	TotalEvents     int64 `json:"total_events"`
	RecurringSeries int64 `json:"recurring_series"`
	ThisMonthEvents int64 `json:"this_month_events"`
	UpcomingEvents  int64 `json:"upcoming_events"`
	TotalRSVPs      int64 `json:"total_rsvps"`
}
