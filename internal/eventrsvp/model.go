package eventrsvp

import (
	"time"

	"github.com/sharath018/community-events-backend/internal/event"
)

// ======================
// 🔹 RSVP Model
// ======================

// RSVP marks a user as attending one attendable event: a one-off event or a
// single instance of a series. Rows go away with their event.
type RSVP struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	EventID   uint         `gorm:"not null;uniqueIndex:idx_rsvp_event_user" json:"event_id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_rsvp_event_user;index" json:"user_id"`
	GroupID   uint         `gorm:"not null;index" json:"group_id"`
	Event     *event.Event `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (RSVP) TableName() string {
	return "rsvps"
}

// Attendee is one row of an event's attendee list.
type Attendee struct {
	UserID    uint      `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"rsvp_at"`
}

// MyRSVP is an RSVP joined with the event it points at.
type MyRSVP struct {
	ID            uint       `json:"id"`
	EventID       uint       `json:"event_id"`
	GroupID       uint       `json:"group_id"`
	Title         string     `json:"title"`
	Location      string     `json:"location"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	ParentEventID *uint      `json:"parent_event_id,omitempty"`
	CreatedAt     time.Time  `json:"rsvp_at"`
}
