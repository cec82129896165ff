package notification

import "time"

// InAppNotification is a per-user bell notification scoped to a group.
type InAppNotification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index:idx_inapp_user_read" json:"user_id"`
	GroupID   uint       `gorm:"not null;index" json:"group_id"`
	Title     string     `gorm:"size:150;not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	Category  string     `gorm:"size:30;not null" json:"category"` // event, rsvp, group, system
	IsRead    bool       `gorm:"default:false;index:idx_inapp_user_read" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (InAppNotification) TableName() string {
	return "inapp_notifications"
}

// fanoutJob is the Kafka payload for a role-targeted group notification.
type fanoutJob struct {
	GroupID  uint     `json:"group_id"`
	Roles    []string `json:"roles"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
}
