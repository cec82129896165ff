package group

import "time"

const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

// Membership roles. Organizers and admins may manage the group's events.
const (
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
	RoleMember    = "member"
)

const (
	StatusActive  = "active"
	StatusPending = "pending"
)

type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Privacy     string    `gorm:"size:20;default:'public'" json:"privacy"`
	CreatedBy   uint      `gorm:"not null;index" json:"created_by"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	MemberCount int64     `gorm:"-" json:"member_count,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}

type Membership struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	GroupID  uint      `gorm:"not null;uniqueIndex:idx_group_member" json:"group_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_group_member;index" json:"user_id"`
	Role     string    `gorm:"size:20;default:'member'" json:"role"`
	Status   string    `gorm:"size:20;default:'active'" json:"status"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
	Group    *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Membership) TableName() string {
	return "group_memberships"
}

// Location is a named venue a group reuses across events.
type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Location) TableName() string {
	return "group_locations"
}

// MemberDTO is a membership joined with the member's profile.
type MemberDTO struct {
	UserID   uint      `json:"user_id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

func IsManagerRole(role string) bool {
	return role == RoleOrganizer || role == RoleAdmin
}
