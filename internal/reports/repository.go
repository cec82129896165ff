package reports

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	ScheduleRows(ctx context.Context, groupID uint, from, to time.Time) ([]ScheduleRow, error)
	GroupName(ctx context.Context, groupID uint) (string, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ScheduleRows lists one-off events and instances starting in [from, to);
// templates are left out since only their instances occur.
func (r *repository) ScheduleRows(ctx context.Context, groupID uint, from, to time.Time) ([]ScheduleRow, error) {
	var rows []ScheduleRow
	err := r.db.WithContext(ctx).
		Table("events AS e").
		Select(`e.id AS event_id, e.title, e.location, e.start_time, e.end_time, e.is_active,
			e.parent_event_id, COALESCE(p.title, '') AS series,
			(SELECT COUNT(*) FROM rsvps r WHERE r.event_id = e.id) AS attendees`).
		Joins("LEFT JOIN events p ON p.id = e.parent_event_id").
		Where("e.group_id = ? AND e.start_time >= ? AND e.start_time < ?", groupID, from, to).
		Where("NOT (e.is_recurring = ? AND e.parent_event_id IS NULL)", true).
		Order("e.start_time ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) GroupName(ctx context.Context, groupID uint) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("groups").
		Where("id = ?", groupID).
		Limit(1).
		Pluck("name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return names[0], nil
}
