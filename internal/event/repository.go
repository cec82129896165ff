package event

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sharath018/community-events-backend/internal/recurrence"
	"gorm.io/gorm"
)

// Store is the persistence the event service needs. It includes the instance
// capability the materializer consumes.
type Store interface {
	recurrence.Store

	CreateEvent(ctx context.Context, e *Event) error
	GetEventByID(ctx context.Context, id uint) (*Event, error)
	UpdateEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, e *Event) (int64, error)
	SetInstancesActive(ctx context.Context, templateID uint, from time.Time, active bool) (int64, error)

	ListUpcoming(ctx context.Context, groupID uint, from time.Time, limit int) ([]Event, error)
	ListEvents(ctx context.Context, groupID uint, limit, offset int, search string) ([]Event, int64, error)
	ListInstances(ctx context.Context, templateID uint, from *time.Time, limit int) ([]Event, error)
	ActiveTemplates(ctx context.Context, groupID *uint) ([]Event, error)
	CountRSVPs(ctx context.Context, eventIDs []uint) (map[uint]int, error)
	GetEventStats(ctx context.Context, groupID uint, now time.Time) (*EventStatsResponse, error)
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// isDuplicate reports a unique violation, translated by gorm or raw from pgx.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ===========================
// 🎯 Events

func (r *Repository) CreateEvent(ctx context.Context, e *Event) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *Repository) GetEventByID(ctx context.Context, id uint) (*Event, error) {
	var e Event
	if err := r.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	counts, err := r.CountRSVPs(ctx, []uint{e.ID})
	if err != nil {
		return nil, err
	}
	e.RSVPCount = counts[e.ID]
	return &e, nil
}

func (r *Repository) UpdateEvent(ctx context.Context, e *Event) error {
	return r.DB.WithContext(ctx).Save(e).Error
}

// DeleteEvent removes e. Deleting a template also removes every instance and
// their RSVPs; deleting an instance leaves its template alone. It returns the
// number of instances removed with a template.
func (r *Repository) DeleteEvent(ctx context.Context, e *Event) (int64, error) {
	var removed int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if e.IsTemplate() {
			children := tx.Model(&Event{}).Select("id").Where("parent_event_id = ?", e.ID)
			if err := tx.Exec("DELETE FROM rsvps WHERE event_id IN (?)", children).Error; err != nil {
				return err
			}
			res := tx.Where("parent_event_id = ?", e.ID).Delete(&Event{})
			if res.Error != nil {
				return res.Error
			}
			removed = res.RowsAffected
		}
		if err := tx.Exec("DELETE FROM rsvps WHERE event_id = ?", e.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&Event{}, e.ID).Error
	})
	return removed, err
}

func (r *Repository) SetInstancesActive(ctx context.Context, templateID uint, from time.Time, active bool) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&Event{}).
		Where("parent_event_id = ? AND start_time >= ?", templateID, from).
		Update("is_active", active)
	return res.RowsAffected, res.Error
}

// ListUpcoming returns attendable events of a group from the given time on:
// one-off events and instances, never templates.
func (r *Repository) ListUpcoming(ctx context.Context, groupID uint, from time.Time, limit int) ([]Event, error) {
	var events []Event
	q := r.DB.WithContext(ctx).
		Where("group_id = ? AND is_active = ? AND start_time >= ?", groupID, true, from).
		Where("NOT (is_recurring = ? AND parent_event_id IS NULL)", true).
		Order("start_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

// ListEvents pages through every event row of a group, templates included.
func (r *Repository) ListEvents(ctx context.Context, groupID uint, limit, offset int, search string) ([]Event, int64, error) {
	var (
		events []Event
		total  int64
	)
	q := r.DB.WithContext(ctx).Model(&Event{}).Where("group_id = ?", groupID)
	if search != "" {
		ilike := "%" + search + "%"
		q = q.Where("title ILIKE ? OR description ILIKE ?", ilike, ilike)
	}
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("start_time ASC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

func (r *Repository) ListInstances(ctx context.Context, templateID uint, from *time.Time, limit int) ([]Event, error) {
	var events []Event
	q := r.DB.WithContext(ctx).Where("parent_event_id = ?", templateID)
	if from != nil {
		q = q.Where("start_time >= ?", *from)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("start_time ASC").Find(&events).Error
	return events, err
}

// ActiveTemplates lists recurring templates, optionally for one group.
func (r *Repository) ActiveTemplates(ctx context.Context, groupID *uint) ([]Event, error) {
	var events []Event
	q := r.DB.WithContext(ctx).
		Where("is_recurring = ? AND parent_event_id IS NULL AND is_active = ?", true, true)
	if groupID != nil {
		q = q.Where("group_id = ?", *groupID)
	}
	err := q.Order("id ASC").Find(&events).Error
	return events, err
}

func (r *Repository) CountRSVPs(ctx context.Context, eventIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		EventID uint
		Count   int
	}
	err := r.DB.WithContext(ctx).Table("rsvps").
		Select("event_id, COUNT(*) AS count").
		Where("event_id IN ?", eventIDs).
		Group("event_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.EventID] = row.Count
	}
	return counts, nil
}

// ===========================
// 📊 Event Dashboard Stats

func (r *Repository) GetEventStats(ctx context.Context, groupID uint, now time.Time) (*EventStatsResponse, error) {
	var stats EventStatsResponse
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	db := r.DB.WithContext(ctx)
	attendable := "group_id = ? AND NOT (is_recurring = TRUE AND parent_event_id IS NULL)"

	if err := db.Model(&Event{}).Where(attendable, groupID).Count(&stats.TotalEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Event{}).
		Where("group_id = ? AND is_recurring = ? AND parent_event_id IS NULL", groupID, true).
		Count(&stats.RecurringSeries).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Event{}).
		Where(attendable, groupID).
		Where("start_time >= ? AND start_time < ?", startOfMonth, startOfMonth.AddDate(0, 1, 0)).
		Count(&stats.ThisMonthEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Event{}).
		Where(attendable, groupID).
		Where("start_time >= ? AND is_active = ?", now, true).
		Count(&stats.UpcomingEvents).Error; err != nil {
		return nil, err
	}
	if err := db.Table("rsvps").
		Joins("JOIN events ON events.id = rsvps.event_id").
		Where("events.group_id = ?", groupID).
		Count(&stats.TotalRSVPs).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// ===========================
// 🔁 recurrence.Store

// CreateInstance inserts one instance; the (parent_event_id, start_time)
// unique index turns a concurrent duplicate into ErrDuplicateInstance.
func (r *Repository) CreateInstance(ctx context.Context, inst *recurrence.Instance) error {
	row := instanceRow(inst)
	if err := r.DB.WithContext(ctx).Create(row).Error; err != nil {
		if isDuplicate(err) {
			return recurrence.ErrDuplicateInstance
		}
		return err
	}
	inst.ID = row.ID
	return nil
}

func (r *Repository) FindInstances(ctx context.Context, templateID uint, from, to time.Time) ([]recurrence.Instance, error) {
	var rows []Event
	err := r.DB.WithContext(ctx).
		Where("parent_event_id = ? AND start_time >= ? AND start_time < ?", templateID, from, to).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]recurrence.Instance, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toInstance())
	}
	return out, nil
}

// DeleteInstances removes instances starting at or after from, with their RSVPs.
func (r *Repository) DeleteInstances(ctx context.Context, templateID uint, from time.Time) (int64, error) {
	var removed int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doomed := tx.Model(&Event{}).Select("id").
			Where("parent_event_id = ? AND start_time >= ?", templateID, from)
		if err := tx.Exec("DELETE FROM rsvps WHERE event_id IN (?)", doomed).Error; err != nil {
			return err
		}
		res := tx.Where("parent_event_id = ? AND start_time >= ?", templateID, from).Delete(&Event{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

func (r *Repository) UpdateInstances(ctx context.Context, templateID uint, from time.Time, d recurrence.Display) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&Event{}).
		Where("parent_event_id = ? AND start_time >= ?", templateID, from).
		Updates(displayColumns(d))
	return res.RowsAffected, res.Error
}

func (r *Repository) LatestInstanceStart(ctx context.Context, templateID uint) (*time.Time, error) {
	var latest Event
	err := r.DB.WithContext(ctx).
		Where("parent_event_id = ?", templateID).
		Order("start_time DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return nil, err
	}
	if latest.ID == 0 {
		return nil, nil
	}
	return &latest.StartTime, nil
}
