package eventrsvp

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, r *RSVP) error
	Delete(ctx context.Context, eventID, userID uint) (int64, error)
	ListAttendees(ctx context.Context, eventID uint) ([]Attendee, error)
	ListByUser(ctx context.Context, userID uint, from *time.Time) ([]MyRSVP, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

// Create inserts r; a second RSVP for the same pair returns ErrAlreadyRSVPd.
func (r *repository) Create(ctx context.Context, rsvp *RSVP) error {
	err := r.db.WithContext(ctx).Create(rsvp).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyRSVPd
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyRSVPd
	}
	return err
}

func (r *repository) Delete(ctx context.Context, eventID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&RSVP{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListAttendees(ctx context.Context, eventID uint) ([]Attendee, error) {
	var out []Attendee
	err := r.db.WithContext(ctx).
		Table("rsvps").
		Select("rsvps.user_id, users.full_name, users.email, rsvps.created_at").
		Joins("JOIN users ON users.id = rsvps.user_id").
		Where("rsvps.event_id = ?", eventID).
		Order("rsvps.created_at ASC").
		Scan(&out).Error
	return out, err
}

// ListByUser returns the user's RSVPs with event details, optionally only for
// events starting at or after from.
func (r *repository) ListByUser(ctx context.Context, userID uint, from *time.Time) ([]MyRSVP, error) {
	var out []MyRSVP
	q := r.db.WithContext(ctx).
		Table("rsvps").
		Select(`rsvps.id, rsvps.event_id, rsvps.group_id, events.title, events.location,
			events.start_time, events.end_time, events.parent_event_id, rsvps.created_at`).
		Joins("JOIN events ON events.id = rsvps.event_id").
		Where("rsvps.user_id = ?", userID)
	if from != nil {
		q = q.Where("events.start_time >= ?", *from)
	}
	err := q.Order("events.start_time ASC").Scan(&out).Error
	return out, err
}
