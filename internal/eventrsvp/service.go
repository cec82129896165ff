package eventrsvp

import (
	"context"
	"errors"
	"time"

	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/internal/event"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNotAttendable = errors.New("a recurring series cannot be attended; RSVP to one of its occurrences")
	ErrEventInactive = errors.New("event is not active")
	ErrEventStarted  = errors.New("event has already started")
	ErrAlreadyRSVPd  = errors.New("already RSVP'd to this event")
	ErrNotRSVPd      = errors.New("no RSVP for this event")
	ErrAccessDenied  = errors.New("not a member of this group")
)

// EventReader loads events; event.Repository satisfies it.
type EventReader interface {
	GetEventByID(ctx context.Context, id uint) (*event.Event, error)
}

// GroupDirectory answers group membership questions.
type GroupDirectory interface {
	CanView(ctx context.Context, groupID, userID uint) (bool, error)
	HasAccess(ctx context.Context, groupID, userID uint) (bool, error)
}

type Notifier interface {
	CreateInAppForGroupRoles(ctx context.Context, groupID uint, roles []string, title, message, category string) error
}

type Service interface {
	RSVP(ctx context.Context, eventID uint, ac middleware.AccessContext, ip string) (*RSVP, error)
	Cancel(ctx context.Context, eventID uint, ac middleware.AccessContext, ip string) error
	ListAttendees(ctx context.Context, eventID uint, ac middleware.AccessContext) ([]Attendee, error)
	MyRSVPs(ctx context.Context, ac middleware.AccessContext, upcomingOnly bool) ([]MyRSVP, error)

	SetNotifService(n Notifier)
}

type service struct {
	repo     Repository
	events   EventReader
	groups   GroupDirectory
	auditSvc auditlog.Service
	notifSvc Notifier
	now      func() time.Time
}

func NewService(repo Repository, events EventReader, groups GroupDirectory, auditSvc auditlog.Service) Service {
	return &service{
		repo:     repo,
		events:   events,
		groups:   groups,
		auditSvc: auditSvc,
		now:      time.Now,
	}
}

func (s *service) SetNotifService(n Notifier) {
	s.notifSvc = n
}

// attendable loads the event and checks the caller may see it.
func (s *service) attendable(ctx context.Context, eventID uint, ac middleware.AccessContext) (*event.Event, error) {
	e, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if ac.IsPlatformAdmin() {
		return e, nil
	}
	ok, err := s.groups.CanView(ctx, e.GroupID, ac.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccessDenied
	}
	return e, nil
}

func (s *service) audit(ctx context.Context, ac middleware.AccessContext, groupID uint, action string, details map[string]interface{}, ip, status string) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.LogAction(ctx, &ac.UserID, &groupID, action, details, ip, status); err != nil {
		utils.Log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// ===========================
// 🙋 RSVP
func (s *service) RSVP(ctx context.Context, eventID uint, ac middleware.AccessContext, ip string) (*RSVP, error) {
	e, err := s.attendable(ctx, eventID, ac)
	if err != nil {
		return nil, err
	}

	fail := func(reason error) (*RSVP, error) {
		s.audit(ctx, ac, e.GroupID, "EVENT_RSVP_FAILED", map[string]interface{}{
			"event_id": eventID,
			"title":    e.Title,
			"reason":   reason.Error(),
		}, ip, "failure")
		return nil, reason
	}

	switch {
	case e.IsTemplate():
		return fail(ErrNotAttendable)
	case !e.IsActive:
		return fail(ErrEventInactive)
	case e.StartTime.Before(s.now()):
		return fail(ErrEventStarted)
	}

	rsvp := &RSVP{EventID: e.ID, UserID: ac.UserID, GroupID: e.GroupID}
	if err := s.repo.Create(ctx, rsvp); err != nil {
		return fail(err)
	}

	s.audit(ctx, ac, e.GroupID, "EVENT_RSVP", map[string]interface{}{
		"event_id":        e.ID,
		"title":           e.Title,
		"start_time":      e.StartTime,
		"parent_event_id": e.ParentEventID,
	}, ip, "success")

	if s.notifSvc != nil {
		if err := s.notifSvc.CreateInAppForGroupRoles(ctx, e.GroupID, []string{"organizer", "admin"},
			"New RSVP", "Someone is coming to "+e.Title, "rsvp"); err != nil {
			utils.Log.Warn("rsvp notification failed", zap.Uint("event_id", e.ID), zap.Error(err))
		}
	}
	return rsvp, nil
}

// ===========================
// 🚫 Cancel RSVP
func (s *service) Cancel(ctx context.Context, eventID uint, ac middleware.AccessContext, ip string) error {
	e, err := s.attendable(ctx, eventID, ac)
	if err != nil {
		return err
	}
	n, err := s.repo.Delete(ctx, eventID, ac.UserID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotRSVPd
	}
	s.audit(ctx, ac, e.GroupID, "EVENT_RSVP_CANCELLED", map[string]interface{}{
		"event_id": e.ID,
		"title":    e.Title,
	}, ip, "success")
	return nil
}

// ===========================
// 📋 Attendees
func (s *service) ListAttendees(ctx context.Context, eventID uint, ac middleware.AccessContext) ([]Attendee, error) {
	e, err := s.attendable(ctx, eventID, ac)
	if err != nil {
		return nil, err
	}
	if e.IsTemplate() {
		return nil, ErrNotAttendable
	}
	return s.repo.ListAttendees(ctx, e.ID)
}

func (s *service) MyRSVPs(ctx context.Context, ac middleware.AccessContext, upcomingOnly bool) ([]MyRSVP, error) {
	var from *time.Time
	if upcomingOnly {
		now := s.now()
		from = &now
	}
	return s.repo.ListByUser(ctx, ac.UserID, from)
}
