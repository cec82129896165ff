package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrWriteDenied       = errors.New("write access denied")
	ErrReadDenied        = errors.New("read access denied")
	ErrGroupRequired     = errors.New("group_id is required")
	ErrNotTemplate       = errors.New("event is not a recurring template")
	ErrInstanceRecurring = errors.New("an occurrence of a series cannot recur itself")
)

// GroupDirectory answers membership questions about groups.
type GroupDirectory interface {
	HasAccess(ctx context.Context, groupID, userID uint) (bool, error)
	CanView(ctx context.Context, groupID, userID uint) (bool, error)
	LocationName(ctx context.Context, groupID, locationID uint) (string, error)
}

// Notifier fans in-app notifications out to group members. Empty roles
// address every active member.
type Notifier interface {
	CreateInAppForGroupRoles(ctx context.Context, groupID uint, roles []string, title, message, category string) error
}

// Service wraps business logic for group events and their recurrences
type Service struct {
	Repo         Store
	Materializer *recurrence.Materializer
	Groups       GroupDirectory
	AuditSvc     auditlog.Service
	NotifSvc     Notifier
	Cache        PreviewCache
	Location     *time.Location

	opts  recurrence.Options
	clock recurrence.Clock
	log   *zap.Logger
}

// NewService wires the event service. A nil clock uses the system clock and a
// nil location means UTC.
func NewService(repo Store, groups GroupDirectory, auditSvc auditlog.Service, opts recurrence.Options, loc *time.Location, clock recurrence.Clock) *Service {
	if clock == nil {
		clock = recurrence.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	log := utils.Log.Named("events")
	gen := recurrence.NewGenerator(opts)
	return &Service{
		Repo:         repo,
		Materializer: recurrence.NewMaterializer(repo, gen, clock, log.Named("recurrence")),
		Groups:       groups,
		AuditSvc:     auditSvc,
		Location:     loc,
		opts:         gen.Options(),
		clock:        clock,
		log:          log,
	}
}

// Options returns the effective recurrence options.
func (s *Service) Options() recurrence.Options {
	return s.opts
}

// ===========================
// 🔐 Access helpers

func (s *Service) canManage(ctx context.Context, ac middleware.AccessContext, groupID uint) error {
	if !ac.CanWrite() {
		return ErrWriteDenied
	}
	if ac.IsPlatformAdmin() {
		return nil
	}
	ok, err := s.Groups.HasAccess(ctx, groupID, ac.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWriteDenied
	}
	return nil
}

func (s *Service) canView(ctx context.Context, ac middleware.AccessContext, groupID uint) error {
	if ac.IsPlatformAdmin() {
		return nil
	}
	ok, err := s.Groups.CanView(ctx, groupID, ac.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrReadDenied
	}
	return nil
}

func (s *Service) load(ctx context.Context, id uint) (*Event, error) {
	e, err := s.Repo.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Service) audit(ctx context.Context, ac middleware.AccessContext, groupID uint, action string, details map[string]interface{}, ip, status string) {
	if s.AuditSvc == nil {
		return
	}
	var gid *uint
	if groupID != 0 {
		gid = &groupID
	}
	if err := s.AuditSvc.LogAction(ctx, &ac.UserID, gid, action, details, ip, status); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, groupID uint, title, message string) {
	if s.NotifSvc == nil {
		return
	}
	if err := s.NotifSvc.CreateInAppForGroupRoles(ctx, groupID, nil, title, message, "event"); err != nil {
		s.log.Warn("event notification failed", zap.Uint("group_id", groupID), zap.Error(err))
	}
}

func (s *Service) invalidatePreview(ctx context.Context, templateID uint) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, templateID); err != nil {
		s.log.Warn("preview cache invalidation failed", zap.Uint("template_id", templateID), zap.Error(err))
	}
}

// resolveLocation checks a referenced location belongs to the event's group
// and fills the free-text location from it when empty.
func (s *Service) resolveLocation(ctx context.Context, e *Event) error {
	if e.LocationID == nil {
		return nil
	}
	name, err := s.Groups.LocationName(ctx, e.GroupID, *e.LocationID)
	if err != nil {
		return invalid("location_id %d does not belong to this group", *e.LocationID)
	}
	if e.Location == "" {
		e.Location = name
	}
	return nil
}

// checkRule rejects a malformed or oversized recurrence before anything is stored.
func (s *Service) checkRule(r recurrence.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.opts.CheckLimit(r)
}

// ===========================
// 🎯 Create Event
func (s *Service) CreateEvent(ctx context.Context, req *CreateEventRequest, ac middleware.AccessContext, ip string) (*CreateEventResponse, error) {
	groupID := req.GroupID
	if groupID == 0 {
		groupID = ac.GroupIDOr(0)
	}
	if groupID == 0 {
		return nil, ErrGroupRequired
	}

	fail := func(err error) (*CreateEventResponse, error) {
		s.audit(ctx, ac, groupID, "EVENT_CREATE_FAILED", map[string]interface{}{
			"title":        req.Title,
			"is_recurring": req.IsRecurring,
			"error":        err.Error(),
		}, ip, "failure")
		return nil, err
	}

	if err := s.canManage(ctx, ac, groupID); err != nil {
		return fail(err)
	}

	sched, err := req.parseSchedule(s.Location)
	if err != nil {
		return fail(err)
	}

	e := &Event{GroupID: groupID, CreatedBy: ac.UserID, IsActive: true}
	req.apply(e, sched)
	if err := s.resolveLocation(ctx, e); err != nil {
		return fail(err)
	}
	if e.IsTemplate() {
		if err := s.checkRule(e.Rule(s.Location)); err != nil {
			return fail(err)
		}
	}

	if err := s.Repo.CreateEvent(ctx, e); err != nil {
		return fail(err)
	}

	resp := &CreateEventResponse{Event: e}
	if e.IsTemplate() {
		res, err := s.Materializer.MaterializeDefault(ctx, e.Template(s.Location))
		if err != nil {
			s.log.Error("initial materialization failed", zap.Uint("template_id", e.ID), zap.Error(err))
		}
		resp.InstancesCreated = len(res.Created)
		resp.InstancesFailed = res.Failed
		if !e.IsActive {
			if _, err := s.Repo.SetInstancesActive(ctx, e.ID, e.StartTime, false); err != nil {
				s.log.Error("hiding instances of inactive template failed", zap.Uint("template_id", e.ID), zap.Error(err))
			}
		}
	}

	s.audit(ctx, ac, groupID, "EVENT_CREATED", map[string]interface{}{
		"event_id":          e.ID,
		"title":             e.Title,
		"start_time":        e.StartTime,
		"is_recurring":      e.IsRecurring,
		"pattern":           e.RecurrencePattern,
		"instances_created": resp.InstancesCreated,
		"instances_failed":  resp.InstancesFailed,
	}, ip, "success")

	msg := e.Title + " on " + e.StartTime.In(s.Location).Format("Mon 02 Jan 15:04")
	if e.IsTemplate() {
		msg = e.Title + " repeats " + e.RecurrencePattern + " from " + e.StartTime.In(s.Location).Format(dateLayout)
	}
	s.notify(ctx, groupID, "New Event", msg)

	return resp, nil
}

// ===========================
// 🛠 Update Event
//
// A changed rule on a template replaces its future instances; a display-only
// change is copied onto them. Editing a single instance never touches the
// template or its siblings.
func (s *Service) UpdateEvent(ctx context.Context, id uint, req *UpdateEventRequest, ac middleware.AccessContext, ip string) (*UpdateEventResponse, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*UpdateEventResponse, error) {
		s.audit(ctx, ac, e.GroupID, "EVENT_UPDATE_FAILED", map[string]interface{}{
			"event_id": id,
			"title":    e.Title,
			"error":    err.Error(),
		}, ip, "failure")
		return nil, err
	}

	if err := s.canManage(ctx, ac, e.GroupID); err != nil {
		return fail(err)
	}

	sched, err := req.parseSchedule(s.Location)
	if err != nil {
		return fail(err)
	}
	if e.IsInstance() && sched.Recurring {
		return fail(ErrInstanceRecurring)
	}

	before := *e
	wasTemplate := e.IsTemplate()
	req.apply(e, sched)
	if err := s.resolveLocation(ctx, e); err != nil {
		*e = before
		return fail(err)
	}
	if e.IsTemplate() {
		if err := s.checkRule(e.Rule(s.Location)); err != nil {
			*e = before
			return fail(err)
		}
	}

	if err := s.Repo.UpdateEvent(ctx, e); err != nil {
		return fail(err)
	}

	resp := &UpdateEventResponse{Event: e}
	now := s.clock.Now()

	switch {
	case e.IsTemplate() && !wasTemplate:
		res, err := s.Materializer.MaterializeDefault(ctx, e.Template(s.Location))
		if err != nil {
			return fail(err)
		}
		resp.Regenerated = true
		resp.InstancesCreated = len(res.Created)

	case wasTemplate && !e.IsTemplate():
		removed, err := s.Repo.DeleteInstances(ctx, e.ID, now)
		if err != nil {
			return fail(err)
		}
		resp.InstancesRemoved = removed

	case e.IsTemplate() && recurrence.RuleChanged(before.Rule(s.Location), e.Rule(s.Location)):
		res, err := s.Materializer.Regenerate(ctx, e.Template(s.Location))
		if err != nil {
			return fail(err)
		}
		resp.Regenerated = true
		resp.InstancesCreated = len(res.Created)

	case e.IsTemplate() && !sameDisplay(before.Display(), e.Display()):
		n, err := s.Materializer.PropagateDisplay(ctx, e.ID, e.Display())
		if err != nil {
			return fail(err)
		}
		resp.InstancesUpdated = n
	}

	// Materialized rows start active; an inactive template keeps them hidden.
	if e.IsTemplate() && (before.IsActive != e.IsActive || (resp.Regenerated && !e.IsActive)) {
		from := now
		if !wasTemplate {
			from = e.StartTime
		}
		if _, err := s.Repo.SetInstancesActive(ctx, e.ID, from, e.IsActive); err != nil {
			return fail(err)
		}
	}
	if wasTemplate || e.IsTemplate() {
		s.invalidatePreview(ctx, e.ID)
	}

	s.audit(ctx, ac, e.GroupID, "EVENT_UPDATED", map[string]interface{}{
		"event_id":          e.ID,
		"title":             e.Title,
		"changes":           changedFields(&before, e),
		"regenerated":       resp.Regenerated,
		"instances_created": resp.InstancesCreated,
		"instances_updated": resp.InstancesUpdated,
		"instances_removed": resp.InstancesRemoved,
	}, ip, "success")
	s.notify(ctx, e.GroupID, "Event Updated", e.Title+" was updated")

	return resp, nil
}

func sameDisplay(a, b recurrence.Display) bool {
	sameLoc := (a.LocationID == nil) == (b.LocationID == nil) &&
		(a.LocationID == nil || *a.LocationID == *b.LocationID)
	return sameLoc &&
		a.GroupID == b.GroupID &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.EventType == b.EventType &&
		a.Location == b.Location &&
		a.ImageURL == b.ImageURL
}

func changedFields(before, after *Event) map[string]interface{} {
	changes := map[string]interface{}{}
	if before.Title != after.Title {
		changes["title"] = map[string]string{"from": before.Title, "to": after.Title}
	}
	if before.Location != after.Location {
		changes["location"] = map[string]string{"from": before.Location, "to": after.Location}
	}
	if !before.StartTime.Equal(after.StartTime) {
		changes["start_time"] = map[string]time.Time{"from": before.StartTime, "to": after.StartTime}
	}
	if before.IsRecurring != after.IsRecurring {
		changes["is_recurring"] = map[string]bool{"from": before.IsRecurring, "to": after.IsRecurring}
	}
	if before.RecurrencePattern != after.RecurrencePattern {
		changes["pattern"] = map[string]string{"from": before.RecurrencePattern, "to": after.RecurrencePattern}
	}
	if fmt.Sprint(before.Days()) != fmt.Sprint(after.Days()) {
		changes["days"] = map[string][]int{"from": before.Days(), "to": after.Days()}
	}
	if before.IsActive != after.IsActive {
		changes["is_active"] = map[string]bool{"from": before.IsActive, "to": after.IsActive}
	}
	return changes
}

// ===========================
// ❌ Delete Event
func (s *Service) DeleteEvent(ctx context.Context, id uint, ac middleware.AccessContext, ip string) error {
	e, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canManage(ctx, ac, e.GroupID); err != nil {
		s.audit(ctx, ac, e.GroupID, "EVENT_DELETE_FAILED", map[string]interface{}{"event_id": id, "error": err.Error()}, ip, "failure")
		return err
	}

	removed, err := s.Repo.DeleteEvent(ctx, e)
	if err != nil {
		s.audit(ctx, ac, e.GroupID, "EVENT_DELETE_FAILED", map[string]interface{}{"event_id": id, "title": e.Title, "error": err.Error()}, ip, "failure")
		return err
	}
	if e.IsTemplate() {
		s.invalidatePreview(ctx, e.ID)
	}

	s.audit(ctx, ac, e.GroupID, "EVENT_DELETED", map[string]interface{}{
		"event_id":          id,
		"title":             e.Title,
		"was_template":      e.IsTemplate(),
		"parent_event_id":   e.ParentEventID,
		"instances_removed": removed,
	}, ip, "success")
	s.notify(ctx, e.GroupID, "Event Cancelled", e.Title+" has been removed")
	return nil
}

// ===========================
// 🔍 Reads

func (s *Service) GetEventByID(ctx context.Context, id uint, ac middleware.AccessContext) (*Event, error) {
	e, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, ac, e.GroupID); err != nil {
		return nil, err
	}
	return e, nil
}

// GetUpcomingEvents tops up the group's recurring templates, then lists the
// attendable events from now on. Top-up failures only shorten the list.
func (s *Service) GetUpcomingEvents(ctx context.Context, ac middleware.AccessContext, groupID uint, limit int) ([]Event, error) {
	if err := s.canView(ctx, ac, groupID); err != nil {
		return nil, err
	}

	if err := s.topUpGroup(ctx, &groupID); err != nil {
		s.log.Warn("lazy top-up skipped", zap.Uint("group_id", groupID), zap.Error(err))
	}

	events, err := s.Repo.ListUpcoming(ctx, groupID, s.clock.Now(), limit)
	if err != nil {
		return nil, err
	}
	s.fillRSVPCounts(ctx, events)
	return events, nil
}

// TopUpGroup extends the instances of a group's active templates.
func (s *Service) TopUpGroup(ctx context.Context, groupID uint) error {
	return s.topUpGroup(ctx, &groupID)
}

func (s *Service) topUpGroup(ctx context.Context, groupID *uint) error {
	rows, err := s.Repo.ActiveTemplates(ctx, groupID)
	if err != nil {
		return err
	}
	report := s.topUp(ctx, rows)
	if len(report.Failed) > 0 {
		s.log.Warn("some templates could not be topped up",
			zap.Int("checked", report.Checked), zap.Uints("failed", report.Failed))
	}
	return nil
}

// RunTopUp tops up every active template; the periodic sweep calls it.
func (s *Service) RunTopUp(ctx context.Context) (recurrence.TopUpReport, error) {
	rows, err := s.Repo.ActiveTemplates(ctx, nil)
	if err != nil {
		return recurrence.TopUpReport{}, err
	}
	return s.topUp(ctx, rows), nil
}

// topUp extends the given templates and drops the cached previews of those
// that received new instances.
func (s *Service) topUp(ctx context.Context, rows []Event) recurrence.TopUpReport {
	report := s.Materializer.TopUp(ctx, s.templatesOf(rows))
	for _, id := range report.Refreshed {
		s.invalidatePreview(ctx, id)
	}
	return report
}

func (s *Service) templatesOf(rows []Event) []recurrence.Template {
	out := make([]recurrence.Template, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Template(s.Location))
	}
	return out
}

func (s *Service) fillRSVPCounts(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	ids := make([]uint, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	counts, err := s.Repo.CountRSVPs(ctx, ids)
	if err != nil {
		s.log.Warn("rsvp count failed", zap.Error(err))
		return
	}
	for i := range events {
		events[i].RSVPCount = counts[events[i].ID]
	}
}

// ListEvents pages through a group's events, templates included.
func (s *Service) ListEvents(ctx context.Context, ac middleware.AccessContext, groupID uint, limit, offset int, search string) ([]Event, int64, error) {
	if err := s.canView(ctx, ac, groupID); err != nil {
		return nil, 0, err
	}
	events, total, err := s.Repo.ListEvents(ctx, groupID, limit, offset, search)
	if err != nil {
		return nil, 0, err
	}
	s.fillRSVPCounts(ctx, events)
	return events, total, nil
}

// ListInstances returns a template's instances, optionally only future ones.
func (s *Service) ListInstances(ctx context.Context, templateID uint, ac middleware.AccessContext, upcomingOnly bool, limit int) ([]Event, error) {
	tmpl, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsTemplate() {
		return nil, ErrNotTemplate
	}
	if err := s.canView(ctx, ac, tmpl.GroupID); err != nil {
		return nil, err
	}
	var from *time.Time
	if upcomingOnly {
		now := s.clock.Now()
		from = &now
	}
	events, err := s.Repo.ListInstances(ctx, templateID, from, limit)
	if err != nil {
		return nil, err
	}
	s.fillRSVPCounts(ctx, events)
	return events, nil
}

func (s *Service) GetEventStats(ctx context.Context, ac middleware.AccessContext, groupID uint) (*EventStatsResponse, error) {
	if err := s.canView(ctx, ac, groupID); err != nil {
		return nil, err
	}
	return s.Repo.GetEventStats(ctx, groupID, s.clock.Now())
}

// ===========================
// 🔮 Previews

// PreviewOccurrences lists the template's occurrences in the preview window,
// with persisted ids where instances already exist.
func (s *Service) PreviewOccurrences(ctx context.Context, templateID uint, ac middleware.AccessContext) (*PreviewResponse, error) {
	e, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !e.IsTemplate() {
		return nil, ErrNotTemplate
	}
	if err := s.canView(ctx, ac, e.GroupID); err != nil {
		return nil, err
	}

	tmpl := e.Template(s.Location)
	now := s.clock.Now()
	from, to := s.Materializer.PreviewRange(tmpl.Rule)
	key := previewKey(tmpl, from.Truncate(time.Hour))

	if s.Cache != nil {
		var cached PreviewResponse
		if err := s.Cache.Get(ctx, key, &cached); err == nil {
			cached.Occurrences = dropStarted(cached.Occurrences, now)
			return &cached, nil
		} else if !errors.Is(err, utils.ErrCacheMiss) {
			s.log.Warn("preview cache read failed", zap.Error(err))
		}
	}

	existing, err := s.Repo.FindInstances(ctx, tmpl.ID, from, to)
	if err != nil {
		return nil, err
	}
	occ, err := s.Materializer.Preview(tmpl, existing)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		TemplateID:  tmpl.ID,
		From:        from,
		To:          to,
		Estimated:   s.opts.EstimateOccurrences(tmpl.Rule),
		Occurrences: occ,
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, resp); err != nil {
			s.log.Warn("preview cache write failed", zap.Error(err))
		}
	}
	return resp, nil
}

// PreviewRule previews an unsaved recurrence, e.g. while an organizer fills
// in the form. Nothing is persisted.
func (s *Service) PreviewRule(ctx context.Context, req *CreateEventRequest, ac middleware.AccessContext) (*PreviewResponse, error) {
	groupID := req.GroupID
	if groupID == 0 {
		groupID = ac.GroupIDOr(0)
	}
	if groupID != 0 {
		if err := s.canView(ctx, ac, groupID); err != nil {
			return nil, err
		}
	}

	sched, err := req.parseSchedule(s.Location)
	if err != nil {
		return nil, err
	}
	if !sched.Recurring {
		return nil, invalid("is_recurring must be true to preview occurrences")
	}
	rule := sched.rule()
	if err := s.checkRule(rule); err != nil {
		return nil, err
	}

	tmpl := recurrence.Template{Rule: rule, Display: recurrence.Display{GroupID: groupID, Title: req.Title}}
	occ, err := s.Materializer.Preview(tmpl, nil)
	if err != nil {
		return nil, err
	}
	from, to := s.Materializer.PreviewRange(rule)
	return &PreviewResponse{
		From:        from,
		To:          to,
		Estimated:   s.opts.EstimateOccurrences(rule),
		Occurrences: occ,
	}, nil
}

func dropStarted(occ []recurrence.OccurrencePreview, now time.Time) []recurrence.OccurrencePreview {
	out := make([]recurrence.OccurrencePreview, 0, len(occ))
	for _, o := range occ {
		if !o.StartTime.Before(now) {
			out = append(out, o)
		}
	}
	return out
}
