package event

import (
	"context"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sharath018/community-events-backend/middleware"
	"go.uber.org/zap"
)

const icalLocalLayout = "20060102T150405"

// GroupCalendar renders a group's schedule as an iCalendar feed. Recurring
// templates are exported once with their RRULE, so calendar clients expand
// them; upcoming one-off events follow as plain VEVENTs.
func (s *Service) GroupCalendar(ctx context.Context, ac middleware.AccessContext, groupID uint) (string, error) {
	if err := s.canView(ctx, ac, groupID); err != nil {
		return "", err
	}

	templates, err := s.Repo.ActiveTemplates(ctx, &groupID)
	if err != nil {
		return "", err
	}
	upcoming, err := s.Repo.ListUpcoming(ctx, groupID, s.clock.Now(), 0)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//community-events-backend//group calendar//EN")
	cal.SetXWRCalName(fmt.Sprintf("Group %d events", groupID))
	if s.Location != time.UTC {
		cal.SetXWRTimezone(s.Location.String())
	}

	for i := range templates {
		t := &templates[i]
		rrule, err := t.Rule(s.Location).RRule()
		if err != nil {
			s.log.Warn("template skipped in calendar export", zap.Uint("template_id", t.ID), zap.Error(err))
			continue
		}
		ev := s.addVEvent(cal, t)
		ev.AddRrule(rrule)
	}
	for i := range upcoming {
		if upcoming[i].IsInstance() {
			continue
		}
		s.addVEvent(cal, &upcoming[i])
	}

	return cal.Serialize(), nil
}

func (s *Service) addVEvent(cal *ical.Calendar, e *Event) *ical.VEvent {
	ev := cal.AddEvent(fmt.Sprintf("event-%d@community-events", e.ID))
	ev.SetDtStampTime(e.UpdatedAt)
	ev.SetCreatedTime(e.CreatedAt)
	ev.SetModifiedAt(e.UpdatedAt)
	s.setTime(ev, ical.ComponentPropertyDtStart, e.StartTime)
	if e.EndTime != nil {
		s.setTime(ev, ical.ComponentPropertyDtEnd, *e.EndTime)
	}
	ev.SetSummary(e.Title)
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.Location != "" {
		ev.SetLocation(e.Location)
	}
	return ev
}

// setTime writes local wall time with a TZID so weekly BYDAY values keep
// matching the organizer's days.
func (s *Service) setTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	if s.Location == time.UTC {
		ev.SetProperty(prop, t.UTC().Format(icalLocalLayout+"Z"))
		return
	}
	ev.SetProperty(prop, t.In(s.Location).Format(icalLocalLayout), &ical.KeyValues{
		Key:   string(ical.ParameterTzid),
		Value: []string{s.Location.String()},
	})
}
