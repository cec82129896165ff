package eventrsvp

import (
	"context"
	"testing"
	"time"

	"github.com/sharath018/community-events-backend/internal/event"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memRepo struct {
	rows []RSVP
}

func (m *memRepo) Create(_ context.Context, r *RSVP) error {
	for _, row := range m.rows {
		if row.EventID == r.EventID && row.UserID == r.UserID {
			return ErrAlreadyRSVPd
		}
	}
	r.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *r)
	return nil
}

func (m *memRepo) Delete(_ context.Context, eventID, userID uint) (int64, error) {
	for i, row := range m.rows {
		if row.EventID == eventID && row.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memRepo) ListAttendees(_ context.Context, eventID uint) ([]Attendee, error) {
	var out []Attendee
	for _, row := range m.rows {
		if row.EventID == eventID {
			out = append(out, Attendee{UserID: row.UserID})
		}
	}
	return out, nil
}

func (m *memRepo) ListByUser(_ context.Context, userID uint, _ *time.Time) ([]MyRSVP, error) {
	var out []MyRSVP
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, MyRSVP{ID: row.ID, EventID: row.EventID})
		}
	}
	return out, nil
}

type eventMap map[uint]*event.Event

func (e eventMap) GetEventByID(_ context.Context, id uint) (*event.Event, error) {
	if ev, ok := e[id]; ok {
		return ev, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type members map[uint]bool

func (m members) CanView(_ context.Context, _ uint, userID uint) (bool, error) {
	return m[userID], nil
}

func (m members) HasAccess(context.Context, uint, uint) (bool, error) { return false, nil }

type recorder struct{ titles []string }

func (r *recorder) CreateInAppForGroupRoles(_ context.Context, _ uint, roles []string, title, _, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

var now = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func fixture() (*service, *memRepo, *recorder) {
	parent := uint(1)
	events := eventMap{
		1: {ID: 1, GroupID: 5, Title: "Run", IsRecurring: true, IsActive: true, StartTime: now.AddDate(0, 0, -9)},
		2: {ID: 2, GroupID: 5, Title: "Run", ParentEventID: &parent, IsActive: true, StartTime: now.Add(22 * time.Hour)},
		3: {ID: 3, GroupID: 5, Title: "Run", ParentEventID: &parent, IsActive: true, StartTime: now.Add(-2 * time.Hour)},
		4: {ID: 4, GroupID: 5, Title: "Picnic", IsActive: false, StartTime: now.AddDate(0, 0, 3)},
		5: {ID: 5, GroupID: 5, Title: "Quiz", IsActive: true, StartTime: now.AddDate(0, 0, 3)},
	}
	repo := &memRepo{}
	rec := &recorder{}
	svc := NewService(repo, events, members{7: true}, nil).(*service)
	svc.now = func() time.Time { return now }
	svc.SetNotifService(rec)
	return svc, repo, rec
}

func member() middleware.AccessContext {
	return middleware.AccessContext{UserID: 7, RoleName: middleware.RoleMember, PermissionType: middleware.PermissionFull}
}

func TestRSVPRules(t *testing.T) {
	cases := []struct {
		name    string
		eventID uint
		ac      middleware.AccessContext
		want    error
	}{
		{"instance", 2, member(), nil},
		{"one-off", 5, member(), nil},
		{"template", 1, member(), ErrNotAttendable},
		{"started", 3, member(), ErrEventStarted},
		{"inactive", 4, member(), ErrEventInactive},
		{"missing", 99, member(), ErrEventNotFound},
		{"outsider", 2, middleware.AccessContext{UserID: 8, PermissionType: middleware.PermissionFull}, ErrAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := fixture()
			r, err := svc.RSVP(context.Background(), tc.eventID, tc.ac, "")
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				assert.Empty(t, repo.rows)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(5), r.GroupID)
			assert.Len(t, repo.rows, 1)
		})
	}
}

func TestRSVPIsOncePerUser(t *testing.T) {
	svc, _, rec := fixture()
	ctx := context.Background()

	_, err := svc.RSVP(ctx, 2, member(), "")
	require.NoError(t, err)
	_, err = svc.RSVP(ctx, 2, member(), "")
	assert.ErrorIs(t, err, ErrAlreadyRSVPd)
	assert.Equal(t, []string{"New RSVP"}, rec.titles)

	attendees, err := svc.ListAttendees(ctx, 2, member())
	require.NoError(t, err)
	assert.Len(t, attendees, 1)

	_, err = svc.ListAttendees(ctx, 1, member())
	assert.ErrorIs(t, err, ErrNotAttendable)
}

func TestCancelRSVP(t *testing.T) {
	svc, repo, _ := fixture()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Cancel(ctx, 2, member(), ""), ErrNotRSVPd)

	_, err := svc.RSVP(ctx, 2, member(), "")
	require.NoError(t, err)
	mine, err := svc.MyRSVPs(ctx, member(), true)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, svc.Cancel(ctx, 2, member(), ""))
	assert.Empty(t, repo.rows)
}
