package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	items []InAppNotification
}

func (m *memRepo) CreateInApp(_ context.Context, n *InAppNotification) error {
	n.ID = uint(len(m.items) + 1)
	m.items = append(m.items, *n)
	return nil
}

func (m *memRepo) ListInAppByUser(_ context.Context, userID uint, groupID *uint, unreadOnly bool, _ int) ([]InAppNotification, error) {
	var out []InAppNotification
	for _, n := range m.items {
		if n.UserID != userID || (groupID != nil && n.GroupID != *groupID) || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memRepo) CountUnread(_ context.Context, userID uint) (int64, error) {
	var c int64
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memRepo) MarkInAppAsRead(_ context.Context, id uint, userID uint) error {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memRepo) MarkAllAsRead(_ context.Context, userID uint) (int64, error) {
	var c int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].IsRead {
			m.items[i].IsRead = true
			c++
		}
	}
	return c, nil
}

// roster maps role to member ids for a single group.
type roster map[string][]uint

func (r roster) MemberIDsByRoles(_ context.Context, _ uint, roles []string) ([]uint, error) {
	var ids []uint
	for _, role := range roles {
		ids = append(ids, r[role]...)
	}
	return ids, nil
}

type fakeQueue struct {
	err  error
	keys []string
	jobs []fanoutJob
}

func (q *fakeQueue) Publish(_ context.Context, key string, v interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.keys = append(q.keys, key)
	q.jobs = append(q.jobs, v.(fanoutJob))
	return nil
}

func newTestService() (*service, *memRepo) {
	repo := &memRepo{}
	svc := NewService(repo, roster{
		"organizer": {1, 2},
		"admin":     {2, 3},
		"member":    {4},
	}).(*service)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestFanOutInlineDeduplicatesRecipients(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.CreateInAppForGroupRoles(ctx, 5, []string{"organizer", "admin"}, "New RSVP", "Someone is coming", "rsvp"))

	require.Len(t, repo.items, 3)
	var users []uint
	for _, n := range repo.items {
		users = append(users, n.UserID)
		assert.Equal(t, uint(5), n.GroupID)
		assert.Equal(t, "rsvp", n.Category)
	}
	assert.ElementsMatch(t, []uint{1, 2, 3}, users)
}

func TestFanOutUsesQueueWhenConfigured(t *testing.T) {
	svc, repo := newTestService()
	q := &fakeQueue{}
	svc.queue = q

	require.NoError(t, svc.CreateInAppForGroupRoles(context.Background(), 5, []string{"member"}, "Updated", "Run moved", "event"))

	assert.Empty(t, repo.items, "delivery happens in the consumer")
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "group:5", q.keys[0])
	assert.Equal(t, []string{"member"}, q.jobs[0].Roles)

	payload, err := json.Marshal(q.jobs[0])
	require.NoError(t, err)
	svc.handleMessage(context.Background(), kafka.Message{Value: payload})
	require.Len(t, repo.items, 1)
	assert.Equal(t, uint(4), repo.items[0].UserID)
	assert.Equal(t, "Run moved", repo.items[0].Message)
}

func TestFanOutFallsBackWhenQueueFails(t *testing.T) {
	svc, repo := newTestService()
	svc.queue = &fakeQueue{err: errors.New("broker down")}

	require.NoError(t, svc.CreateInAppForGroupRoles(context.Background(), 5, []string{"member"}, "t", "m", "event"))
	assert.Len(t, repo.items, 1)
}

func TestHandleMessageDropsMalformedJob(t *testing.T) {
	svc, repo := newTestService()
	svc.handleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Empty(t, repo.items)
}

func TestReadState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.CreateInAppNotification(ctx, 7, uint(1+i%2), "t", "m", "event"))
	}

	n, err := svc.CountUnread(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, svc.MarkInAppAsRead(ctx, 1, 7))
	assert.ErrorIs(t, svc.MarkInAppAsRead(ctx, 1, 8), ErrNotificationNotFound)

	group := uint(1)
	unread, err := svc.ListInAppByUser(ctx, 7, &group, true, 20)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	updated, err := svc.MarkAllAsRead(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)
}
