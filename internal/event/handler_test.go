package event

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture, userID uint) *gin.Engine {
	h := NewHandler(f.svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("access_context", actor(userID))
		c.Next()
	})
	r.POST("/events", h.CreateEvent)
	r.GET("/events", h.ListEvents)
	r.GET("/events/upcoming", h.GetUpcomingEvents)
	r.GET("/events/:id", h.GetEventByID)
	r.GET("/events/:id/occurrences", h.PreviewOccurrences)
	r.GET("/groups/:id/calendar.ics", h.GroupCalendar)
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreateEventStatusCodes(t *testing.T) {
	opts := recurrence.DefaultOptions
	opts.MaxOccurrences = 5

	cases := []struct {
		name   string
		user   uint
		body   interface{}
		status int
	}{
		{"created", organizerID, func() interface{} { r := weeklyRun(); r.RecurrenceDays = []int{1}; return r }(), http.StatusCreated},
		{"over the cap", organizerID, weeklyRun(), http.StatusBadRequest},
		{"not an organizer", memberID, weeklyRun(), http.StatusForbidden},
		{"missing title", organizerID, map[string]interface{}{"group_id": 1, "start_date": "2024-01-01"}, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, opts)
			w := doJSON(newTestRouter(f, tc.user), http.MethodPost, "/events", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestHandler_LimitErrorCarriesNumbers(t *testing.T) {
	opts := recurrence.DefaultOptions
	opts.MaxOccurrences = 5
	f := newFixture(t, opts)

	w := doJSON(newTestRouter(f, organizerID), http.MethodPost, "/events", weeklyRun())
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 5, body["max"])
	assert.Contains(t, body["error"], "exceeding the maximum of 5")
}

func TestHandler_ReadEndpoints(t *testing.T) {
	f := newFixture(t, recurrence.DefaultOptions)
	created, err := f.svc.CreateEvent(t.Context(), weeklyRun(), actor(organizerID), "")
	require.NoError(t, err)
	r := newTestRouter(f, memberID)

	w := doJSON(r, http.MethodGet, "/events/upcoming?group_id=1&limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var upcoming []Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upcoming))
	assert.Len(t, upcoming, 3)

	w = doJSON(r, http.MethodGet, "/events/upcoming", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "group is required")

	w = doJSON(r, http.MethodGet, "/events/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/events/4242", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/events/"+itoa(created.Event.ID)+"/occurrences", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/groups/1/calendar.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	ics := w.Body.String()
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "SUMMARY:Morning run")
	assert.Contains(t, ics, "RRULE:FREQ=WEEKLY")
	assert.Equal(t, 1, strings.Count(ics, "BEGIN:VEVENT"), "instances are covered by the RRULE")

	outsider := newTestRouter(f, outsiderID)
	w = doJSON(outsider, http.MethodGet, "/events?group_id=1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestRequestGroupIDFallsBackToAccessContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/events", nil)

	gid := uint(9)
	id, ok := requestGroupID(c, middleware.AccessContext{GroupID: &gid})
	assert.True(t, ok)
	assert.Equal(t, uint(9), id)

	c.Request.Header.Set("X-Group-ID", "4")
	id, ok = requestGroupID(c, middleware.AccessContext{GroupID: &gid})
	assert.True(t, ok)
	assert.Equal(t, uint(4), id)
}
