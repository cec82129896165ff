package event

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func eventIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return 0, false
	}
	return uint(id), true
}

// requestGroupID resolves the group of a read request from the header, path
// or query, then from the access context.
func requestGroupID(c *gin.Context, ac middleware.AccessContext) (uint, bool) {
	if id := middleware.GroupIDFromRequest(c); id != nil {
		return *id, true
	}
	if id := ac.GroupIDOr(0); id != 0 {
		return id, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
	return 0, false
}

func writeError(c *gin.Context, err error) {
	var limitErr *recurrence.LimitError
	switch {
	case errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"estimated": limitErr.Estimated,
			"max":       limitErr.Max,
		})
	case recurrence.IsValidation(err), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrGroupRequired), errors.Is(err, ErrNotTemplate),
		errors.Is(err, ErrInstanceRecurring):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrWriteDenied), errors.Is(err, ErrReadDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		utils.Log.Error("event request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// ===========================
// 🎯 Create Event - POST /events
// @Summary Create an event or a recurring series
// @Description A recurring event is stored as a template and its instances up to the default horizon are created immediately.
// @Tags Events
// @Accept json
// @Produce json
// @Param body body CreateEventRequest true "Event"
// @Success 201 {object} CreateEventResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	if req.GroupID == 0 {
		if id := middleware.GroupIDFromRequest(c); id != nil {
			req.GroupID = *id
		}
	}

	resp, err := h.Service.CreateEvent(c.Request.Context(), &req, ac, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ===========================
// 🔮 Preview unsaved rule - POST /events/preview
// @Summary Preview the occurrences of an unsaved recurring event
// @Tags Events
// @Accept json
// @Produce json
// @Param body body CreateEventRequest true "Event draft"
// @Success 200 {object} PreviewResponse
// @Router /api/v1/events/preview [post]
func (h *Handler) PreviewRule(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	resp, err := h.Service.PreviewRule(c.Request.Context(), &req, ac)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ===========================
// 🔍 Get Event - GET /events/:id
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path int true "Event ID"
// @Success 200 {object} Event
// @Router /api/v1/events/{id} [get]
func (h *Handler) GetEventByID(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventIDParam(c)
	if !ok {
		return
	}
	e, err := h.Service.GetEventByID(c.Request.Context(), id, ac)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// ===========================
// 📆 Upcoming Events - GET /events/upcoming?group_id=&limit=
// @Summary Upcoming events of a group
// @Description Tops up recurring series that are running low before listing.
// @Tags Events
// @Produce json
// @Param group_id query int false "Group ID"
// @Param limit query int false "Max rows" default(50)
// @Success 200 {array} Event
// @Router /api/v1/events/upcoming [get]
func (h *Handler) GetUpcomingEvents(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := requestGroupID(c, ac)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.Service.GetUpcomingEvents(c.Request.Context(), ac, groupID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ===========================
// 📄 List Events - GET /events?group_id=&limit=&offset=&search=
// @Summary List a group's events
// @Tags Events
// @Produce json
// @Param group_id query int false "Group ID"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Offset" default(0)
// @Param search query string false "Title or description"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := requestGroupID(c, ac)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	events, total, err := h.Service.ListEvents(c.Request.Context(), ac, groupID, limit, offset, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events, "total": total, "limit": limit, "offset": offset})
}

// ===========================
// 📊 Event Stats - GET /events/stats?group_id=
// @Summary Event dashboard counters
// @Tags Events
// @Produce json
// @Param group_id query int false "Group ID"
// @Success 200 {object} EventStatsResponse
// @Router /api/v1/events/stats [get]
func (h *Handler) GetEventStats(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := requestGroupID(c, ac)
	if !ok {
		return
	}
	stats, err := h.Service.GetEventStats(c.Request.Context(), ac, groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ===========================
// 🛠 Update Event - PUT /events/:id
// @Summary Update an event
// @Description On a recurring event a schedule change replaces future instances and a display change is copied onto them.
// @Tags Events
// @Accept json
// @Produce json
// @Param id path int true "Event ID"
// @Param body body UpdateEventRequest true "Event"
// @Success 200 {object} UpdateEventResponse
// @Router /api/v1/events/{id} [put]
func (h *Handler) UpdateEvent(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventIDParam(c)
	if !ok {
		return
	}
	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	resp, err := h.Service.UpdateEvent(c.Request.Context(), id, &req, ac, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ===========================
// ❌ Delete Event - DELETE /events/:id
// @Summary Delete an event
// @Description Deleting a recurring event deletes all of its instances.
// @Tags Events
// @Param id path int true "Event ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/events/{id} [delete]
func (h *Handler) DeleteEvent(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventIDParam(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteEvent(c.Request.Context(), id, ac, middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "event deleted successfully"})
}

// ===========================
// 🔁 Instances - GET /events/:id/instances?upcoming=true&limit=
// @Summary Instances of a recurring event
// @Tags Events
// @Produce json
// @Param id path int true "Template ID"
// @Param upcoming query bool false "Only future instances"
// @Success 200 {array} Event
// @Router /api/v1/events/{id}/instances [get]
func (h *Handler) ListInstances(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventIDParam(c)
	if !ok {
		return
	}
	upcoming := c.Query("upcoming") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	events, err := h.Service.ListInstances(c.Request.Context(), id, ac, upcoming, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ===========================
// 🔮 Occurrence preview - GET /events/:id/occurrences
// @Summary Next occurrences of a recurring event
// @Tags Events
// @Produce json
// @Param id path int true "Template ID"
// @Success 200 {object} PreviewResponse
// @Router /api/v1/events/{id}/occurrences [get]
func (h *Handler) PreviewOccurrences(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventIDParam(c)
	if !ok {
		return
	}
	resp, err := h.Service.PreviewOccurrences(c.Request.Context(), id, ac)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ===========================
// 🗓 iCalendar feed - GET /groups/:id/calendar.ics
// @Summary Group calendar feed
// @Tags Events
// @Produce text/calendar
// @Param id path int true "Group ID"
// @Success 200 {string} string
// @Router /api/v1/groups/{id}/calendar.ics [get]
func (h *Handler) GroupCalendar(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}
	body, err := h.Service.GroupCalendar(c.Request.Context(), ac, uint(groupID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="group-%d.ics"`, groupID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
