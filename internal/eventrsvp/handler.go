package eventrsvp

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/middleware"
)

type Handler struct {
	Service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{Service: s}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrNotRSVPd):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyRSVPd):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotAttendable), errors.Is(err, ErrEventInactive), errors.Is(err, ErrEventStarted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func eventID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event ID"})
		return 0, false
	}
	return uint(id), true
}

// ===========================
// 🙋 RSVP - POST /events/:id/rsvp
// @Summary RSVP to an event occurrence
// @Tags RSVP
// @Produce json
// @Param id path int true "Event or instance ID"
// @Success 201 {object} RSVP
// @Router /api/v1/events/{id}/rsvp [post]
func (h *Handler) RSVP(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	rsvp, err := h.Service.RSVP(c.Request.Context(), id, ac, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rsvp)
}

// ===========================
// 🚫 Cancel - DELETE /events/:id/rsvp
func (h *Handler) Cancel(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.Service.Cancel(c.Request.Context(), id, ac, middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rsvp cancelled"})
}

// ===========================
// 📋 Attendees - GET /events/:id/attendees
func (h *Handler) ListAttendees(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}
	list, err := h.Service.ListAttendees(c.Request.Context(), id, ac)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}

// ===========================
// 👤 My RSVPs - GET /rsvps/me?upcoming=true
func (h *Handler) MyRSVPs(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	list, err := h.Service.MyRSVPs(c.Request.Context(), ac, c.DefaultQuery("upcoming", "true") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
