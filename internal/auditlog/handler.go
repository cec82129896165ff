package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func parseUintQuery(c *gin.Context, key string) *uint {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	id := uint(v)
	return &id
}

// filterFromQuery parses the shared filter parameters; ok is false after a 400 was written.
func filterFromQuery(c *gin.Context) (AuditLogFilter, bool) {
	filter := AuditLogFilter{
		UserID:  parseUintQuery(c, "user_id"),
		GroupID: parseUintQuery(c, "group_id"),
		Action:  c.Query("action"),
		Status:  c.Query("status"),
		Page:    1,
		Limit:   20,
	}

	if raw := c.Query("from_date"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from_date format. Use YYYY-MM-DD"})
			return filter, false
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to_date"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to_date format. Use YYYY-MM-DD"})
			return filter, false
		}
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.ToDate = &end
	}

	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 100 {
		filter.Limit = limit
	}
	return filter, true
}

// GetAuditLogs godoc
// @Summary Get audit logs
// @Description Retrieve audit logs with optional filters and pagination (platform admin only)
// @Tags AuditLog
// @Produce json
// @Param user_id query uint false "Filter by user ID"
// @Param group_id query uint false "Filter by group ID"
// @Param action query string false "Filter by action (partial match)"
// @Param status query string false "Filter by status"
// @Param from_date query string false "Filter from date (YYYY-MM-DD)"
// @Param to_date query string false "Filter to date (YYYY-MM-DD)"
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Records per page (default: 20)"
// @Success 200 {object} PaginatedAuditLogs
// @Router /api/v1/auditlogs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}
	result, err := h.service.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit logs"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetGroupActivity godoc
// @Summary Audit trail of one group
// @Tags AuditLog
// @Produce json
// @Param id path uint true "Group ID"
// @Success 200 {object} PaginatedAuditLogs
// @Router /api/v1/groups/{id}/activity [get]
func (h *Handler) GetGroupActivity(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}
	gid := uint(groupID)
	filter.GroupID = &gid

	result, err := h.service.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve group activity"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAuditLogByID godoc
// @Summary Get audit log by ID
// @Tags AuditLog
// @Produce json
// @Param id path uint true "Audit Log ID"
// @Success 200 {object} AuditLogResponse
// @Router /api/v1/auditlogs/{id} [get]
func (h *Handler) GetAuditLogByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid audit log ID"})
		return
	}

	log, err := h.service.GetAuditLogByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit log not found"})
		return
	}
	c.JSON(http.StatusOK, log)
}

// GetAuditLogStats godoc
// @Summary Audit log statistics for the last N days (default 7)
// @Tags AuditLog
// @Produce json
// @Param days query int false "Window in days"
// @Param group_id query uint false "Scope to a group"
// @Success 200 {object} AuditStats
// @Router /api/v1/auditlogs/stats [get]
func (h *Handler) GetAuditLogStats(c *gin.Context) {
	days := 7
	if d, err := strconv.Atoi(c.Query("days")); err == nil && d > 0 && d <= 365 {
		days = d
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := h.service.GetStats(c.Request.Context(), parseUintQuery(c, "group_id"), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve audit log stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}
