package reports

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

type Handler struct {
	Service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{Service: s}
}

// ===========================
// 📊 Export - GET /groups/:id/reports
// @Summary Export a group report
// @Description Schedule of upcoming occurrences or the group's audit log, as CSV, Excel or PDF.
// @Tags Reports
// @Produce octet-stream
// @Param id path int true "Group ID"
// @Param type query string false "schedule (default) or audit-logs"
// @Param format query string false "csv (default), excel or pdf"
// @Param date_range query string false "daily, weekly, monthly or custom"
// @Param start_date query string false "YYYY-MM-DD, custom range only"
// @Param end_date query string false "YYYY-MM-DD, custom range only"
// @Success 200 {file} file
// @Router /api/v1/groups/{id}/reports [get]
func (h *Handler) Export(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || groupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return
	}

	var req ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	body, filename, mime, err := h.Service.Export(c.Request.Context(), uint(groupID), req, ac, middleware.GetIPFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ErrUnsupportedType), errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			utils.Log.Error("report export failed", zap.Uint64("group_id", groupID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
		}
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, mime, body)
}
