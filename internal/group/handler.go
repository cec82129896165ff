package group

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/middleware"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func groupIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group ID"})
		return 0, false
	}
	return uint(id), true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrLocationMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrLastOrganizer), errors.Is(err, ErrMissingName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ===========================
// 🏘 Create Group - POST /groups
// @Summary Create a group
// @Tags Groups
// @Accept json
// @Produce json
// @Param body body CreateGroupInput true "Group"
// @Success 201 {object} Group
// @Router /api/v1/groups [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	var req CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	g, err := h.Service.CreateGroup(c.Request.Context(), req, ac.UserID, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// ===========================
// 📋 My Groups - GET /groups
func (h *Handler) ListMyGroups(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groups, err := h.Service.ListMyGroups(c.Request.Context(), ac.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups})
}

// ===========================
// 🔎 Discover - GET /groups/discover
func (h *Handler) DiscoverGroups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	groups, total, err := h.Service.DiscoverGroups(c.Request.Context(), c.Query("search"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": groups, "total": total, "page": page})
}

// ===========================
// 🔍 Get Group - GET /groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	g, err := h.Service.GetGroup(c.Request.Context(), groupID, ac.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// ===========================
// 🙋 Join / Leave
func (h *Handler) JoinGroup(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	m, err := h.Service.JoinGroup(c.Request.Context(), groupID, ac.UserID, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) LeaveGroup(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	if err := h.Service.LeaveGroup(c.Request.Context(), groupID, ac.UserID, middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

// ===========================
// 👥 Members
func (h *Handler) ListMembers(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	members, err := h.Service.ListMembers(c.Request.Context(), groupID, ac.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

type updateMemberReq struct {
	Role   string `json:"role" example:"admin"`
	Status string `json:"status" example:"active"`
}

// UpdateMember - PATCH /groups/:id/members/:userId
func (h *Handler) UpdateMember(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	target, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	var req updateMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	if err := h.Service.UpdateMember(c.Request.Context(), groupID, ac.UserID, uint(target), req.Role, req.Status, middleware.GetIPFromContext(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member updated"})
}

// ===========================
// 📍 Locations
func (h *Handler) CreateLocation(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	var req CreateLocationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	loc, err := h.Service.CreateLocation(c.Request.Context(), groupID, ac.UserID, req, middleware.GetIPFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (h *Handler) ListLocations(c *gin.Context) {
	ac, ok := middleware.GetAccessContext(c)
	if !ok {
		return
	}
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	locs, err := h.Service.ListLocations(c.Request.Context(), groupID, ac.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": locs})
}
