package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Platform role names, mirrored from internal/auth.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

const (
	PermissionFull     = "full"
	PermissionReadonly = "readonly"
)

// AccessContext stores the caller's identity and the group the request targets.
type AccessContext struct {
	UserID         uint
	RoleName       string
	GroupID        *uint  // resolved from header, path or query; nil when absent
	PermissionType string // "full" or "readonly"
}

func (ac *AccessContext) IsPlatformAdmin() bool {
	return ac.RoleName == RoleAdmin
}

// CanWrite returns true if the user has write permissions
func (ac *AccessContext) CanWrite() bool {
	return ac.PermissionType == PermissionFull
}

// CanRead returns true if the user has read permissions
func (ac *AccessContext) CanRead() bool {
	return ac.PermissionType == PermissionFull || ac.PermissionType == PermissionReadonly
}

// GroupIDOr returns the resolved group, falling back to fallback.
func (ac *AccessContext) GroupIDOr(fallback uint) uint {
	if ac.GroupID != nil {
		return *ac.GroupID
	}
	return fallback
}

// GetAccessContext returns the context set by AuthMiddleware. When it is
// missing it writes a 401 and returns false.
func GetAccessContext(c *gin.Context) (AccessContext, bool) {
	raw, exists := c.Get("access_context")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access context missing"})
		return AccessContext{}, false
	}
	ac, ok := raw.(AccessContext)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access context"})
		return AccessContext{}, false
	}
	return ac, true
}

// GetUserID returns the authenticated user's id, or 0.
func GetUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// GroupIDFromRequest resolves the target group: X-Group-ID header, then the
// :id segment of /groups/:id paths, then the group_id query parameter.
func GroupIDFromRequest(c *gin.Context) *uint {
	if id := parseID(c.GetHeader("X-Group-ID")); id != nil {
		return id
	}
	if id := groupIDFromPath(c); id != nil {
		return id
	}
	return parseID(c.Query("group_id"))
}

func groupIDFromPath(c *gin.Context) *uint {
	if !strings.Contains(c.FullPath(), "/groups/:id") {
		return nil
	}
	return parseID(c.Param("id"))
}

func parseID(raw string) *uint {
	if raw == "" || raw == "all" {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}
