package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/internal/auth"
)

// GroupAccessChecker decides whether a user may manage a group.
type GroupAccessChecker interface {
	HasAccess(ctx context.Context, groupID, userID uint) (bool, error)
}

// RBACMiddleware checks if the user has one of the allowed platform roles
func RBACMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		user, ok := userVal.(auth.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user object"})
			return
		}

		for _, role := range allowedRoles {
			if user.Role.RoleName == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unauthorized"})
	}
}

// RequireWriteAccess blocks read-only callers from mutating routes.
func RequireWriteAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("access_context")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access context missing"})
			return
		}
		ac, ok := raw.(AccessContext)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access context"})
			return
		}
		if !ac.CanWrite() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "write access denied"})
			return
		}
		c.Next()
	}
}

// RequireGroupWriteAccess lets the request through only when the caller
// manages the group resolved into the access context. Platform admins pass.
func RequireGroupWriteAccess(checker GroupAccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get("access_context")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access context missing"})
			return
		}
		ac, ok := raw.(AccessContext)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access context"})
			return
		}
		if !ac.CanWrite() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "write access denied"})
			return
		}
		if ac.IsPlatformAdmin() {
			c.Next()
			return
		}
		if ac.GroupID == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "group id is required"})
			return
		}

		allowed, err := checker.HasAccess(c.Request.Context(), *ac.GroupID, ac.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to check group access"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "group organizer or admin access required"})
			return
		}
		c.Next()
	}
}
