package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/internal/auth"
)

// UserLookup loads the user a token was issued for.
type UserLookup interface {
	GetUserByID(userID uint) (auth.User, error)
}

// AuthMiddleware handles JWT authentication and sets up access context
func AuthMiddleware(cfg *config.Config, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTAccessSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id missing in token"})
			return
		}

		user, err := users.GetUserByID(uint(userIDFloat))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Status == "inactive" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is inactive"})
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("claims", claims)

		accessContext := CreateAccessContext(c, user)
		c.Set("access_context", accessContext)
		if accessContext.GroupID != nil {
			c.Set("group_id", *accessContext.GroupID)
		}

		c.Next()
	}
}

// CreateAccessContext builds the caller's AccessContext. Suspended accounts
// are read-only; per-group authorization is left to the services.
func CreateAccessContext(c *gin.Context, user auth.User) AccessContext {
	ac := AccessContext{
		UserID:         user.ID,
		RoleName:       user.Role.RoleName,
		GroupID:        GroupIDFromRequest(c),
		PermissionType: PermissionFull,
	}
	if user.Status == "suspended" {
		ac.PermissionType = PermissionReadonly
	}
	return ac
}
