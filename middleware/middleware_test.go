package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[uint]auth.User

func (f fakeUsers) GetUserByID(id uint) (auth.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return auth.User{}, errors.New("not found")
}

type fakeChecker struct {
	allowed map[[2]uint]bool
	err     error
}

func (f fakeChecker) HasAccess(_ context.Context, groupID, userID uint) (bool, error) {
	return f.allowed[[2]uint{groupID, userID}], f.err
}

func signed(t *testing.T, secret string, userID uint) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newRouter(cfg *config.Config, users UserLookup, checker GroupAccessChecker) *gin.Engine {
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(cfg, users))
	api.GET("/whoami", func(c *gin.Context) {
		ac, _ := GetAccessContext(c)
		c.JSON(http.StatusOK, gin.H{"user": ac.UserID, "group": ac.GroupIDOr(0), "write": ac.CanWrite()})
	})
	api.GET("/groups/:id/secret", RequireGroupWriteAccess(checker), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTAccessSecret: "s3cret"}
	users := fakeUsers{
		7: {ID: 7, Status: "active", Role: auth.UserRole{RoleName: RoleMember}},
		8: {ID: 8, Status: "suspended", Role: auth.UserRole{RoleName: RoleMember}},
	}
	r := newRouter(cfg, users, fakeChecker{})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signed(t, "other", 7), http.StatusUnauthorized},
		{"unknown user", "Bearer " + signed(t, "s3cret", 99), http.StatusUnauthorized},
		{"valid", "Bearer " + signed(t, "s3cret", 7), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/whoami?group_id=4", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", 8))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":8,"group":4,"write":false}`, w.Body.String())
}

func TestGroupIDFromRequestPriority(t *testing.T) {
	r := gin.New()
	var got *uint
	r.GET("/groups/:id/events", func(c *gin.Context) { got = GroupIDFromRequest(c) })
	r.GET("/events", func(c *gin.Context) { got = GroupIDFromRequest(c) })

	do := func(path, header string) *uint {
		got = nil
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("X-Group-ID", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	require.NotNil(t, do("/groups/5/events?group_id=6", "9"))
	assert.Equal(t, uint(9), *do("/groups/5/events?group_id=6", "9"))
	assert.Equal(t, uint(5), *do("/groups/5/events?group_id=6", ""))
	assert.Equal(t, uint(6), *do("/events?group_id=6", ""))
	assert.Nil(t, do("/events?group_id=all", ""))
	assert.Nil(t, do("/events?group_id=x", "0"))
}

func TestRequireGroupWriteAccess(t *testing.T) {
	cfg := &config.Config{JWTAccessSecret: "s3cret"}
	users := fakeUsers{
		1: {ID: 1, Status: "active", Role: auth.UserRole{RoleName: RoleAdmin}},
		2: {ID: 2, Status: "active", Role: auth.UserRole{RoleName: RoleMember}},
		3: {ID: 3, Status: "active", Role: auth.UserRole{RoleName: RoleMember}},
	}
	checker := fakeChecker{allowed: map[[2]uint]bool{{10, 2}: true}}
	r := newRouter(cfg, users, checker)

	call := func(userID uint, group string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/groups/"+group+"/secret", nil)
		req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", userID))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call(1, "10"), "platform admin")
	assert.Equal(t, http.StatusNoContent, call(2, "10"), "group organizer")
	assert.Equal(t, http.StatusForbidden, call(3, "10"), "plain member")
	assert.Equal(t, http.StatusForbidden, call(2, "11"), "other group")

	failing := newRouter(cfg, users, fakeChecker{err: errors.New("db down")})
	req := httptest.NewRequest(http.MethodGet, "/api/groups/10/secret", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "s3cret", 2))
	w := httptest.NewRecorder()
	failing.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuditMiddlewareClientIP(t *testing.T) {
	r := gin.New()
	r.Use(AuditMiddleware())
	var ip string
	r.GET("/", func(c *gin.Context) { ip = GetIPFromContext(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.1", ip)

	req.Header.Set("X-Real-Ip", "198.51.100.4")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.4", ip)

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
