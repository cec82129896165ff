package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/database"
	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/internal/auth"
	"github.com/sharath018/community-events-backend/internal/event"
	"github.com/sharath018/community-events-backend/internal/eventrsvp"
	"github.com/sharath018/community-events-backend/internal/group"
	"github.com/sharath018/community-events-backend/internal/notification"
	"github.com/sharath018/community-events-backend/internal/reports"
	"github.com/sharath018/community-events-backend/middleware"

	_ "github.com/sharath018/community-events-backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services exposes what main needs to run in the background.
type Services struct {
	Events        *event.Service
	Notifications notification.Service
}

func Setup(r *gin.Engine, cfg *config.Config) *Services {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiter(cfg.RateLimitPerMinute))
	api.Use(middleware.AuditMiddleware())

	loc := cfg.Location()

	// ========== Audit Log ==========
	auditRepo := auditlog.NewRepository(database.DB)
	auditSvc := auditlog.NewService(auditRepo)
	auditHandler := auditlog.NewHandler(auditSvc)

	// ========== Auth ==========
	authRepo := auth.NewRepository(database.DB)
	authSvc := auth.NewService(authRepo, cfg)
	authHandler := auth.NewHandler(authSvc)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.GET("/public-roles", authHandler.GetPublicRoles)
		authGroup.POST("/logout", middleware.AuthMiddleware(cfg, authSvc), authHandler.Logout)
	}

	// ========== Services ==========
	groupRepo := group.NewRepository(database.DB)
	groupSvc := group.NewService(groupRepo, auditSvc)
	groupHandler := group.NewHandler(groupSvc)

	notifRepo := notification.NewRepository(database.DB)
	notifSvc := notification.NewService(notifRepo, groupRepo)
	notifHandler := notification.NewHandler(notifSvc, cfg)

	eventRepo := event.NewRepository(database.DB)
	eventSvc := event.NewService(eventRepo, groupSvc, auditSvc, cfg.Recurrence.Options(), loc, nil)
	eventSvc.NotifSvc = notifSvc
	eventSvc.Cache = event.NewRedisPreviewCache(cfg.Recurrence.PreviewCacheTTL)
	eventHandler := event.NewHandler(eventSvc)

	rsvpRepo := eventrsvp.NewRepository(database.DB)
	rsvpSvc := eventrsvp.NewService(rsvpRepo, eventRepo, groupSvc, auditSvc)
	rsvpSvc.SetNotifService(notifSvc)
	rsvpHandler := eventrsvp.NewHandler(rsvpSvc)

	reportsRepo := reports.NewRepository(database.DB)
	reportsSvc := reports.NewService(reportsRepo, groupSvc, eventSvc, auditSvc, loc)
	reportsHandler := reports.NewHandler(reportsSvc)

	// EventSource cannot send an Authorization header.
	api.GET("/notifications/stream-token", notifHandler.StreamInAppWithToken)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg, authSvc))

	// ========== Groups ==========
	groupRoutes := protected.Group("/groups")
	{
		groupRoutes.GET("", groupHandler.ListMyGroups)
		groupRoutes.GET("/discover", groupHandler.DiscoverGroups)
		groupRoutes.GET("/:id", groupHandler.GetGroup)
		groupRoutes.GET("/:id/members", groupHandler.ListMembers)
		groupRoutes.GET("/:id/locations", groupHandler.ListLocations)
		groupRoutes.GET("/:id/calendar.ics", eventHandler.GroupCalendar)
		groupRoutes.GET("/:id/reports", reportsHandler.Export)

		writeRoutes := groupRoutes.Group("")
		writeRoutes.Use(middleware.RequireWriteAccess())
		{
			writeRoutes.POST("", groupHandler.CreateGroup)
			writeRoutes.POST("/:id/join", groupHandler.JoinGroup)
			writeRoutes.POST("/:id/leave", groupHandler.LeaveGroup)
		}

		organizerRoutes := groupRoutes.Group("")
		organizerRoutes.Use(middleware.RequireGroupWriteAccess(groupSvc))
		{
			organizerRoutes.PATCH("/:id/members/:userId", groupHandler.UpdateMember)
			organizerRoutes.POST("/:id/locations", groupHandler.CreateLocation)
			organizerRoutes.GET("/:id/activity", auditHandler.GetGroupActivity)
		}
	}

	// ========== Events ==========
	eventRoutes := protected.Group("/events")
	{
		eventRoutes.GET("", eventHandler.ListEvents)
		eventRoutes.GET("/upcoming", eventHandler.GetUpcomingEvents)
		eventRoutes.GET("/stats", eventHandler.GetEventStats)
		eventRoutes.GET("/:id", eventHandler.GetEventByID)
		eventRoutes.GET("/:id/instances", eventHandler.ListInstances)
		eventRoutes.GET("/:id/occurrences", eventHandler.PreviewOccurrences)
		eventRoutes.GET("/:id/attendees", rsvpHandler.ListAttendees)
		eventRoutes.POST("/preview", eventHandler.PreviewRule)

		writeRoutes := eventRoutes.Group("")
		writeRoutes.Use(middleware.RequireWriteAccess())
		{
			writeRoutes.POST("", eventHandler.CreateEvent)
			writeRoutes.PUT("/:id", eventHandler.UpdateEvent)
			writeRoutes.DELETE("/:id", eventHandler.DeleteEvent)
			writeRoutes.POST("/:id/rsvp", rsvpHandler.RSVP)
			writeRoutes.DELETE("/:id/rsvp", rsvpHandler.Cancel)
		}
	}

	protected.GET("/rsvps/me", rsvpHandler.MyRSVPs)

	// ========== Notifications ==========
	notifRoutes := protected.Group("/notifications")
	{
		notifRoutes.GET("/inapp", notifHandler.GetMyInApp)
		notifRoutes.GET("/inapp/unread-count", notifHandler.UnreadCount)
		notifRoutes.PUT("/inapp/read-all", notifHandler.MarkAllRead)
		notifRoutes.PUT("/inapp/:id/read", notifHandler.MarkInAppRead)
		notifRoutes.GET("/stream", notifHandler.StreamInApp)
	}

	// ========== Audit Logs (platform admins) ==========
	auditRoutes := protected.Group("/auditlogs")
	auditRoutes.Use(middleware.RBACMiddleware(auth.RoleAdmin))
	{
		auditRoutes.GET("", auditHandler.GetAuditLogs)
		auditRoutes.GET("/stats", auditHandler.GetAuditLogStats)
		auditRoutes.GET("/:id", auditHandler.GetAuditLogByID)
	}

	return &Services{Events: eventSvc, Notifications: notifSvc}
}
