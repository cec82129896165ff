// @title Community Events API
// @version 1.0
// @description Groups, recurring events, RSVPs and in-app notifications.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/database"
	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/internal/auth"
	"github.com/sharath018/community-events-backend/internal/event"
	"github.com/sharath018/community-events-backend/internal/eventrsvp"
	"github.com/sharath018/community-events-backend/internal/group"
	"github.com/sharath018/community-events-backend/internal/notification"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/routes"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := utils.InitLogger(cfg.Env, cfg.LogLevel); err != nil {
		panic("logger init failed: " + err.Error())
	}
	defer utils.SyncLogger()

	db := database.Connect(cfg)

	// Auto-migrate models
	utils.Log.Info("running database migrations")
	if err := db.AutoMigrate(
		&auth.UserRole{},
		&auth.User{},
		&group.Group{},
		&group.Membership{},
		&group.Location{},
		&auditlog.AuditLog{},
		&event.Event{},
		&eventrsvp.RSVP{},
		&notification.InAppNotification{},
	); err != nil {
		utils.Log.Fatal("DB AutoMigrate failed", zap.Error(err))
	}

	if err := auth.SeedUserRoles(db); err != nil {
		utils.Log.Fatal("failed to seed roles", zap.Error(err))
	}

	if err := utils.InitRedis(cfg); err != nil {
		utils.Log.Fatal("redis init failed", zap.Error(err))
	}

	utils.InitializeKafka(cfg)
	defer utils.CloseKafka()
	notification.ConfigureConsumer(cfg)

	if strings.EqualFold(cfg.Env, "production") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Group-ID", "X-Request-ID", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	services := routes.Setup(router, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go services.Notifications.StartConsumer(ctx)

	var scheduler *event.Scheduler
	if cfg.TopUpCron != "" {
		s, err := event.NewScheduler(services.Events, cfg.TopUpCron)
		if err != nil {
			utils.Log.Fatal("invalid TOPUP_CRON", zap.String("spec", cfg.TopUpCron), zap.Error(err))
		}
		scheduler = s
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		utils.Log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	utils.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Log.Error("graceful shutdown failed", zap.Error(err))
	}
}
