// Package main runs the community meeting HTTP server with graceful
// shutdown and the in-process activity status scheduler.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/communitymeet/backend/config"
	"github.com/communitymeet/backend/internal/activities"
	"github.com/communitymeet/backend/internal/auth"
	"github.com/communitymeet/backend/internal/cities"
	"github.com/communitymeet/backend/internal/feedback"
	"github.com/communitymeet/backend/internal/groups"
	"github.com/communitymeet/backend/internal/meetings"
	"github.com/communitymeet/backend/internal/middleware"
	"github.com/communitymeet/backend/internal/models"
	"github.com/communitymeet/backend/internal/notify"
	"github.com/communitymeet/backend/internal/provider"
	"github.com/communitymeet/backend/internal/records"
	"github.com/communitymeet/backend/internal/wechat"
	"github.com/communitymeet/backend/pkg/clock"
	"github.com/communitymeet/backend/pkg/database"
	"github.com/communitymeet/backend/pkg/queue"
	"github.com/communitymeet/backend/pkg/redis"
	"github.com/communitymeet/backend/pkg/response"
	"github.com/communitymeet/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var objStore *storage.Store
	if cfg.Storage.Bucket != "" {
		objStore, err = storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warn("object storage disabled", zap.Error(err))
		}
	}

	clk := clock.System{}
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	wxClient := wechat.NewClient(cfg.WeChat, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	registry := provider.NewRegistry()
	registry.Register(models.PlatformTencent, provider.NewTencent(cfg.Tencent, logger))
	registry.Register(models.PlatformWeLink, provider.NewWeLink(cfg.WeLink, logger))

	// Auth and users
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, wxClient, logger)

	// Groups and cities
	groupRepo := groups.NewRepository(pool)
	groupHandler := groups.NewHandler(groupRepo, logger)
	cityRepo := cities.NewRepository(pool)
	cityHandler := cities.NewHandler(cityRepo, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(pool)
	allocator := meetings.NewAllocator(meetingRepo, cfg.Meeting.Hosts, logger)
	meetingSvc := meetings.NewService(meetingRepo, groupRepo, allocator, registry, jobQueue, clk, cfg.Meeting.Community, logger)
	meetingHandler := meetings.NewHandler(meetingSvc, meetingRepo, clk, cfg.Meeting.QueryToken, logger)

	// Activities
	activityRepo := activities.NewRepository(pool)
	var uploader activities.Uploader
	if objStore != nil {
		uploader = objStore
	}
	activityHandler := activities.NewHandler(activityRepo, wxClient, uploader, clk, logger)
	activityScheduler := activities.NewScheduler(activityRepo, clk, 5*time.Minute, logger)

	// Recording webhook
	recordingWebhook := records.NewWebhook(meetingRepo, registry, jobQueue, logger)

	// Feedback
	feedbackRepo := feedback.NewRepository(pool)
	mailer := notify.NewMailer(cfg.Email, logger)
	feedbackHandler := feedback.NewHandler(feedbackRepo, mailer, cfg.Email.RecordingReceivers, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public
	router.POST("/auth/login", authHandler.Login)
	router.GET("/meetings", meetingHandler.List)
	router.GET("/meetings/calendar", meetingHandler.Calendar)
	router.GET("/meetings/:mid", meetingHandler.Detail)
	router.GET("/meetings/:mid/participants", meetingHandler.Participants)
	router.GET("/activities", activityHandler.List)
	router.GET("/activities/calendar", activityHandler.Calendar)
	router.GET("/activities/:id", activityHandler.Detail)
	router.GET("/groups", groupHandler.List)
	router.GET("/cities", cityHandler.List)

	// Recording webhook (provider callback, no session)
	router.GET("/webhooks/recordings", recordingWebhook.Verify)
	router.POST("/webhooks/recordings", recordingWebhook.Receive)

	// Protected API
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me", middleware.LoadUser(userRepo), authHandler.Me)
		api.PUT("/me", authHandler.UpdateProfile)

		// Meetings: booking needs maintainer level, re-read from the store
		api.POST("/meetings", middleware.RequireLevel(userRepo, models.LevelMaintainer), meetingHandler.Create)
		api.DELETE("/meetings/:mid", middleware.LoadUser(userRepo), meetingHandler.Cancel)
		api.GET("/my/meetings", meetingHandler.Mine)
		api.GET("/my/collections", meetingHandler.Collections)
		api.GET("/my/counts", meetingHandler.Counts)
		api.POST("/collect", meetingHandler.Collect)
		api.DELETE("/collect/:id", meetingHandler.Uncollect)

		// Groups and cities rosters (admin)
		api.GET("/my/groups", groupHandler.Mine)
		api.GET("/groups/:id/members", middleware.RequireLevel(userRepo, models.LevelAdmin), groupHandler.Members)
		api.POST("/groups/:id/members", middleware.RequireLevel(userRepo, models.LevelAdmin), groupHandler.AddMembers)
		api.DELETE("/groups/:id/members", middleware.RequireLevel(userRepo, models.LevelAdmin), groupHandler.RemoveMembers)
		api.GET("/my/cities", cityHandler.Mine)
		api.POST("/cities", middleware.RequireLevel(userRepo, models.LevelAdmin), cityHandler.Create)
		api.GET("/cities/:id/sponsors", middleware.RequireLevel(userRepo, models.LevelAdmin), cityHandler.Sponsors)
		api.POST("/cities/:id/sponsors", middleware.RequireLevel(userRepo, models.LevelAdmin), cityHandler.AddSponsors)
		api.DELETE("/cities/:id/sponsors", middleware.RequireLevel(userRepo, models.LevelAdmin), cityHandler.RemoveSponsors)

		// Sponsor roster for the activity track (activity admin)
		api.GET("/sponsors", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), authHandler.ListSponsors)
		api.GET("/sponsors/candidates", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), authHandler.ListNonSponsors)
		api.POST("/sponsors", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), authHandler.AddSponsors)
		api.DELETE("/sponsors", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), authHandler.RemoveSponsors)

		// Activities
		api.POST("/activities", middleware.RequireActivityLevel(userRepo, models.LevelMaintainer), activityHandler.Create)
		api.PUT("/activities/:id", middleware.RequireActivityLevel(userRepo, models.LevelMaintainer), activityHandler.UpdateDraft)
		api.DELETE("/activities/:id/draft", middleware.RequireActivityLevel(userRepo, models.LevelMaintainer), activityHandler.DeleteDraft)
		api.PUT("/activities/:id/approve", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), activityHandler.Approve)
		api.PUT("/activities/:id/deny", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), activityHandler.Deny)
		api.DELETE("/activities/:id", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), activityHandler.Delete)
		api.GET("/activities/review", middleware.RequireActivityLevel(userRepo, models.LevelAdmin), activityHandler.PendingReview)
		api.GET("/my/activities", activityHandler.Mine)
		api.GET("/my/activities/collected", activityHandler.Collected)
		api.GET("/my/activities/registered", activityHandler.Registered)
		api.GET("/my/activities/counts", activityHandler.Counts)
		api.POST("/activities/:id/collect", activityHandler.Collect)
		api.DELETE("/activities/:id/collect", activityHandler.Uncollect)
		api.POST("/activities/:id/register", activityHandler.Register)
		api.POST("/activities/:id/sign", activityHandler.Sign)

		// Feedback
		api.POST("/feedback", feedbackHandler.Submit)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go activityScheduler.Run(schedCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	schedCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
