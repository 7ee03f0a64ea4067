// Package main runs the background worker: notification jobs, recording
// ingestion and the upcoming-meeting push sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/communitymeet/backend/config"
	"github.com/communitymeet/backend/internal/auth"
	"github.com/communitymeet/backend/internal/meetings"
	"github.com/communitymeet/backend/internal/notify"
	"github.com/communitymeet/backend/internal/records"
	"github.com/communitymeet/backend/internal/wechat"
	"github.com/communitymeet/backend/internal/worker"
	"github.com/communitymeet/backend/pkg/clock"
	"github.com/communitymeet/backend/pkg/database"
	"github.com/communitymeet/backend/pkg/queue"
	"github.com/communitymeet/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	objStore, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("object storage", zap.Error(err))
	}

	meetingRepo := meetings.NewRepository(pool)
	userRepo := auth.NewRepository(pool)
	recordRepo := records.NewRepository(pool)
	mailer := notify.NewMailer(cfg.Email, logger)
	wxClient := wechat.NewClient(cfg.WeChat, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	notifications := worker.NewNotificationProcessor(meetingRepo, userRepo, mailer, wxClient, logger)
	ingest := worker.NewIngestProcessor(meetingRepo, recordRepo, objStore, mailer, cfg.Email.RecordingReceivers, logger)
	w := worker.New(jobQueue, notifications, ingest, logger)
	sweep := worker.NewPushSweep(meetingRepo, notifications, clock.System{}, 10*time.Minute, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweep.Run(runCtx)
	go w.Run(runCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
