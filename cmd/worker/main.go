package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/assets"
	"github.com/modelibr/modelibr/internal/services/thumbnail"
	"github.com/modelibr/modelibr/internal/setup"
	"go.uber.org/zap"
)

// 缩略图渲染工作者进程，独立于 API 服务器部署，可以水平扩展
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if err := os.MkdirAll("logs", 0755); err != nil {
		logger.Fatal("Failed to create logs directory", zap.Error(err))
	}
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	defer logger.Sync()

	db, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to initialize MySQL", zap.Error(err))
	}

	blobStore, err := storage.NewBlobStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// MQ 仅用于接收唤醒信号，连不上时退化为纯轮询
	mqClient, err := mq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Warn("Failed to connect to RabbitMQ, worker falls back to polling", zap.Error(err))
		mqClient = nil
	} else {
		defer mqClient.Close()
		if _, err := mqClient.DeclareQueue(mq.ThumbnailNudgeQueueName); err != nil {
			logger.Fatal("Failed to declare nudge queue", zap.Error(err))
		}
	}

	modelRepo := repositories.NewModelRepository(db)
	versionRepo := repositories.NewModelVersionRepository(db)
	fileRepo := repositories.NewFileRepository(db)
	thumbnailRepo := repositories.NewThumbnailRepository(db)
	jobRepo := repositories.NewThumbnailJobRepository(db)
	tm := assets.NewTransactionManager(db)

	queueService := thumbnail.NewQueueService(jobRepo, tm, mqClient, cfg.Thumbnail.LockTimeoutMinutes)
	renderer := thumbnail.NewCommandRenderer(cfg.Thumbnail.RenderCommand)
	worker := thumbnail.NewWorker(
		queueService, modelRepo, versionRepo, fileRepo, thumbnailRepo,
		blobStore, renderer, mqClient, cfg.Thumbnail.PollIntervalSeconds)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Thumbnail worker started")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Worker exited with error", zap.Error(err))
	}
	logger.Info("Thumbnail worker exited gracefully")
}
