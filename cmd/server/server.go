package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/router"
	"github.com/modelibr/modelibr/internal/search"
	"github.com/modelibr/modelibr/internal/services/assets"
	"github.com/modelibr/modelibr/internal/services/thumbnail"
	"github.com/modelibr/modelibr/internal/setup"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	httpServer     *http.Server
	db             *gorm.DB
	redisClient    *redis.Client
	rabbitMQClient *mq.RabbitMQClient
	janitor        *thumbnail.Janitor
	searchService  *search.Service
	cfg            *config.Config
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	redisClient, err := setup.InitRedis(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	esClient, err := setup.InitElasticsearch(&cfg.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Elasticsearch: %w", err)
	}

	rabbitMQClient, err := mq.NewRabbitMQClient(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	if _, err := rabbitMQClient.DeclareQueue(mq.DomainEventQueueName); err != nil {
		return nil, fmt.Errorf("failed to declare domain event queue: %w", err)
	}
	if _, err := rabbitMQClient.DeclareQueue(mq.ThumbnailNudgeQueueName); err != nil {
		return nil, fmt.Errorf("failed to declare nudge queue: %w", err)
	}

	blobStore, err := storage.NewBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	// 后台清理：过期租约回收 + 回收站清除
	modelRepo := repositories.NewModelRepository(mysqlDB)
	versionRepo := repositories.NewModelVersionRepository(mysqlDB)
	fileRepo := repositories.NewFileRepository(mysqlDB)
	recycledRepo := repositories.NewRecycledFileRepository(mysqlDB)
	jobRepo := repositories.NewThumbnailJobRepository(mysqlDB)
	tm := assets.NewTransactionManager(mysqlDB)
	gracePeriod := time.Duration(cfg.Recycle.GraceHours) * time.Hour
	lifecycleService := assets.NewLifecycleService(
		modelRepo, versionRepo, fileRepo, recycledRepo, tm, blobStore, rabbitMQClient, gracePeriod)
	queueService := thumbnail.NewQueueService(jobRepo, tm, rabbitMQClient, cfg.Thumbnail.LockTimeoutMinutes)
	janitor := thumbnail.NewJanitor(queueService, lifecycleService)

	searchService := search.NewService(esClient, modelRepo)

	engine := router.InitRouter(router.NewRouterConfig(mysqlDB, redisClient, blobStore, rabbitMQClient, esClient, cfg))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	return &Server{
		httpServer:     httpServer,
		db:             mysqlDB,
		redisClient:    redisClient,
		rabbitMQClient: rabbitMQClient,
		janitor:        janitor,
		searchService:  searchService,
		cfg:            cfg,
	}, nil
}

// Run 启动服务器和后台任务，并处理优雅关机
func (s *Server) Run(stopChan chan os.Signal) {
	defer s.rabbitMQClient.Close()
	defer s.redisClient.Close()

	if err := s.janitor.Start(s.cfg.Thumbnail.ReclaimCron, s.cfg.Recycle.PurgeCron); err != nil {
		logger.Fatal("Failed to start janitor", zap.Error(err))
	}

	// 搜索索引器订阅领域事件
	go func() {
		if err := s.searchService.RunIndexer(s.rabbitMQClient); err != nil {
			logger.Error("Search indexer stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info(fmt.Sprintf("Server is running on %s", s.cfg.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-stopChan
	logger.Info("Shutting down server...")

	s.janitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
