package router

import (
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/handlers"
	"github.com/modelibr/modelibr/internal/pkg/cache"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/search"
	"github.com/modelibr/modelibr/internal/services/assets"
	"github.com/modelibr/modelibr/internal/services/thumbnail"
	"gorm.io/gorm"
)

// RouterConfig 包含初始化路由所需的所有依赖
type RouterConfig struct {
	db          *gorm.DB
	redisClient *redis.Client
	store       storage.BlobStore
	mqClient    *mq.RabbitMQClient
	esClient    *elasticsearch.Client
	cfg         *config.Config
}

func NewRouterConfig(
	db *gorm.DB,
	redisClient *redis.Client,
	store storage.BlobStore,
	mqClient *mq.RabbitMQClient,
	esClient *elasticsearch.Client,
	cfg *config.Config,
) *RouterConfig {
	return &RouterConfig{
		db:          db,
		redisClient: redisClient,
		store:       store,
		mqClient:    mqClient,
		esClient:    esClient,
		cfg:         cfg,
	}
}

func InitRouter(routerCfg *RouterConfig) *gin.Engine {
	if routerCfg.cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Health Check 路由
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// 仓储层：文件仓储套一层 Redis 缓存装饰器
	var fileRepo repositories.FileRepository = repositories.NewFileRepository(routerCfg.db)
	if routerCfg.redisClient != nil {
		cacheService := cache.NewRedisCache(routerCfg.redisClient)
		fileRepo = repositories.NewCachedFileRepository(fileRepo, cacheService)
	}
	modelRepo := repositories.NewModelRepository(routerCfg.db)
	versionRepo := repositories.NewModelVersionRepository(routerCfg.db)
	setRepo := repositories.NewTextureSetRepository(routerCfg.db)
	thumbnailRepo := repositories.NewThumbnailRepository(routerCfg.db)
	jobRepo := repositories.NewThumbnailJobRepository(routerCfg.db)
	recycledRepo := repositories.NewRecycledFileRepository(routerCfg.db)
	packRepo := repositories.NewPackRepository(routerCfg.db)
	projectRepo := repositories.NewProjectRepository(routerCfg.db)

	// 服务层
	tm := assets.NewTransactionManager(routerCfg.db)
	contentStore := assets.NewContentStoreService(fileRepo, tm, routerCfg.store)
	modelService := assets.NewModelService(modelRepo, routerCfg.mqClient)
	versionService := assets.NewVersionService(modelRepo, versionRepo, fileRepo, tm)
	setService := assets.NewTextureSetService(setRepo, versionRepo, fileRepo, tm)
	gracePeriod := time.Duration(routerCfg.cfg.Recycle.GraceHours) * time.Hour
	lifecycleService := assets.NewLifecycleService(
		modelRepo, versionRepo, fileRepo, recycledRepo, tm, routerCfg.store, routerCfg.mqClient, gracePeriod)
	queueService := thumbnail.NewQueueService(jobRepo, tm, routerCfg.mqClient, routerCfg.cfg.Thumbnail.LockTimeoutMinutes)
	uploadService := assets.NewUploadService(
		contentStore, modelService, versionService, modelRepo, versionRepo, queueService, routerCfg.mqClient)
	packService := assets.NewPackService(packRepo, projectRepo, modelRepo, setRepo)
	archiveService := assets.NewArchiveService(packService, modelRepo, versionRepo, setRepo, routerCfg.store)
	searchService := search.NewService(routerCfg.esClient, modelRepo)

	v1 := router.Group("/api/v1")
	{
		modelGroup := v1.Group("/models")
		{
			modelGroup.POST("", handlers.CreateModel(modelService))
			modelGroup.GET("", handlers.ListModels(modelService))
			modelGroup.GET("/search", handlers.SearchModels(searchService))
			modelGroup.POST("/upload", handlers.UploadModel(uploadService))
			modelGroup.GET("/:model_id", handlers.GetModel(modelService))
			modelGroup.PUT("/:model_id", handlers.UpdateModel(modelService))
			modelGroup.DELETE("/:model_id", handlers.SoftDeleteModel(lifecycleService))
			modelGroup.PUT("/:model_id/restore", handlers.RestoreModel(lifecycleService))
			modelGroup.DELETE("/:model_id/permanent", handlers.PermanentDeleteModel(lifecycleService))

			modelGroup.POST("/:model_id/versions", handlers.CreateVersion(versionService))
			modelGroup.GET("/:model_id/versions", handlers.ListVersions(versionService))
			modelGroup.PUT("/:model_id/versions/reorder", handlers.ReorderVersions(versionService))
			modelGroup.PUT("/:model_id/versions/:version_id/active", handlers.SetActiveVersion(versionService))
		}

		versionGroup := v1.Group("/versions")
		{
			versionGroup.POST("/:version_id/files", handlers.AddFileToVersion(versionService))
			versionGroup.GET("/:version_id/files", handlers.ListVersionFiles(versionService))
			versionGroup.POST("/:version_id/upload", handlers.UploadToVersion(uploadService))
			versionGroup.DELETE("/:version_id", handlers.SoftDeleteVersion(lifecycleService))
			versionGroup.PUT("/:version_id/restore", handlers.RestoreVersion(lifecycleService))
			versionGroup.DELETE("/:version_id/permanent", handlers.PermanentDeleteVersion(lifecycleService))

			versionGroup.GET("/:version_id/texture-sets", handlers.ListVersionTextureSets(setService))
			versionGroup.PUT("/:version_id/texture-sets/:set_id/default", handlers.SetVersionDefaultTextureSet(setService))
			versionGroup.GET("/:version_id/thumbnail", handlers.GetThumbnail(thumbnailRepo))
			versionGroup.GET("/:version_id/thumbnail/file", handlers.GetThumbnailFile(thumbnailRepo, routerCfg.store))
		}

		fileGroup := v1.Group("/files")
		{
			fileGroup.GET("/download/:file_id", handlers.DownloadFile(contentStore))
			fileGroup.GET("/recyclebin", handlers.ListRecycleBin(lifecycleService))
			fileGroup.PUT("/restore/:file_id", handlers.RestoreRecycledFile(lifecycleService))
		}

		setGroup := v1.Group("/texture-sets")
		{
			setGroup.POST("", handlers.CreateTextureSet(setService))
			setGroup.GET("", handlers.ListTextureSets(setService))
			setGroup.GET("/:set_id", handlers.GetTextureSet(setService))
			setGroup.PUT("/:set_id", handlers.UpdateTextureSet(setService))
			setGroup.DELETE("/:set_id", handlers.DeleteTextureSet(setService))
			setGroup.POST("/:set_id/textures", handlers.AddTexture(setService))
			setGroup.DELETE("/:set_id/textures/:texture_id", handlers.RemoveTexture(setService))
			setGroup.POST("/:set_id/versions", handlers.AssociateTextureSetVersion(setService))
			setGroup.DELETE("/:set_id/versions/:version_id", handlers.DisassociateTextureSetVersion(setService))
		}

		jobGroup := v1.Group("/thumbnail-jobs")
		{
			jobGroup.POST("", handlers.EnqueueThumbnailJob(queueService))
			jobGroup.GET("/:job_id", handlers.GetThumbnailJob(queueService))
			jobGroup.GET("/:job_id/events", handlers.ListThumbnailJobEvents(queueService))
		}

		packGroup := v1.Group("/packs")
		{
			packGroup.POST("", handlers.CreatePack(packService))
			packGroup.GET("", handlers.ListPacks(packService))
			packGroup.GET("/:pack_id", handlers.GetPack(packService))
			packGroup.PUT("/:pack_id", handlers.UpdatePack(packService))
			packGroup.DELETE("/:pack_id", handlers.DeletePack(packService))
			packGroup.GET("/:pack_id/archive", handlers.DownloadPackArchive(archiveService))
			packGroup.POST("/:pack_id/models", handlers.AddModelToPack(packService))
			packGroup.DELETE("/:pack_id/models/:model_id", handlers.RemoveModelFromPack(packService))
			packGroup.POST("/:pack_id/texture-sets", handlers.AddTextureSetToPack(packService))
			packGroup.DELETE("/:pack_id/texture-sets/:set_id", handlers.RemoveTextureSetFromPack(packService))
		}

		projectGroup := v1.Group("/projects")
		{
			projectGroup.POST("", handlers.CreateProject(packService))
			projectGroup.GET("", handlers.ListProjects(packService))
			projectGroup.GET("/:project_id", handlers.GetProject(packService))
			projectGroup.PUT("/:project_id", handlers.UpdateProject(packService))
			projectGroup.DELETE("/:project_id", handlers.DeleteProject(packService))
			projectGroup.POST("/:project_id/models", handlers.AddModelToProject(packService))
			projectGroup.DELETE("/:project_id/models/:model_id", handlers.RemoveModelFromProject(packService))
			projectGroup.POST("/:project_id/texture-sets", handlers.AddTextureSetToProject(packService))
			projectGroup.DELETE("/:project_id/texture-sets/:set_id", handlers.RemoveTextureSetFromProject(packService))
		}
	}

	return router
}
