package assets

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
)

// renderableExtensions 能交给渲染器生成缩略图的模型格式
var renderableExtensions = map[string]bool{
	".obj":   true,
	".fbx":   true,
	".glb":   true,
	".gltf":  true,
	".blend": true,
	".stl":   true,
	".ply":   true,
	".dae":   true,
	".3ds":   true,
}

// IsRenderable 按扩展名判断文件是否支持缩略图渲染
func IsRenderable(fileName string) bool {
	return renderableExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// ThumbnailEnqueuer 上传完成后触发缩略图任务的入口
// 由缩略图队列服务实现，这里只声明依赖的最小面
type ThumbnailEnqueuer interface {
	Enqueue(ctx context.Context, modelID uint64, versionID *uint64) (*models.ThumbnailJob, error)
}

// UploadResult 一次上传的结果
type UploadResult struct {
	File          *models.File         `json:"file"`
	Deduplicated  bool                 `json:"deduplicated"`   // 内容命中去重，没有发生物理写入
	AlreadyLinked bool                 `json:"already_linked"` // 该文件本来就挂在目标版本上
	Model         *models.Model        `json:"model"`
	Version       *models.ModelVersion `json:"version"`
	JobEnqueued   bool                 `json:"job_enqueued"`
}

// UploadService 上传编排：入库 → 挂接模型/版本 → 触发渲染
type UploadService interface {
	// UploadToVersion 上传文件并挂进已有版本
	UploadToVersion(ctx context.Context, versionID uint64, reader io.Reader, fileName, declaredMime string) (*UploadResult, error)
	// UploadNewModel 上传文件并创建新模型和版本 1
	UploadNewModel(ctx context.Context, modelName string, reader io.Reader, fileName, declaredMime string) (*UploadResult, error)
}

type uploadService struct {
	contentStore ContentStoreService
	modelService ModelService
	versionSvc   VersionService
	modelRepo    repositories.ModelRepository
	versionRepo  repositories.ModelVersionRepository
	enqueuer     ThumbnailEnqueuer
	mqClient     *mq.RabbitMQClient
}

// NewUploadService 创建一个新的 UploadService 实例
func NewUploadService(
	contentStore ContentStoreService,
	modelService ModelService,
	versionSvc VersionService,
	modelRepo repositories.ModelRepository,
	versionRepo repositories.ModelVersionRepository,
	enqueuer ThumbnailEnqueuer,
	mqClient *mq.RabbitMQClient,
) UploadService {
	return &uploadService{
		contentStore: contentStore,
		modelService: modelService,
		versionSvc:   versionSvc,
		modelRepo:    modelRepo,
		versionRepo:  versionRepo,
		enqueuer:     enqueuer,
		mqClient:     mqClient,
	}
}

func (s *uploadService) UploadToVersion(ctx context.Context, versionID uint64, reader io.Reader, fileName, declaredMime string) (*UploadResult, error) {
	version, err := s.versionSvc.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	model, err := s.modelRepo.FindByID(version.ModelID)
	if err != nil {
		return nil, err
	}

	file, created, err := s.contentStore.StoreOrGet(ctx, reader, fileName, declaredMime)
	if err != nil {
		return nil, err
	}
	alreadyLinked, err := s.versionSvc.AddFileToVersion(ctx, versionID, file.ID)
	if err != nil {
		return nil, err
	}

	return s.finish(ctx, model, version, file, created, alreadyLinked, fileName)
}

func (s *uploadService) UploadNewModel(ctx context.Context, modelName string, reader io.Reader, fileName, declaredMime string) (*UploadResult, error) {
	if modelName == "" {
		modelName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	model, err := s.modelService.Create(ctx, modelName, "", "")
	if err != nil {
		return nil, err
	}
	version, err := s.versionSvc.CreateVersion(ctx, model.ID, "")
	if err != nil {
		return nil, err
	}

	file, created, err := s.contentStore.StoreOrGet(ctx, reader, fileName, declaredMime)
	if err != nil {
		return nil, err
	}
	alreadyLinked, err := s.versionSvc.AddFileToVersion(ctx, version.ID, file.ID)
	if err != nil {
		return nil, err
	}

	// 首个版本自动成为活动版本
	model.ActiveVersionID = &version.ID
	if err := s.modelRepo.Update(model); err != nil {
		return nil, err
	}

	return s.finish(ctx, model, version, file, created, alreadyLinked, fileName)
}

// finish 上传落库后的收尾：可渲染格式入队缩略图任务，发布领域事件
// 事件发布失败只记日志，不回滚已提交的上传
func (s *uploadService) finish(ctx context.Context, model *models.Model, version *models.ModelVersion, file *models.File, created, alreadyLinked bool, fileName string) (*UploadResult, error) {
	result := &UploadResult{
		File:          file,
		Deduplicated:  !created,
		AlreadyLinked: alreadyLinked,
		Model:         model,
		Version:       version,
	}

	if IsRenderable(fileName) && s.enqueuer != nil {
		versionID := version.ID
		job, err := s.enqueuer.Enqueue(ctx, model.ID, &versionID)
		if err != nil {
			logger.Error("finish: Failed to enqueue thumbnail job after upload",
				zap.Error(err), zap.Uint64("modelID", model.ID), zap.Uint64("versionID", version.ID))
		} else if job != nil {
			result.JobEnqueued = true
		}
	}

	if s.mqClient != nil {
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventModelUploaded,
			ModelID:    model.ID,
			VersionID:  version.ID,
			FileID:     file.ID,
			OccurredAt: time.Now(),
		})
	}

	logger.Info("Upload finished",
		zap.Uint64("modelID", model.ID), zap.Uint64("versionID", version.ID),
		zap.Uint64("fileID", file.ID), zap.Bool("deduplicated", !created))
	return result, nil
}
