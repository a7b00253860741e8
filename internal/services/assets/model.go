package assets

import (
	"context"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
)

// ModelService 模型容器的增删改查
type ModelService interface {
	Create(ctx context.Context, name, tags, description string) (*models.Model, error)
	// Get 返回未删除的模型，软删除的模型视为不存在
	Get(ctx context.Context, id uint64) (*models.Model, error)
	List(ctx context.Context) ([]models.Model, error)
	Update(ctx context.Context, id uint64, name, tags, description string) (*models.Model, error)
}

type modelService struct {
	modelRepo repositories.ModelRepository
	mqClient  *mq.RabbitMQClient
}

// NewModelService 创建一个新的 ModelService 实例
func NewModelService(modelRepo repositories.ModelRepository, mqClient *mq.RabbitMQClient) ModelService {
	return &modelService{
		modelRepo: modelRepo,
		mqClient:  mqClient,
	}
}

func (s *modelService) Create(ctx context.Context, name, tags, description string) (*models.Model, error) {
	if name == "" {
		return nil, xerr.ErrValidationFailed
	}
	model := &models.Model{
		Name:        name,
		Tags:        tags,
		Description: description,
	}
	if err := s.modelRepo.Create(model); err != nil {
		return nil, err
	}
	logger.Info("Create: Model created", zap.Uint64("modelID", model.ID), zap.String("name", name))
	return model, nil
}

func (s *modelService) Get(ctx context.Context, id uint64) (*models.Model, error) {
	model, err := s.modelRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if model.IsDeleted {
		return nil, xerr.ErrModelNotFound
	}
	return model, nil
}

func (s *modelService) List(ctx context.Context) ([]models.Model, error) {
	return s.modelRepo.FindAlive()
}

func (s *modelService) Update(ctx context.Context, id uint64, name, tags, description string) (*models.Model, error) {
	model, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		model.Name = name
	}
	model.Tags = tags
	model.Description = description
	if err := s.modelRepo.Update(model); err != nil {
		return nil, err
	}
	// 元数据变更也要推给索引器，搜索结果才能反映新的名称和标签
	if s.mqClient != nil {
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventModelUploaded,
			ModelID:    model.ID,
			OccurredAt: time.Now(),
		})
	}
	return model, nil
}
