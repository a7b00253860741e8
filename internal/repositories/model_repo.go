package repositories

import (
	"errors"
	"fmt"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModelRepository 定义模型数据访问层接口
type ModelRepository interface {
	Create(model *models.Model) error
	// FindByID 返回指定模型，包含软删除行，调用方自行检查生命周期
	FindByID(id uint64) (*models.Model, error)
	FindAlive() ([]models.Model, error)
	FindDeleted() ([]models.Model, error)
	// SearchByKeyword 数据库侧的模糊检索，ES 不可用时的退化路径
	SearchByKeyword(keyword string) ([]models.Model, error)
	Update(model *models.Model) error
	HardDelete(id uint64) error

	// 遗留散文件关联：版本功能之前直接挂在模型上的文件
	FindLooseFiles(modelID uint64) ([]models.ModelFile, error)
	DeleteLooseFiles(modelID uint64) error
}

type modelRepository struct {
	db *gorm.DB
}

// NewModelRepository 创建一个新的 ModelRepository 实例
func NewModelRepository(db *gorm.DB) ModelRepository {
	return &modelRepository{db: db}
}

func (r *modelRepository) Create(model *models.Model) error {
	err := r.db.Create(model).Error
	if err != nil {
		logger.Error("Create: Failed to create model in DB", zap.Error(err), zap.String("name", model.Name))
		return fmt.Errorf("failed to create model: %w", err)
	}
	return nil
}

func (r *modelRepository) FindByID(id uint64) (*models.Model, error) {
	var model models.Model
	err := r.db.First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to find model: %w", err)
	}
	return &model, nil
}

func (r *modelRepository) FindAlive() ([]models.Model, error) {
	var result []models.Model
	err := r.db.Where("is_deleted = ?", false).Order("updated_at DESC").Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return result, nil
}

func (r *modelRepository) FindDeleted() ([]models.Model, error) {
	var result []models.Model
	err := r.db.Where("is_deleted = ?", true).Order("deleted_at DESC").Find(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted models: %w", err)
	}
	return result, nil
}

func (r *modelRepository) SearchByKeyword(keyword string) ([]models.Model, error) {
	var result []models.Model
	pattern := "%" + keyword + "%"
	err := r.db.Where("is_deleted = ?", false).
		Where("name LIKE ? OR tags LIKE ? OR description LIKE ?", pattern, pattern, pattern).
		Order("updated_at DESC").
		Find(&result).Error
	if err != nil {
		logger.Error("SearchByKeyword: query failed", zap.String("keyword", keyword), zap.Error(err))
		return nil, fmt.Errorf("failed to search models: %w", err)
	}
	return result, nil
}

func (r *modelRepository) Update(model *models.Model) error {
	err := r.db.Save(model).Error
	if err != nil {
		logger.Error("Update: Failed to update model in DB", zap.Error(err), zap.Uint64("modelID", model.ID))
		return fmt.Errorf("failed to update model: %w", err)
	}
	return nil
}

func (r *modelRepository) HardDelete(id uint64) error {
	err := r.db.Delete(&models.Model{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to permanently delete model: %w", err)
	}
	return nil
}

func (r *modelRepository) FindLooseFiles(modelID uint64) ([]models.ModelFile, error) {
	var rows []models.ModelFile
	err := r.db.Where("model_id = ?", modelID).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find loose model files: %w", err)
	}
	return rows, nil
}

func (r *modelRepository) DeleteLooseFiles(modelID uint64) error {
	err := r.db.Where("model_id = ?", modelID).Delete(&models.ModelFile{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete loose model files: %w", err)
	}
	return nil
}
