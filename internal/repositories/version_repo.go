package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModelVersionRepository 定义模型版本数据访问层接口
type ModelVersionRepository interface {
	Create(version *models.ModelVersion) error
	FindByID(id uint64) (*models.ModelVersion, error)
	// FindByModelID 按 version_number 降序返回，includeDeleted 控制是否含软删除行
	FindByModelID(modelID uint64, includeDeleted bool) ([]models.ModelVersion, error)
	// MaxVersionNumber 包含软删除行：版本号永不复用
	MaxVersionNumber(modelID uint64) (int, error)
	// FindLatestAlive 未删除版本中 version_number 最大的一个，不存在时返回 nil
	FindLatestAlive(modelID uint64) (*models.ModelVersion, error)
	CountAlive(modelID uint64) (int64, error)
	Update(version *models.ModelVersion) error
	SoftDelete(id uint64, now time.Time) error
	Restore(id uint64) error
	HardDelete(id uint64) error

	// 版本与文件的关联
	AddFile(versionID, fileID uint64) (alreadyLinked bool, err error)
	FindFiles(versionID uint64) ([]models.File, error)
	FindFileLinks(versionID uint64) ([]models.ModelVersionFile, error)
	RemoveFileLinks(versionID uint64) error
}

type modelVersionRepository struct {
	db *gorm.DB
}

// NewModelVersionRepository 创建一个新的 ModelVersionRepository 实例
func NewModelVersionRepository(db *gorm.DB) ModelVersionRepository {
	return &modelVersionRepository{db: db}
}

func (r *modelVersionRepository) Create(version *models.ModelVersion) error {
	err := r.db.Create(version).Error
	if err != nil {
		logger.Error("Create: Failed to create model version in DB", zap.Error(err), zap.Uint64("modelID", version.ModelID))
		return fmt.Errorf("failed to create model version: %w", err)
	}
	return nil
}

func (r *modelVersionRepository) FindByID(id uint64) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := r.db.First(&version, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to find model version: %w", err)
	}
	return &version, nil
}

func (r *modelVersionRepository) FindByModelID(modelID uint64, includeDeleted bool) ([]models.ModelVersion, error) {
	var versions []models.ModelVersion
	query := r.db.Where("model_id = ?", modelID)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	err := query.Order("version_number DESC").Find(&versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find model versions: %w", err)
	}
	return versions, nil
}

func (r *modelVersionRepository) MaxVersionNumber(modelID uint64) (int, error) {
	var maxNumber *int
	err := r.db.Model(&models.ModelVersion{}).
		Where("model_id = ?", modelID).
		Select("MAX(version_number)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute max version number: %w", err)
	}
	if maxNumber == nil {
		return 0, nil
	}
	return *maxNumber, nil
}

func (r *modelVersionRepository) FindLatestAlive(modelID uint64) (*models.ModelVersion, error) {
	var version models.ModelVersion
	err := r.db.Where("model_id = ? AND is_deleted = ?", modelID, false).
		Order("version_number DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest version: %w", err)
	}
	return &version, nil
}

func (r *modelVersionRepository) CountAlive(modelID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.ModelVersion{}).
		Where("model_id = ? AND is_deleted = ?", modelID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}

func (r *modelVersionRepository) Update(version *models.ModelVersion) error {
	err := r.db.Save(version).Error
	if err != nil {
		logger.Error("Update: Failed to update model version in DB", zap.Error(err), zap.Uint64("versionID", version.ID))
		return fmt.Errorf("failed to update model version: %w", err)
	}
	return nil
}

func (r *modelVersionRepository) SoftDelete(id uint64, now time.Time) error {
	return r.db.Model(&models.ModelVersion{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": now}).Error
}

func (r *modelVersionRepository) Restore(id uint64) error {
	return r.db.Model(&models.ModelVersion{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": false, "deleted_at": nil}).Error
}

func (r *modelVersionRepository) HardDelete(id uint64) error {
	err := r.db.Delete(&models.ModelVersion{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to permanently delete model version: %w", err)
	}
	return nil
}

func (r *modelVersionRepository) AddFile(versionID, fileID uint64) (bool, error) {
	var existing models.ModelVersionFile
	err := r.db.Where("model_version_id = ? AND file_id = ?", versionID, fileID).First(&existing).Error
	if err == nil {
		return true, nil // 关联已存在，保持幂等
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to check version file link: %w", err)
	}

	link := models.ModelVersionFile{ModelVersionID: versionID, FileID: fileID}
	if err := r.db.Create(&link).Error; err != nil {
		logger.Error("AddFile: Failed to link file to version", zap.Uint64("versionID", versionID), zap.Uint64("fileID", fileID), zap.Error(err))
		return false, fmt.Errorf("failed to link file to version: %w", err)
	}
	return false, nil
}

func (r *modelVersionRepository) FindFiles(versionID uint64) ([]models.File, error) {
	var files []models.File
	err := r.db.Model(&models.File{}).
		Joins("JOIN model_version_files ON model_version_files.file_id = files.id").
		Where("model_version_files.model_version_id = ?", versionID).
		Order("model_version_files.id ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find version files: %w", err)
	}
	return files, nil
}

func (r *modelVersionRepository) FindFileLinks(versionID uint64) ([]models.ModelVersionFile, error) {
	var links []models.ModelVersionFile
	err := r.db.Where("model_version_id = ?", versionID).Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find version file links: %w", err)
	}
	return links, nil
}

func (r *modelVersionRepository) RemoveFileLinks(versionID uint64) error {
	err := r.db.Where("model_version_id = ?", versionID).Delete(&models.ModelVersionFile{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove version file links: %w", err)
	}
	return nil
}
