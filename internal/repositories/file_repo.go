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

// FileRepository 定义文件数据访问层接口
// 文件行一旦写入不再修改内容字段，只有生命周期标记会变化
type FileRepository interface {
	Create(file *models.File) error

	FindByID(id uint64) (*models.File, error)
	// FindBySha256Hash 按内容哈希查找，包含软删除行(哈希列有唯一约束)
	FindBySha256Hash(sha256Hash string) (*models.File, error)
	FindDeleted() ([]models.File, error)

	Update(file *models.File) error
	SoftDelete(id uint64, now time.Time) error
	Restore(id uint64) error
	HardDelete(id uint64) error

	// CountLiveReferences 统计有多少个未删除版本仍引用该文件
	// excludeVersionID 非 0 时排除指定版本
	CountLiveReferences(fileID uint64, excludeVersionID uint64) (int64, error)
	// CountLiveTextureReferences 统计有多少个未删除贴图集的贴图仍包装该文件
	CountLiveTextureReferences(fileID uint64) (int64, error)
}

type dbFileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个直接访问数据库的 FileRepository 实例
func NewFileRepository(db *gorm.DB) FileRepository {
	return &dbFileRepository{db: db}
}

func (r *dbFileRepository) Create(file *models.File) error {
	err := r.db.Create(file).Error
	if err != nil {
		logger.Error("Create: Failed to create file in DB", zap.Error(err), zap.String("sha256", file.Sha256Hash))
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) FindByID(id uint64) (*models.File, error) {
	var file models.File
	err := r.db.First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindBySha256Hash(sha256Hash string) (*models.File, error) {
	var file models.File
	err := r.db.Where("sha256_hash = ?", sha256Hash).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrFileNotFound
		}
		logger.Error("FindBySha256Hash: query failed", zap.String("sha256", sha256Hash), zap.Error(err))
		return nil, fmt.Errorf("failed to find file by hash: %w", err)
	}
	return &file, nil
}

func (r *dbFileRepository) FindDeleted() ([]models.File, error) {
	var files []models.File
	err := r.db.Where("is_deleted = ?", true).Order("deleted_at DESC").Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find deleted files: %w", err)
	}
	return files, nil
}

func (r *dbFileRepository) Update(file *models.File) error {
	err := r.db.Save(file).Error
	if err != nil {
		logger.Error("Update: Failed to update file in DB", zap.Error(err), zap.Uint64("fileID", file.ID))
		return fmt.Errorf("failed to update file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) SoftDelete(id uint64, now time.Time) error {
	return r.db.Model(&models.File{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": now}).Error
}

func (r *dbFileRepository) Restore(id uint64) error {
	return r.db.Model(&models.File{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": false, "deleted_at": nil}).Error
}

func (r *dbFileRepository) HardDelete(id uint64) error {
	err := r.db.Delete(&models.File{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to permanently delete file: %w", err)
	}
	return nil
}

func (r *dbFileRepository) CountLiveReferences(fileID uint64, excludeVersionID uint64) (int64, error) {
	var count int64
	query := r.db.Model(&models.ModelVersionFile{}).
		Joins("JOIN model_versions ON model_versions.id = model_version_files.model_version_id").
		Where("model_version_files.file_id = ? AND model_versions.is_deleted = ?", fileID, false)
	if excludeVersionID != 0 {
		query = query.Where("model_version_files.model_version_id != ?", excludeVersionID)
	}
	err := query.Count(&count).Error
	if err != nil {
		logger.Error("CountLiveReferences: query failed", zap.Uint64("fileID", fileID), zap.Error(err))
		return 0, fmt.Errorf("failed to count file references: %w", err)
	}
	return count, nil
}

func (r *dbFileRepository) CountLiveTextureReferences(fileID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Texture{}).
		Joins("JOIN texture_sets ON texture_sets.id = textures.texture_set_id").
		Where("textures.file_id = ? AND texture_sets.is_deleted = ?", fileID, false).
		Count(&count).Error
	if err != nil {
		logger.Error("CountLiveTextureReferences: query failed", zap.Uint64("fileID", fileID), zap.Error(err))
		return 0, fmt.Errorf("failed to count texture references: %w", err)
	}
	return count, nil
}
