package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecycledFileRepository 定义回收站记录的数据访问层接口
type RecycledFileRepository interface {
	Create(recycled *models.RecycledFile) error
	// FindByFileID 按文件 ID 查找回收记录，不存在时返回 (nil, nil)
	FindByFileID(fileID uint64) (*models.RecycledFile, error)
	// FindDue 查找宽限期已到、可以物理清除的记录
	FindDue(now time.Time) ([]models.RecycledFile, error)
	List(page, pageSize int) ([]models.RecycledFile, int64, error)
	Delete(id uint64) error
}

type recycledFileRepository struct {
	db *gorm.DB
}

// NewRecycledFileRepository 创建一个新的 RecycledFileRepository 实例
func NewRecycledFileRepository(db *gorm.DB) RecycledFileRepository {
	return &recycledFileRepository{db: db}
}

func (r *recycledFileRepository) Create(recycled *models.RecycledFile) error {
	err := r.db.Create(recycled).Error
	if err != nil {
		logger.Error("Create: Failed to create recycled file record in DB", zap.Error(err), zap.Uint64("fileID", recycled.FileID))
		return fmt.Errorf("failed to create recycled file record: %w", err)
	}
	return nil
}

func (r *recycledFileRepository) FindByFileID(fileID uint64) (*models.RecycledFile, error) {
	var recycled models.RecycledFile
	err := r.db.Where("file_id = ?", fileID).First(&recycled).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recycled file record: %w", err)
	}
	return &recycled, nil
}

func (r *recycledFileRepository) FindDue(now time.Time) ([]models.RecycledFile, error) {
	var due []models.RecycledFile
	err := r.db.Where("scheduled_deletion_at <= ?", now).Order("scheduled_deletion_at ASC").Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find due recycled files: %w", err)
	}
	return due, nil
}

func (r *recycledFileRepository) List(page, pageSize int) ([]models.RecycledFile, int64, error) {
	var records []models.RecycledFile
	var total int64

	if err := r.db.Model(&models.RecycledFile{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recycled files: %w", err)
	}
	err := r.db.Order("recycled_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recycled files: %w", err)
	}
	return records, total, nil
}

func (r *recycledFileRepository) Delete(id uint64) error {
	err := r.db.Delete(&models.RecycledFile{}, id).Error
	if err != nil {
		logger.Error("Delete: Failed to delete recycled file record in DB", zap.Error(err), zap.Uint64("id", id))
		return fmt.Errorf("failed to delete recycled file record: %w", err)
	}
	return nil
}
