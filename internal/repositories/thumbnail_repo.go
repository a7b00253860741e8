package repositories

import (
	"errors"
	"fmt"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"gorm.io/gorm"
)

// ThumbnailRepository 定义缩略图记录数据访问层接口
type ThumbnailRepository interface {
	// Upsert 按 model_version_id 覆盖写入(每个版本至多一条缩略图记录)
	Upsert(thumbnail *models.Thumbnail) error
	FindByVersionID(versionID uint64) (*models.Thumbnail, error)
	DeleteByVersionID(versionID uint64) error
}

type thumbnailRepository struct {
	db *gorm.DB
}

// NewThumbnailRepository 创建一个新的 ThumbnailRepository 实例
func NewThumbnailRepository(db *gorm.DB) ThumbnailRepository {
	return &thumbnailRepository{db: db}
}

func (r *thumbnailRepository) Upsert(thumbnail *models.Thumbnail) error {
	var existing models.Thumbnail
	err := r.db.Where("model_version_id = ?", thumbnail.ModelVersionID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.db.Create(thumbnail).Error; err != nil {
				return fmt.Errorf("failed to create thumbnail: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to look up thumbnail: %w", err)
	}

	thumbnail.ID = existing.ID
	thumbnail.CreatedAt = existing.CreatedAt
	if err := r.db.Save(thumbnail).Error; err != nil {
		return fmt.Errorf("failed to update thumbnail: %w", err)
	}
	return nil
}

func (r *thumbnailRepository) FindByVersionID(versionID uint64) (*models.Thumbnail, error) {
	var thumbnail models.Thumbnail
	err := r.db.Where("model_version_id = ?", versionID).First(&thumbnail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrThumbnailNotFound
		}
		return nil, fmt.Errorf("failed to find thumbnail: %w", err)
	}
	return &thumbnail, nil
}

func (r *thumbnailRepository) DeleteByVersionID(versionID uint64) error {
	err := r.db.Where("model_version_id = ?", versionID).Delete(&models.Thumbnail{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete thumbnail: %w", err)
	}
	return nil
}
