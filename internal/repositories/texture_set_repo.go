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

// TextureSetRepository 定义贴图集数据访问层接口
type TextureSetRepository interface {
	Create(set *models.TextureSet) error
	FindByID(id uint64) (*models.TextureSet, error)
	FindAlive() ([]models.TextureSet, error)
	Update(set *models.TextureSet) error
	SoftDelete(id uint64, now time.Time) error
	Restore(id uint64) error

	// 贴图操作："每个规范化类型至多一张" 的替换逻辑在服务层完成
	CreateTexture(texture *models.Texture) error
	FindTextures(setID uint64) ([]models.Texture, error)
	// FindTextureByCanonicalTypes 查找指定类型集合中的贴图(用于重复类型替换)
	FindTextureByCanonicalTypes(setID uint64, types []models.TextureType) (*models.Texture, error)
	DeleteTexture(textureID uint64) error

	// 贴图集与模型版本的关联
	AssociateVersion(setID, versionID uint64) error
	DisassociateVersion(setID, versionID uint64) error
	VersionAssociationExists(setID, versionID uint64) (bool, error)
	FindSetsByVersion(versionID uint64) ([]models.TextureSet, error)
}

type textureSetRepository struct {
	db *gorm.DB
}

// NewTextureSetRepository 创建一个新的 TextureSetRepository 实例
func NewTextureSetRepository(db *gorm.DB) TextureSetRepository {
	return &textureSetRepository{db: db}
}

func (r *textureSetRepository) Create(set *models.TextureSet) error {
	err := r.db.Create(set).Error
	if err != nil {
		logger.Error("Create: Failed to create texture set in DB", zap.Error(err), zap.String("name", set.Name))
		return fmt.Errorf("failed to create texture set: %w", err)
	}
	return nil
}

func (r *textureSetRepository) FindByID(id uint64) (*models.TextureSet, error) {
	var set models.TextureSet
	err := r.db.First(&set, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrTextureSetNotFound
		}
		return nil, fmt.Errorf("failed to find texture set: %w", err)
	}
	return &set, nil
}

func (r *textureSetRepository) FindAlive() ([]models.TextureSet, error) {
	var sets []models.TextureSet
	err := r.db.Where("is_deleted = ?", false).Order("updated_at DESC").Find(&sets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list texture sets: %w", err)
	}
	return sets, nil
}

func (r *textureSetRepository) Update(set *models.TextureSet) error {
	err := r.db.Save(set).Error
	if err != nil {
		return fmt.Errorf("failed to update texture set: %w", err)
	}
	return nil
}

func (r *textureSetRepository) SoftDelete(id uint64, now time.Time) error {
	return r.db.Model(&models.TextureSet{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_at": now}).Error
}

func (r *textureSetRepository) Restore(id uint64) error {
	return r.db.Model(&models.TextureSet{}).Where("id = ?", id).
		Updates(map[string]any{"is_deleted": false, "deleted_at": nil}).Error
}

func (r *textureSetRepository) CreateTexture(texture *models.Texture) error {
	err := r.db.Create(texture).Error
	if err != nil {
		logger.Error("CreateTexture: Failed to create texture in DB", zap.Error(err), zap.Uint64("setID", texture.TextureSetID))
		return fmt.Errorf("failed to create texture: %w", err)
	}
	return nil
}

func (r *textureSetRepository) FindTextures(setID uint64) ([]models.Texture, error) {
	var textures []models.Texture
	err := r.db.Preload("File").Where("texture_set_id = ?", setID).Order("texture_type ASC").Find(&textures).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find textures: %w", err)
	}
	return textures, nil
}

func (r *textureSetRepository) FindTextureByCanonicalTypes(setID uint64, types []models.TextureType) (*models.Texture, error) {
	var texture models.Texture
	err := r.db.Where("texture_set_id = ? AND texture_type IN ?", setID, types).First(&texture).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find texture by type: %w", err)
	}
	return &texture, nil
}

func (r *textureSetRepository) DeleteTexture(textureID uint64) error {
	err := r.db.Delete(&models.Texture{}, textureID).Error
	if err != nil {
		return fmt.Errorf("failed to delete texture: %w", err)
	}
	return nil
}

func (r *textureSetRepository) AssociateVersion(setID, versionID uint64) error {
	link := models.ModelVersionTextureSet{ModelVersionID: versionID, TextureSetID: setID}
	if err := r.db.Create(&link).Error; err != nil {
		return fmt.Errorf("failed to associate texture set with version: %w", err)
	}
	return nil
}

func (r *textureSetRepository) DisassociateVersion(setID, versionID uint64) error {
	err := r.db.Where("texture_set_id = ? AND model_version_id = ?", setID, versionID).
		Delete(&models.ModelVersionTextureSet{}).Error
	if err != nil {
		return fmt.Errorf("failed to disassociate texture set from version: %w", err)
	}
	return nil
}

func (r *textureSetRepository) VersionAssociationExists(setID, versionID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.ModelVersionTextureSet{}).
		Where("texture_set_id = ? AND model_version_id = ?", setID, versionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check texture set association: %w", err)
	}
	return count > 0, nil
}

func (r *textureSetRepository) FindSetsByVersion(versionID uint64) ([]models.TextureSet, error) {
	var sets []models.TextureSet
	err := r.db.Model(&models.TextureSet{}).
		Joins("JOIN model_version_texture_sets ON model_version_texture_sets.texture_set_id = texture_sets.id").
		Where("model_version_texture_sets.model_version_id = ? AND texture_sets.is_deleted = ?", versionID, false).
		Find(&sets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find texture sets for version: %w", err)
	}
	return sets, nil
}
