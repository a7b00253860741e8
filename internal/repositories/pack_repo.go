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

// PackRepository 定义资产包的数据访问层接口
// Pack 和 Project 表结构相同，靠同一套实现加表名区分会让调用方付出类型安全
// 的代价，这里选择两组显式方法
type PackRepository interface {
	Create(pack *models.Pack) error
	FindByID(id uint64) (*models.Pack, error)
	FindAlive(page, pageSize int) ([]models.Pack, int64, error)
	Update(pack *models.Pack) error

	// AddModel 把模型关联进包，已存在时返回 alreadyLinked=true 且不报错
	AddModel(packID, modelID uint64) (alreadyLinked bool, err error)
	RemoveModel(packID, modelID uint64) error
	FindModelIDs(packID uint64) ([]uint64, error)

	AddTextureSet(packID, setID uint64) (alreadyLinked bool, err error)
	RemoveTextureSet(packID, setID uint64) error
	FindTextureSetIDs(packID uint64) ([]uint64, error)
}

// ProjectRepository 定义项目的数据访问层接口
type ProjectRepository interface {
	Create(project *models.Project) error
	FindByID(id uint64) (*models.Project, error)
	FindAlive(page, pageSize int) ([]models.Project, int64, error)
	Update(project *models.Project) error

	AddModel(projectID, modelID uint64) (alreadyLinked bool, err error)
	RemoveModel(projectID, modelID uint64) error
	FindModelIDs(projectID uint64) ([]uint64, error)

	AddTextureSet(projectID, setID uint64) (alreadyLinked bool, err error)
	RemoveTextureSet(projectID, setID uint64) error
	FindTextureSetIDs(projectID uint64) ([]uint64, error)
}

type packRepository struct {
	db *gorm.DB
}

// NewPackRepository 创建一个新的 PackRepository 实例
func NewPackRepository(db *gorm.DB) PackRepository {
	return &packRepository{db: db}
}

func (r *packRepository) Create(pack *models.Pack) error {
	err := r.db.Create(pack).Error
	if err != nil {
		logger.Error("Create: Failed to create pack in DB", zap.Error(err), zap.String("name", pack.Name))
		return fmt.Errorf("failed to create pack: %w", err)
	}
	return nil
}

func (r *packRepository) FindByID(id uint64) (*models.Pack, error) {
	var pack models.Pack
	err := r.db.First(&pack, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrPackNotFound
		}
		return nil, fmt.Errorf("failed to find pack: %w", err)
	}
	return &pack, nil
}

func (r *packRepository) FindAlive(page, pageSize int) ([]models.Pack, int64, error) {
	var packs []models.Pack
	var total int64

	base := r.db.Model(&models.Pack{}).Where("is_deleted = ?", false)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count packs: %w", err)
	}
	err := base.Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&packs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list packs: %w", err)
	}
	return packs, total, nil
}

func (r *packRepository) Update(pack *models.Pack) error {
	err := r.db.Save(pack).Error
	if err != nil {
		logger.Error("Update: Failed to update pack in DB", zap.Error(err), zap.Uint64("packID", pack.ID))
		return fmt.Errorf("failed to update pack: %w", err)
	}
	return nil
}

func (r *packRepository) AddModel(packID, modelID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.PackModel{}).
		Where("pack_id = ? AND model_id = ?", packID, modelID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pack model link: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	link := models.PackModel{PackID: packID, ModelID: modelID}
	if err := r.db.Create(&link).Error; err != nil {
		logger.Error("AddModel: Failed to link model to pack", zap.Error(err), zap.Uint64("packID", packID), zap.Uint64("modelID", modelID))
		return false, fmt.Errorf("failed to link model to pack: %w", err)
	}
	return false, nil
}

func (r *packRepository) RemoveModel(packID, modelID uint64) error {
	err := r.db.Where("pack_id = ? AND model_id = ?", packID, modelID).
		Delete(&models.PackModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink model from pack: %w", err)
	}
	return nil
}

func (r *packRepository) FindModelIDs(packID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&models.PackModel{}).
		Where("pack_id = ?", packID).
		Order("id ASC").
		Pluck("model_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pack models: %w", err)
	}
	return ids, nil
}

func (r *packRepository) AddTextureSet(packID, setID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.PackTextureSet{}).
		Where("pack_id = ? AND texture_set_id = ?", packID, setID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pack texture set link: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	link := models.PackTextureSet{PackID: packID, TextureSetID: setID}
	if err := r.db.Create(&link).Error; err != nil {
		logger.Error("AddTextureSet: Failed to link texture set to pack", zap.Error(err), zap.Uint64("packID", packID), zap.Uint64("setID", setID))
		return false, fmt.Errorf("failed to link texture set to pack: %w", err)
	}
	return false, nil
}

func (r *packRepository) RemoveTextureSet(packID, setID uint64) error {
	err := r.db.Where("pack_id = ? AND texture_set_id = ?", packID, setID).
		Delete(&models.PackTextureSet{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink texture set from pack: %w", err)
	}
	return nil
}

func (r *packRepository) FindTextureSetIDs(packID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&models.PackTextureSet{}).
		Where("pack_id = ?", packID).
		Order("id ASC").
		Pluck("texture_set_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pack texture sets: %w", err)
	}
	return ids, nil
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建一个新的 ProjectRepository 实例
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(project *models.Project) error {
	err := r.db.Create(project).Error
	if err != nil {
		logger.Error("Create: Failed to create project in DB", zap.Error(err), zap.String("name", project.Name))
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepository) FindByID(id uint64) (*models.Project, error) {
	var project models.Project
	err := r.db.First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return &project, nil
}

func (r *projectRepository) FindAlive(page, pageSize int) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	base := r.db.Model(&models.Project{}).Where("is_deleted = ?", false)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}
	err := base.Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

func (r *projectRepository) Update(project *models.Project) error {
	err := r.db.Save(project).Error
	if err != nil {
		logger.Error("Update: Failed to update project in DB", zap.Error(err), zap.Uint64("projectID", project.ID))
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (r *projectRepository) AddModel(projectID, modelID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.ProjectModel{}).
		Where("project_id = ? AND model_id = ?", projectID, modelID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check project model link: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	link := models.ProjectModel{ProjectID: projectID, ModelID: modelID}
	if err := r.db.Create(&link).Error; err != nil {
		logger.Error("AddModel: Failed to link model to project", zap.Error(err), zap.Uint64("projectID", projectID), zap.Uint64("modelID", modelID))
		return false, fmt.Errorf("failed to link model to project: %w", err)
	}
	return false, nil
}

func (r *projectRepository) RemoveModel(projectID, modelID uint64) error {
	err := r.db.Where("project_id = ? AND model_id = ?", projectID, modelID).
		Delete(&models.ProjectModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink model from project: %w", err)
	}
	return nil
}

func (r *projectRepository) FindModelIDs(projectID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&models.ProjectModel{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("model_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list project models: %w", err)
	}
	return ids, nil
}

func (r *projectRepository) AddTextureSet(projectID, setID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.ProjectTextureSet{}).
		Where("project_id = ? AND texture_set_id = ?", projectID, setID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check project texture set link: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	link := models.ProjectTextureSet{ProjectID: projectID, TextureSetID: setID}
	if err := r.db.Create(&link).Error; err != nil {
		logger.Error("AddTextureSet: Failed to link texture set to project", zap.Error(err), zap.Uint64("projectID", projectID), zap.Uint64("setID", setID))
		return false, fmt.Errorf("failed to link texture set to project: %w", err)
	}
	return false, nil
}

func (r *projectRepository) RemoveTextureSet(projectID, setID uint64) error {
	err := r.db.Where("project_id = ? AND texture_set_id = ?", projectID, setID).
		Delete(&models.ProjectTextureSet{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink texture set from project: %w", err)
	}
	return nil
}

func (r *projectRepository) FindTextureSetIDs(projectID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.Model(&models.ProjectTextureSet{}).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Pluck("texture_set_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list project texture sets: %w", err)
	}
	return ids, nil
}
