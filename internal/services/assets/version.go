package assets

import (
	"context"
	"fmt"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VersionService 模型版本图的操作
// 版本号同一模型内单调递增且永不复用，展示顺序与 "最新版本" 语义无关
type VersionService interface {
	// CreateVersion 创建新版本；首次给遗留模型(直接挂散文件的老数据)建版本时
	// 把散文件迁移进版本 1
	CreateVersion(ctx context.Context, modelID uint64, description string) (*models.ModelVersion, error)
	GetVersion(ctx context.Context, versionID uint64) (*models.ModelVersion, error)
	ListVersions(ctx context.Context, modelID uint64, includeDeleted bool) ([]models.ModelVersion, error)
	// LatestVersion 未删除版本里 version_number 最大的一个，没有时返回 nil
	LatestVersion(ctx context.Context, modelID uint64) (*models.ModelVersion, error)

	// AddFileToVersion 把文件挂进版本，重复关联返回 alreadyLinked=true
	AddFileToVersion(ctx context.Context, versionID, fileID uint64) (alreadyLinked bool, err error)
	ListVersionFiles(ctx context.Context, versionID uint64) ([]models.File, error)

	// SetActiveVersion 版本必须属于该模型且未删除
	SetActiveVersion(ctx context.Context, modelID, versionID uint64) error
	// ReorderVersions 全有或全无：orderedIDs 必须恰好覆盖该模型所有未删除版本
	ReorderVersions(ctx context.Context, modelID uint64, orderedIDs []uint64) error
}

type versionService struct {
	modelRepo   repositories.ModelRepository
	versionRepo repositories.ModelVersionRepository
	fileRepo    repositories.FileRepository
	tm          TransactionManager
}

// NewVersionService 创建一个新的 VersionService 实例
func NewVersionService(
	modelRepo repositories.ModelRepository,
	versionRepo repositories.ModelVersionRepository,
	fileRepo repositories.FileRepository,
	tm TransactionManager,
) VersionService {
	return &versionService{
		modelRepo:   modelRepo,
		versionRepo: versionRepo,
		fileRepo:    fileRepo,
		tm:          tm,
	}
}

func (s *versionService) CreateVersion(ctx context.Context, modelID uint64, description string) (*models.ModelVersion, error) {
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return nil, err
	}
	if model.IsDeleted {
		return nil, xerr.ErrModelNotFound
	}

	var version *models.ModelVersion
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		versionRepo := repositories.NewModelVersionRepository(tx)
		modelRepo := repositories.NewModelRepository(tx)

		maxNumber, err := versionRepo.MaxVersionNumber(modelID)
		if err != nil {
			return err
		}

		version = &models.ModelVersion{
			ModelID:       modelID,
			VersionNumber: maxNumber + 1,
			DisplayOrder:  maxNumber,
			Description:   description,
		}
		if err := versionRepo.Create(version); err != nil {
			return err
		}

		// 遗留散文件只在首个版本创建时迁移，之后 model_files 表对该模型为空
		if maxNumber == 0 {
			if err := s.migrateLooseFiles(modelRepo, versionRepo, modelID, version.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("CreateVersion: Version created",
		zap.Uint64("modelID", modelID), zap.Uint64("versionID", version.ID), zap.Int("versionNumber", version.VersionNumber))
	return version, nil
}

// migrateLooseFiles 把直接挂在模型上的散文件搬进指定版本并清除旧关联
// 没有散文件时什么都不做
func (s *versionService) migrateLooseFiles(modelRepo repositories.ModelRepository, versionRepo repositories.ModelVersionRepository, modelID, versionID uint64) error {
	loose, err := modelRepo.FindLooseFiles(modelID)
	if err != nil {
		return err
	}
	if len(loose) == 0 {
		return nil
	}

	for _, mf := range loose {
		if _, err := versionRepo.AddFile(versionID, mf.FileID); err != nil {
			return fmt.Errorf("failed to migrate loose file %d: %w", mf.FileID, err)
		}
	}
	if err := modelRepo.DeleteLooseFiles(modelID); err != nil {
		return err
	}
	logger.Info("migrateLooseFiles: Migrated legacy loose files into first version",
		zap.Uint64("modelID", modelID), zap.Uint64("versionID", versionID), zap.Int("count", len(loose)))
	return nil
}

func (s *versionService) GetVersion(ctx context.Context, versionID uint64) (*models.ModelVersion, error) {
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return nil, err
	}
	if version.IsDeleted {
		return nil, xerr.ErrVersionNotFound
	}
	return version, nil
}

func (s *versionService) ListVersions(ctx context.Context, modelID uint64, includeDeleted bool) ([]models.ModelVersion, error) {
	if _, err := s.requireAliveModel(modelID); err != nil {
		return nil, err
	}
	return s.versionRepo.FindByModelID(modelID, includeDeleted)
}

func (s *versionService) LatestVersion(ctx context.Context, modelID uint64) (*models.ModelVersion, error) {
	if _, err := s.requireAliveModel(modelID); err != nil {
		return nil, err
	}
	return s.versionRepo.FindLatestAlive(modelID)
}

func (s *versionService) AddFileToVersion(ctx context.Context, versionID, fileID uint64) (bool, error) {
	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return false, err
	}
	if _, err := s.fileRepo.FindByID(fileID); err != nil {
		return false, err
	}

	alreadyLinked, err := s.versionRepo.AddFile(version.ID, fileID)
	if err != nil {
		return false, err
	}
	if alreadyLinked {
		logger.Info("AddFileToVersion: File already linked to version",
			zap.Uint64("versionID", versionID), zap.Uint64("fileID", fileID))
	}
	return alreadyLinked, nil
}

func (s *versionService) ListVersionFiles(ctx context.Context, versionID uint64) ([]models.File, error) {
	if _, err := s.GetVersion(ctx, versionID); err != nil {
		return nil, err
	}
	return s.versionRepo.FindFiles(versionID)
}

func (s *versionService) SetActiveVersion(ctx context.Context, modelID, versionID uint64) error {
	model, err := s.requireAliveModel(modelID)
	if err != nil {
		return err
	}
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if version.ModelID != modelID {
		return xerr.ErrVersionModelMismatch
	}
	if version.IsDeleted {
		return xerr.ErrVersionDeleted
	}

	model.ActiveVersionID = &version.ID
	return s.modelRepo.Update(model)
}

func (s *versionService) ReorderVersions(ctx context.Context, modelID uint64, orderedIDs []uint64) error {
	if _, err := s.requireAliveModel(modelID); err != nil {
		return err
	}

	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		versionRepo := repositories.NewModelVersionRepository(tx)
		alive, err := versionRepo.FindByModelID(modelID, false)
		if err != nil {
			return err
		}

		// 排序列表必须恰好覆盖全部未删除版本，缺一个或多一个都整体拒绝
		if len(orderedIDs) != len(alive) {
			return xerr.ErrIncompleteOrder
		}
		byID := make(map[uint64]*models.ModelVersion, len(alive))
		for i := range alive {
			byID[alive[i].ID] = &alive[i]
		}

		seen := make(map[uint64]bool, len(orderedIDs))
		for index, id := range orderedIDs {
			version, ok := byID[id]
			if !ok || seen[id] {
				return xerr.ErrIncompleteOrder
			}
			seen[id] = true
			version.DisplayOrder = index
			if err := versionRepo.Update(version); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *versionService) requireAliveModel(modelID uint64) (*models.Model, error) {
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return nil, err
	}
	if model.IsDeleted {
		return nil, xerr.ErrModelNotFound
	}
	return model, nil
}
