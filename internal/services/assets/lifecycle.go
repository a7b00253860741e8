package assets

import (
	"context"
	"errors"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LifecycleService 软删除、恢复与物理清除
// 软删除只翻转生命周期标记，字节和行都不动；物理清除走回收站宽限期
type LifecycleService interface {
	// SoftDeleteVersion 模型必须保留至少一个未删除版本
	// 删除的是活动版本时，活动指针改指剩余的最新版本
	SoftDeleteVersion(ctx context.Context, versionID uint64) error
	RestoreVersion(ctx context.Context, versionID uint64) error

	SoftDeleteModel(ctx context.Context, modelID uint64) error
	// RestoreModel 不恢复活动版本指针，需要显式 SetActiveVersion
	RestoreModel(ctx context.Context, modelID uint64) error

	// IsFileShared 是否有其他未删除版本仍引用该文件
	// excludingVersionID 非 0 时把该版本自身排除在统计外
	IsFileShared(ctx context.Context, fileID, excludingVersionID uint64) (bool, error)

	// PermanentDeleteVersion 删除版本行和关联行；解除引用后不再被共享的文件
	// 进回收站等待宽限期，不立即清除字节
	PermanentDeleteVersion(ctx context.Context, versionID uint64) error
	PermanentDeleteModel(ctx context.Context, modelID uint64) error

	ListRecycleBin(ctx context.Context, page, pageSize int) ([]models.RecycledFile, int64, error)
	// RestoreRecycledFile 撤销待清除状态，文件记录复活
	RestoreRecycledFile(ctx context.Context, fileID uint64) error
	// PurgeDue 物理清除宽限期已过的回收文件，返回清除数量
	PurgeDue(ctx context.Context, now time.Time) (int, error)
}

type lifecycleService struct {
	modelRepo    repositories.ModelRepository
	versionRepo  repositories.ModelVersionRepository
	fileRepo     repositories.FileRepository
	recycledRepo repositories.RecycledFileRepository
	tm           TransactionManager
	store        storage.BlobStore
	mqClient     *mq.RabbitMQClient
	gracePeriod  time.Duration
}

// NewLifecycleService 创建一个新的 LifecycleService 实例
func NewLifecycleService(
	modelRepo repositories.ModelRepository,
	versionRepo repositories.ModelVersionRepository,
	fileRepo repositories.FileRepository,
	recycledRepo repositories.RecycledFileRepository,
	tm TransactionManager,
	store storage.BlobStore,
	mqClient *mq.RabbitMQClient,
	gracePeriod time.Duration,
) LifecycleService {
	return &lifecycleService{
		modelRepo:    modelRepo,
		versionRepo:  versionRepo,
		fileRepo:     fileRepo,
		recycledRepo: recycledRepo,
		tm:           tm,
		store:        store,
		mqClient:     mqClient,
		gracePeriod:  gracePeriod,
	}
}

func (s *lifecycleService) SoftDeleteVersion(ctx context.Context, versionID uint64) error {
	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		versionRepo := repositories.NewModelVersionRepository(tx)
		modelRepo := repositories.NewModelRepository(tx)

		version, err := versionRepo.FindByID(versionID)
		if err != nil {
			return err
		}
		if version.IsDeleted {
			return nil
		}

		aliveCount, err := versionRepo.CountAlive(version.ModelID)
		if err != nil {
			return err
		}
		if aliveCount <= 1 {
			return xerr.ErrLastVersion
		}

		now := time.Now()
		if err := versionRepo.SoftDelete(versionID, now); err != nil {
			return err
		}

		// 活动版本被删时把指针改到剩余的最新版本
		model, err := modelRepo.FindByID(version.ModelID)
		if err != nil {
			return err
		}
		if model.ActiveVersionID != nil && *model.ActiveVersionID == versionID {
			latest, err := versionRepo.FindLatestAlive(version.ModelID)
			if err != nil {
				return err
			}
			if latest != nil {
				model.ActiveVersionID = &latest.ID
			} else {
				model.ActiveVersionID = nil
			}
			if err := modelRepo.Update(model); err != nil {
				return err
			}
		}

		logger.Info("SoftDeleteVersion: Version soft-deleted",
			zap.Uint64("versionID", versionID), zap.Uint64("modelID", version.ModelID))
		return nil
	})
}

func (s *lifecycleService) RestoreVersion(ctx context.Context, versionID uint64) error {
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if !version.IsDeleted {
		return nil
	}
	return s.versionRepo.Restore(versionID)
}

func (s *lifecycleService) SoftDeleteModel(ctx context.Context, modelID uint64) error {
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return err
	}
	if model.IsDeleted {
		return nil
	}

	model.MarkDeleted(time.Now())
	if err := s.modelRepo.Update(model); err != nil {
		return err
	}

	if s.mqClient != nil {
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventModelDeleted,
			ModelID:    modelID,
			OccurredAt: time.Now(),
		})
	}
	logger.Info("SoftDeleteModel: Model soft-deleted", zap.Uint64("modelID", modelID))
	return nil
}

func (s *lifecycleService) RestoreModel(ctx context.Context, modelID uint64) error {
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return err
	}
	if !model.IsDeleted {
		return nil
	}

	model.Restore()
	if err := s.modelRepo.Update(model); err != nil {
		return err
	}

	if s.mqClient != nil {
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventModelUploaded,
			ModelID:    modelID,
			OccurredAt: time.Now(),
		})
	}
	return nil
}

func (s *lifecycleService) IsFileShared(ctx context.Context, fileID, excludingVersionID uint64) (bool, error) {
	count, err := s.fileRepo.CountLiveReferences(fileID, excludingVersionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *lifecycleService) PermanentDeleteVersion(ctx context.Context, versionID uint64) error {
	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.permanentDeleteVersionTx(tx, versionID)
	})
}

// permanentDeleteVersionTx 在调用方事务内删除版本及其关联
// 解除引用后不再被任何未删除版本共享的文件进回收站
func (s *lifecycleService) permanentDeleteVersionTx(tx *gorm.DB, versionID uint64) error {
	versionRepo := repositories.NewModelVersionRepository(tx)
	modelRepo := repositories.NewModelRepository(tx)
	fileRepo := repositories.NewFileRepository(tx)
	recycledRepo := repositories.NewRecycledFileRepository(tx)

	version, err := versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}

	links, err := versionRepo.FindFileLinks(versionID)
	if err != nil {
		return err
	}
	if err := versionRepo.RemoveFileLinks(versionID); err != nil {
		return err
	}

	now := time.Now()
	for _, link := range links {
		// 关联行已删，excludeVersionID 传 0 统计剩余全部引用
		refs, err := fileRepo.CountLiveReferences(link.FileID, 0)
		if err != nil {
			return err
		}
		if refs > 0 {
			continue
		}
		if err := s.recycleFileTx(fileRepo, recycledRepo, link.FileID, "version permanently deleted", now); err != nil {
			return err
		}
	}

	if err := versionRepo.HardDelete(versionID); err != nil {
		return err
	}

	// 被删的是活动版本时修正模型指针
	model, err := modelRepo.FindByID(version.ModelID)
	if err != nil {
		return err
	}
	if model.ActiveVersionID != nil && *model.ActiveVersionID == versionID {
		latest, err := versionRepo.FindLatestAlive(version.ModelID)
		if err != nil {
			return err
		}
		if latest != nil {
			model.ActiveVersionID = &latest.ID
		} else {
			model.ActiveVersionID = nil
		}
		if err := modelRepo.Update(model); err != nil {
			return err
		}
	}

	logger.Info("PermanentDeleteVersion: Version permanently deleted",
		zap.Uint64("versionID", versionID), zap.Uint64("modelID", version.ModelID), zap.Int("detachedFiles", len(links)))
	return nil
}

// recycleFileTx 软删文件记录并登记回收站条目，宽限期后由清除任务处理
func (s *lifecycleService) recycleFileTx(fileRepo repositories.FileRepository, recycledRepo repositories.RecycledFileRepository, fileID uint64, reason string, now time.Time) error {
	existing, err := recycledRepo.FindByFileID(fileID)
	if err != nil {
		return err
	}
	if existing == nil {
		recycled := &models.RecycledFile{
			FileID:              fileID,
			Reason:              reason,
			RecycledAt:          now,
			ScheduledDeletionAt: now.Add(s.gracePeriod),
		}
		if err := recycledRepo.Create(recycled); err != nil {
			return err
		}
	}
	return fileRepo.SoftDelete(fileID, now)
}

func (s *lifecycleService) PermanentDeleteModel(ctx context.Context, modelID uint64) error {
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		versionRepo := repositories.NewModelVersionRepository(tx)
		modelRepo := repositories.NewModelRepository(tx)

		model, err := modelRepo.FindByID(modelID)
		if err != nil {
			return err
		}

		// 先断开活动指针，避免逐个删版本时反复改写
		if model.ActiveVersionID != nil {
			model.ActiveVersionID = nil
			if err := modelRepo.Update(model); err != nil {
				return err
			}
		}

		versions, err := versionRepo.FindByModelID(modelID, true)
		if err != nil {
			return err
		}
		for _, version := range versions {
			if err := s.permanentDeleteVersionTx(tx, version.ID); err != nil {
				return err
			}
		}

		// 没建过版本的遗留模型还可能挂着散文件
		loose, err := modelRepo.FindLooseFiles(modelID)
		if err != nil {
			return err
		}
		if len(loose) > 0 {
			fileRepo := repositories.NewFileRepository(tx)
			recycledRepo := repositories.NewRecycledFileRepository(tx)
			if err := modelRepo.DeleteLooseFiles(modelID); err != nil {
				return err
			}
			now := time.Now()
			for _, mf := range loose {
				refs, err := fileRepo.CountLiveReferences(mf.FileID, 0)
				if err != nil {
					return err
				}
				if refs > 0 {
					continue
				}
				if err := s.recycleFileTx(fileRepo, recycledRepo, mf.FileID, "model permanently deleted", now); err != nil {
					return err
				}
			}
		}

		return modelRepo.HardDelete(modelID)
	})
	if err != nil {
		return err
	}

	if s.mqClient != nil {
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventModelDeleted,
			ModelID:    modelID,
			OccurredAt: time.Now(),
		})
	}
	logger.Info("PermanentDeleteModel: Model permanently deleted", zap.Uint64("modelID", modelID))
	return nil
}

func (s *lifecycleService) ListRecycleBin(ctx context.Context, page, pageSize int) ([]models.RecycledFile, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.recycledRepo.List(page, pageSize)
}

func (s *lifecycleService) RestoreRecycledFile(ctx context.Context, fileID uint64) error {
	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		fileRepo := repositories.NewFileRepository(tx)
		recycledRepo := repositories.NewRecycledFileRepository(tx)

		recycled, err := recycledRepo.FindByFileID(fileID)
		if err != nil {
			return err
		}
		if recycled == nil {
			return xerr.ErrRecycledFileNotFound
		}
		if err := recycledRepo.Delete(recycled.ID); err != nil {
			return err
		}
		return fileRepo.Restore(fileID)
	})
}

func (s *lifecycleService) PurgeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.recycledRepo.FindDue(now)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, recycled := range due {
		file, err := s.fileRepo.FindByID(recycled.FileID)
		if err != nil {
			// 文件行已不在，清掉孤儿回收记录
			if errors.Is(err, xerr.ErrFileNotFound) {
				_ = s.recycledRepo.Delete(recycled.ID)
			}
			continue
		}

		// 宽限期内可能有新版本重新引用了该文件，放弃清除并撤销回收
		// 贴图集里的贴图也包装文件，一并计入
		refs, err := s.fileRepo.CountLiveReferences(file.ID, 0)
		if err != nil {
			return purged, err
		}
		if refs == 0 {
			refs, err = s.fileRepo.CountLiveTextureReferences(file.ID)
			if err != nil {
				return purged, err
			}
		}
		if refs > 0 {
			logger.Warn("PurgeDue: File re-referenced during grace period, canceling purge",
				zap.Uint64("fileID", file.ID), zap.Int64("refs", refs))
			if err := s.RestoreRecycledFile(ctx, file.ID); err != nil {
				return purged, err
			}
			continue
		}

		if err := s.store.Remove(ctx, file.RelativePath); err != nil {
			logger.Error("PurgeDue: Failed to remove blob, will retry next pass",
				zap.Error(err), zap.Uint64("fileID", file.ID))
			continue
		}

		err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
			if err := repositories.NewFileRepository(tx).HardDelete(file.ID); err != nil {
				return err
			}
			return repositories.NewRecycledFileRepository(tx).Delete(recycled.ID)
		})
		if err != nil {
			return purged, err
		}

		purged++
		logger.Info("PurgeDue: File physically purged",
			zap.Uint64("fileID", file.ID), zap.String("hash", file.Sha256Hash))
	}
	return purged, nil
}
