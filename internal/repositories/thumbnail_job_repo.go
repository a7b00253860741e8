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
	"gorm.io/gorm/clause"
)

// ThumbnailJobRepository 定义缩略图任务队列的数据访问层接口
// 领取/回收路径必须在同一个事务里使用 NewThumbnailJobRepository(tx) 构造的实例
type ThumbnailJobRepository interface {
	Create(job *models.ThumbnailJob) error
	FindByID(id uint64) (*models.ThumbnailJob, error)
	// FindActiveByTarget 查找 (modelID, versionID) 的活动任务(Pending/Processing)
	FindActiveByTarget(modelID uint64, versionID *uint64) (*models.ThumbnailJob, error)
	// FindNextEligibleForUpdate 选出按创建时间最老的可领取任务并加行锁
	// 可领取 = Pending，或 Processing 且租约已过期；没有时返回 nil
	FindNextEligibleForUpdate(now time.Time) (*models.ThumbnailJob, error)
	// FindExpiredForUpdate 选出所有租约过期的 Processing 任务并加行锁
	FindExpiredForUpdate(now time.Time) ([]models.ThumbnailJob, error)
	Save(job *models.ThumbnailJob) error

	AppendEvent(event *models.ThumbnailJobEvent) error
	ListEvents(jobID uint64) ([]models.ThumbnailJobEvent, error)
}

type thumbnailJobRepository struct {
	db *gorm.DB
}

// NewThumbnailJobRepository 创建一个新的 ThumbnailJobRepository 实例
func NewThumbnailJobRepository(db *gorm.DB) ThumbnailJobRepository {
	return &thumbnailJobRepository{db: db}
}

func (r *thumbnailJobRepository) Create(job *models.ThumbnailJob) error {
	err := r.db.Create(job).Error
	if err != nil {
		logger.Error("Create: Failed to create thumbnail job in DB", zap.Error(err), zap.Uint64("modelID", job.ModelID))
		return fmt.Errorf("failed to create thumbnail job: %w", err)
	}
	return nil
}

func (r *thumbnailJobRepository) FindByID(id uint64) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	err := r.db.First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find thumbnail job: %w", err)
	}
	return &job, nil
}

func (r *thumbnailJobRepository) FindActiveByTarget(modelID uint64, versionID *uint64) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	query := r.db.Where("model_id = ?", modelID).
		Where("status IN ?", []string{models.JobStatusPending, models.JobStatusProcessing})
	if versionID == nil {
		query = query.Where("model_version_id IS NULL")
	} else {
		query = query.Where("model_version_id = ?", *versionID)
	}
	err := query.First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active thumbnail job: %w", err)
	}
	return &job, nil
}

// lockForUpdate 给查询加 SELECT ... FOR UPDATE 行锁
// SQLite(测试环境)不支持该子句，靠其单写事务串行化提供等价保证
func (r *thumbnailJobRepository) lockForUpdate(query *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "sqlite" {
		return query
	}
	return query.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *thumbnailJobRepository) FindNextEligibleForUpdate(now time.Time) (*models.ThumbnailJob, error) {
	var job models.ThumbnailJob
	eligible := r.db.
		Where("status = ?", models.JobStatusPending).
		Or("status = ? AND lock_expires_at IS NOT NULL AND lock_expires_at <= ?", models.JobStatusProcessing, now)

	err := r.lockForUpdate(r.db.Where(eligible).Order("created_at ASC, id ASC")).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to select eligible thumbnail job: %w", err)
	}
	return &job, nil
}

func (r *thumbnailJobRepository) FindExpiredForUpdate(now time.Time) ([]models.ThumbnailJob, error) {
	var jobs []models.ThumbnailJob
	err := r.lockForUpdate(r.db.
		Where("status = ?", models.JobStatusProcessing).
		Where("lock_expires_at IS NOT NULL").
		Where("lock_expires_at <= ?", now).
		Order("created_at ASC, id ASC")).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select expired thumbnail jobs: %w", err)
	}
	return jobs, nil
}

func (r *thumbnailJobRepository) Save(job *models.ThumbnailJob) error {
	err := r.db.Save(job).Error
	if err != nil {
		logger.Error("Save: Failed to update thumbnail job in DB", zap.Error(err), zap.Uint64("jobID", job.ID))
		return fmt.Errorf("failed to update thumbnail job: %w", err)
	}
	return nil
}

func (r *thumbnailJobRepository) AppendEvent(event *models.ThumbnailJobEvent) error {
	err := r.db.Create(event).Error
	if err != nil {
		logger.Error("AppendEvent: Failed to append job event", zap.Error(err), zap.Uint64("jobID", event.ThumbnailJobID))
		return fmt.Errorf("failed to append job event: %w", err)
	}
	return nil
}

func (r *thumbnailJobRepository) ListEvents(jobID uint64) ([]models.ThumbnailJobEvent, error) {
	var events []models.ThumbnailJobEvent
	err := r.db.Where("thumbnail_job_id = ?", jobID).Order("id ASC").Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	return events, nil
}
