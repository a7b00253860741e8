package thumbnail

import (
	"context"
	"fmt"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/assets"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueueService 基于租约的缩略图任务队列
// 状态机: Pending → Processing → {Done | Failed}，租约过期回收为 Pending
// 每次状态转换都追加一条审计事件
type QueueService interface {
	// Enqueue 幂等入队：同一 (modelID, versionID) 已有活动任务时直接返回它
	Enqueue(ctx context.Context, modelID uint64, versionID *uint64) (*models.ThumbnailJob, error)
	// ClaimNext 领取最老的可执行任务，队列为空时返回 (nil, nil)
	// 领取在带行锁的事务里完成，同一任务不会被两个工作者同时拿到
	ClaimNext(ctx context.Context) (*models.ThumbnailJob, error)
	// Complete 终结任务为 Done，调用方传入自己领取到的任务快照
	// 任务必须仍处于 Processing 且租约没有被回收后再领走
	Complete(ctx context.Context, job *models.ThumbnailJob) error
	// Fail 终结任务为 Failed，不自动重试，失败原因进事件流
	Fail(ctx context.Context, job *models.ThumbnailJob, reason string) error
	// ReclaimExpired 回收所有租约过期的 Processing 任务，返回被回收的任务
	ReclaimExpired(ctx context.Context) ([]models.ThumbnailJob, error)

	GetJob(ctx context.Context, jobID uint64) (*models.ThumbnailJob, error)
	ListJobEvents(ctx context.Context, jobID uint64) ([]models.ThumbnailJobEvent, error)
}

// 确认队列服务满足上传编排声明的入队接口
var _ assets.ThumbnailEnqueuer = (QueueService)(nil)

type queueService struct {
	jobRepo            repositories.ThumbnailJobRepository
	tm                 assets.TransactionManager
	mqClient           *mq.RabbitMQClient
	lockTimeoutMinutes int
	now                func() time.Time
}

// NewQueueService 创建一个新的 QueueService 实例
func NewQueueService(
	jobRepo repositories.ThumbnailJobRepository,
	tm assets.TransactionManager,
	mqClient *mq.RabbitMQClient,
	lockTimeoutMinutes int,
) QueueService {
	if lockTimeoutMinutes <= 0 {
		lockTimeoutMinutes = 30
	}
	return &queueService{
		jobRepo:            jobRepo,
		tm:                 tm,
		mqClient:           mqClient,
		lockTimeoutMinutes: lockTimeoutMinutes,
		now:                time.Now,
	}
}

func (s *queueService) Enqueue(ctx context.Context, modelID uint64, versionID *uint64) (*models.ThumbnailJob, error) {
	var job *models.ThumbnailJob
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		jobRepo := repositories.NewThumbnailJobRepository(tx)

		existing, err := jobRepo.FindActiveByTarget(modelID, versionID)
		if err != nil {
			return err
		}
		if existing != nil {
			job = existing
			return nil
		}

		job = &models.ThumbnailJob{
			ModelID:            modelID,
			ModelVersionID:     versionID,
			Status:             models.JobStatusPending,
			LockTimeoutMinutes: s.lockTimeoutMinutes,
		}
		if err := jobRepo.Create(job); err != nil {
			return err
		}
		return jobRepo.AppendEvent(&models.ThumbnailJobEvent{
			ThumbnailJobID: job.ID,
			EventType:      models.JobEventEnqueued,
		})
	})
	if err != nil {
		return nil, err
	}

	// 唤醒工作者并广播入队事件，失败不影响已提交的任务
	if s.mqClient != nil {
		s.mqClient.Nudge(ctx)
		s.mqClient.PublishEvent(ctx, &models.DomainEvent{
			Type:       models.EventThumbnailJobEnqueued,
			ModelID:    modelID,
			JobID:      job.ID,
			OccurredAt: s.now(),
		})
	}
	return job, nil
}

func (s *queueService) ClaimNext(ctx context.Context) (*models.ThumbnailJob, error) {
	var claimed *models.ThumbnailJob
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		jobRepo := repositories.NewThumbnailJobRepository(tx)
		now := s.now()

		job, err := jobRepo.FindNextEligibleForUpdate(now)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}

		// 过期的 Processing 任务先回收成 Pending 再领取，事件流里两步都可见
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			job.LockedAt = nil
			job.LockExpiresAt = nil
			if err := jobRepo.Save(job); err != nil {
				return err
			}
			if err := jobRepo.AppendEvent(&models.ThumbnailJobEvent{
				ThumbnailJobID: job.ID,
				EventType:      models.JobEventReclaimed,
				Detail:         "lease expired",
			}); err != nil {
				return err
			}
		}

		expiresAt := now.Add(time.Duration(job.LockTimeoutMinutes) * time.Minute)
		job.Status = models.JobStatusProcessing
		job.LockedAt = &now
		job.LockExpiresAt = &expiresAt
		job.AttemptCount++
		if err := jobRepo.Save(job); err != nil {
			return err
		}
		if err := jobRepo.AppendEvent(&models.ThumbnailJobEvent{
			ThumbnailJobID: job.ID,
			EventType:      models.JobEventClaimed,
		}); err != nil {
			return err
		}

		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claimed != nil {
		logger.Info("ClaimNext: Job claimed",
			zap.Uint64("jobID", claimed.ID), zap.Uint64("modelID", claimed.ModelID), zap.Int("attempt", claimed.AttemptCount))
	}
	return claimed, nil
}

func (s *queueService) Complete(ctx context.Context, job *models.ThumbnailJob) error {
	return s.finish(ctx, job, models.JobStatusDone, models.JobEventCompleted, "")
}

func (s *queueService) Fail(ctx context.Context, job *models.ThumbnailJob, reason string) error {
	return s.finish(ctx, job, models.JobStatusFailed, models.JobEventFailed, reason)
}

func (s *queueService) finish(ctx context.Context, claimed *models.ThumbnailJob, status, eventType, detail string) error {
	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		jobRepo := repositories.NewThumbnailJobRepository(tx)

		job, err := jobRepo.FindByID(claimed.ID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusProcessing {
			return fmt.Errorf("job %d is %s: %w", claimed.ID, job.Status, xerr.ErrJobNotProcessing)
		}
		// AttemptCount 随每次领取递增，充当围栏令牌：
		// 租约被回收又被别人领走之后，过期的持有者不能终结任务
		if job.AttemptCount != claimed.AttemptCount {
			return fmt.Errorf("job %d claimed by attempt %d, caller holds attempt %d: %w",
				claimed.ID, job.AttemptCount, claimed.AttemptCount, xerr.ErrLeaseLost)
		}

		job.Status = status
		job.LockedAt = nil
		job.LockExpiresAt = nil
		if err := jobRepo.Save(job); err != nil {
			return err
		}
		return jobRepo.AppendEvent(&models.ThumbnailJobEvent{
			ThumbnailJobID: job.ID,
			EventType:      eventType,
			Detail:         detail,
		})
	})
}

func (s *queueService) ReclaimExpired(ctx context.Context) ([]models.ThumbnailJob, error) {
	var reclaimed []models.ThumbnailJob
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		jobRepo := repositories.NewThumbnailJobRepository(tx)

		expired, err := jobRepo.FindExpiredForUpdate(s.now())
		if err != nil {
			return err
		}
		for i := range expired {
			job := &expired[i]
			job.Status = models.JobStatusPending
			job.LockedAt = nil
			job.LockExpiresAt = nil
			if err := jobRepo.Save(job); err != nil {
				return err
			}
			if err := jobRepo.AppendEvent(&models.ThumbnailJobEvent{
				ThumbnailJobID: job.ID,
				EventType:      models.JobEventReclaimed,
				Detail:         "lease expired",
			}); err != nil {
				return err
			}
		}
		reclaimed = expired
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(reclaimed) > 0 {
		logger.Warn("ReclaimExpired: Reclaimed expired thumbnail jobs", zap.Int("count", len(reclaimed)))
	}
	return reclaimed, nil
}

func (s *queueService) GetJob(ctx context.Context, jobID uint64) (*models.ThumbnailJob, error) {
	return s.jobRepo.FindByID(jobID)
}

func (s *queueService) ListJobEvents(ctx context.Context, jobID uint64) ([]models.ThumbnailJobEvent, error) {
	if _, err := s.jobRepo.FindByID(jobID); err != nil {
		return nil, err
	}
	return s.jobRepo.ListEvents(jobID)
}
