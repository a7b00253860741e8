package thumbnail

import (
	"context"
	"time"

	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/services/assets"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor 后台清理：定时回收过期租约、清除宽限期已过的回收文件
type Janitor struct {
	queue     QueueService
	lifecycle assets.LifecycleService
	cron      *cron.Cron
}

// NewJanitor 创建一个新的 Janitor 实例
func NewJanitor(queue QueueService, lifecycle assets.LifecycleService) *Janitor {
	return &Janitor{
		queue:     queue,
		lifecycle: lifecycle,
		cron:      cron.New(),
	}
}

// Start 注册并启动定时任务，表达式非法时返回错误
func (j *Janitor) Start(reclaimSpec, purgeSpec string) error {
	if _, err := j.cron.AddFunc(reclaimSpec, j.reclaimPass); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc(purgeSpec, j.purgePass); err != nil {
		return err
	}
	j.cron.Start()
	logger.Info("Janitor started", zap.String("reclaimCron", reclaimSpec), zap.String("purgeCron", purgeSpec))
	return nil
}

// Stop 停止调度并等待进行中的清理结束
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	logger.Info("Janitor stopped")
}

func (j *Janitor) reclaimPass() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	reclaimed, err := j.queue.ReclaimExpired(ctx)
	if err != nil {
		logger.Error("reclaimPass: Failed to reclaim expired jobs", zap.Error(err))
		return
	}
	if len(reclaimed) > 0 {
		logger.Info("reclaimPass: Expired jobs returned to queue", zap.Int("count", len(reclaimed)))
	}
}

func (j *Janitor) purgePass() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	purged, err := j.lifecycle.PurgeDue(ctx, time.Now())
	if err != nil {
		logger.Error("purgePass: Failed to purge recycled files", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Info("purgePass: Recycled files physically purged", zap.Int("count", purged))
	}
}
