package models

import (
	"time"
)

// 任务状态机: Pending → Processing → {Done | Failed}
// 租约过期时存在隐式的 Processing → Pending 回收转换
const (
	JobStatusPending    = "Pending"
	JobStatusProcessing = "Processing"
	JobStatusDone       = "Done"
	JobStatusFailed     = "Failed"
)

// 任务审计事件类型
const (
	JobEventEnqueued  = "enqueued"
	JobEventClaimed   = "claimed"
	JobEventCompleted = "completed"
	JobEventFailed    = "failed"
	JobEventReclaimed = "reclaimed"
)

// ThumbnailJob 对应 thumbnail_jobs 表，一个待渲染的缩略图工作项
// 同一 (model_id, model_version_id) 同时最多存在一个活动任务(Pending/Processing)
type ThumbnailJob struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelID            uint64     `gorm:"not null;index" json:"model_id"`
	ModelVersionID     *uint64    `gorm:"default:null;index" json:"model_version_id"`
	Status             string     `gorm:"type:varchar(16);not null;default:'Pending';index" json:"status"`
	AttemptCount       int        `gorm:"not null;default:0" json:"attempt_count"` // 仅供展示，重试策略看事件日志
	LockedAt           *time.Time `gorm:"default:null" json:"locked_at,omitempty"`
	LockTimeoutMinutes int        `gorm:"not null;default:30" json:"lock_timeout_minutes"`
	// 领取时写入的租约到期时间(locked_at + lock_timeout_minutes)，给过期扫描一个可索引的谓词
	LockExpiresAt *time.Time `gorm:"default:null;index" json:"lock_expires_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ThumbnailJob) TableName() string {
	return "thumbnail_jobs"
}

// Active 任务是否处于活动状态(未终结)
func (j *ThumbnailJob) Active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// LeaseExpired 租约是否已过期
// 只有 Processing 状态的任务才持有租约
func (j *ThumbnailJob) LeaseExpired(now time.Time) bool {
	if j.Status != JobStatusProcessing || j.LockedAt == nil {
		return false
	}
	return !j.LockedAt.Add(time.Duration(j.LockTimeoutMinutes) * time.Minute).After(now)
}

// ThumbnailJobEvent 对应 thumbnail_job_events 表，只追加的审计事件流
type ThumbnailJobEvent struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ThumbnailJobID uint64    `gorm:"not null;index" json:"thumbnail_job_id"`
	EventType      string    `gorm:"type:varchar(16);not null" json:"event_type"`
	Detail         string    `gorm:"type:varchar(1024);not null;default:''" json:"detail"`
	OccurredAt     time.Time `gorm:"autoCreateTime" json:"occurred_at"`
}

func (ThumbnailJobEvent) TableName() string {
	return "thumbnail_job_events"
}
