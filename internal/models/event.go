package models

import "time"

// 领域事件类型，保存成功后发布到事件队列
// 与持久化事务解耦：订阅者慢不会阻塞写路径
const (
	EventModelUploaded        = "model.uploaded"
	EventModelDeleted         = "model.deleted"
	EventThumbnailJobEnqueued = "thumbnail_job.enqueued"
)

// DomainEvent 是发布到 RabbitMQ 的事件消息体
type DomainEvent struct {
	Type       string    `json:"type"`
	ModelID    uint64    `json:"model_id,omitempty"`
	VersionID  uint64    `json:"version_id,omitempty"`
	FileID     uint64    `json:"file_id,omitempty"`
	JobID      uint64    `json:"job_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
