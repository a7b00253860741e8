package models

import (
	"time"
)

// 缩略图状态
const (
	ThumbnailStatusPending    = "Pending"
	ThumbnailStatusProcessing = "Processing"
	ThumbnailStatusReady      = "Ready"
	ThumbnailStatusFailed     = "Failed"
)

// Thumbnail 对应 thumbnails 表
// 记录某个模型版本的预览图渲染结果，status 随后台任务推进
// 列表查询只在 status == Ready 时暴露缩略图 URL
type Thumbnail struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelVersionID uint64    `gorm:"not null;uniqueIndex" json:"model_version_id"`
	Status         string    `gorm:"type:varchar(16);not null;default:'Pending'" json:"status"`
	RelativePath   string    `gorm:"type:varchar(1024);not null;default:''" json:"relative_path"`
	SizeBytes      int64     `gorm:"type:bigint;not null;default:0" json:"size_bytes"`
	Width          int       `gorm:"not null;default:0" json:"width"`
	Height         int       `gorm:"not null;default:0" json:"height"`
	ErrorMessage   string    `gorm:"type:varchar(1024);not null;default:''" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Thumbnail) TableName() string {
	return "thumbnails"
}
