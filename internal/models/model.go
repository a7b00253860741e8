package models

import (
	"time"
)

// Model 对应 models 表，一个具名资产容器
// activeVersionID 必须指向本模型下的一个未删除版本，允许为 null(过渡状态)
type Model struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"type:varchar(255);not null;index" json:"name"`
	Tags            string    `gorm:"type:varchar(512);not null;default:''" json:"tags"`
	Description     string    `gorm:"type:text" json:"description"`
	ActiveVersionID *uint64   `gorm:"default:null" json:"active_version_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle
}

func (Model) TableName() string {
	return "models"
}

// ModelVersion 对应 model_versions 表
// version_number 在同一模型内单调递增，创建时分配，永不复用
// display_order 只影响列表展示，不参与 "最新版本" 语义
type ModelVersion struct {
	ID                  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelID             uint64    `gorm:"not null;index" json:"model_id"`
	VersionNumber       int       `gorm:"not null" json:"version_number"`
	DisplayOrder        int       `gorm:"not null;default:0" json:"display_order"`
	Description         string    `gorm:"type:text" json:"description"`
	DefaultTextureSetID *uint64   `gorm:"default:null" json:"default_texture_set_id"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle

	Model *Model `gorm:"foreignKey:ModelID" json:"-"`
}

func (ModelVersion) TableName() string {
	return "model_versions"
}

// ModelVersionFile 对应 model_version_files 表
// 版本与文件的关联行：同一个 File 可以被多个版本共享引用
type ModelVersionFile struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelVersionID uint64    `gorm:"not null;index:idx_version_file,unique" json:"model_version_id"`
	FileID         uint64    `gorm:"not null;index:idx_version_file,unique" json:"file_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ModelVersionFile) TableName() string {
	return "model_version_files"
}

// ModelFile 对应 model_files 表
// 遗留关联：版本功能引入之前直接挂在模型上的散文件
// 首次为这类模型创建版本时会被迁移进版本 1
type ModelFile struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelID   uint64    `gorm:"not null;index:idx_model_file,unique" json:"model_id"`
	FileID    uint64    `gorm:"not null;index:idx_model_file,unique" json:"file_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ModelFile) TableName() string {
	return "model_files"
}
