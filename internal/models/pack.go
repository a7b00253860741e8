package models

import (
	"time"
)

// Pack 对应 packs 表，一个资产包：打包若干模型和贴图集
type Pack struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle
}

func (Pack) TableName() string {
	return "packs"
}

// Project 对应 projects 表，结构与 Pack 相同但语义上表示进行中的项目
type Project struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle
}

func (Project) TableName() string {
	return "projects"
}

// PackModel 对应 pack_models 表
type PackModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PackID    uint64    `gorm:"not null;index:idx_pack_model,unique" json:"pack_id"`
	ModelID   uint64    `gorm:"not null;index:idx_pack_model,unique" json:"model_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PackModel) TableName() string {
	return "pack_models"
}

// PackTextureSet 对应 pack_texture_sets 表
type PackTextureSet struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PackID       uint64    `gorm:"not null;index:idx_pack_set,unique" json:"pack_id"`
	TextureSetID uint64    `gorm:"not null;index:idx_pack_set,unique" json:"texture_set_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PackTextureSet) TableName() string {
	return "pack_texture_sets"
}

// ProjectModel 对应 project_models 表
type ProjectModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint64    `gorm:"not null;index:idx_project_model,unique" json:"project_id"`
	ModelID   uint64    `gorm:"not null;index:idx_project_model,unique" json:"model_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProjectModel) TableName() string {
	return "project_models"
}

// ProjectTextureSet 对应 project_texture_sets 表
type ProjectTextureSet struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID    uint64    `gorm:"not null;index:idx_project_set,unique" json:"project_id"`
	TextureSetID uint64    `gorm:"not null;index:idx_project_set,unique" json:"texture_set_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProjectTextureSet) TableName() string {
	return "project_texture_sets"
}
