package models

import (
	"time"
)

// File 对应 files 表，内容寻址的不可变文件记录
// 文件身份由 sha256_hash 决定而不是主键：相同字节的两次上传必须解析到同一行
type File struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Sha256Hash   string    `gorm:"type:char(64);uniqueIndex;not null" json:"sha256_hash"`
	OriginalName string    `gorm:"type:varchar(255);not null" json:"original_name"` // 上传时声明的文件名
	StoredName   string    `gorm:"type:varchar(255);not null" json:"stored_name"`   // 磁盘上的实际文件名(由哈希派生)
	RelativePath string    `gorm:"type:varchar(1024);not null" json:"relative_path"`
	MimeType     string    `gorm:"type:varchar(128);not null;default:''" json:"mime_type"`
	SizeBytes    int64     `gorm:"type:bigint;not null;default:0" json:"size_bytes"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle
}

func (File) TableName() string {
	return "files"
}

// RecycledFile 对应 recycled_files 表
// 文件因其他实体删除而被解除引用、但尚未到物理清除时间时创建
// 给操作员一个宽限期窗口，在字节被清除前可以撤销
type RecycledFile struct {
	ID                  uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID              uint64    `gorm:"not null;index" json:"file_id"`
	Reason              string    `gorm:"type:varchar(255);not null" json:"reason"`
	RecycledAt          time.Time `gorm:"not null" json:"recycled_at"`
	ScheduledDeletionAt time.Time `gorm:"not null;index" json:"scheduled_deletion_at"`

	File *File `gorm:"foreignKey:FileID" json:"-"`
}

func (RecycledFile) TableName() string {
	return "recycled_files"
}
