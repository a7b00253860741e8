package models

import (
	"time"
)

// Lifecycle 软删除生命周期标记，嵌入需要回收站语义的模型
// 软删除只翻转标记，行仍然保留，唯一索引继续生效
type Lifecycle struct {
	IsDeleted bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"default:null" json:"deleted_at,omitempty"`
}

// MarkDeleted 打上删除标记
func (l *Lifecycle) MarkDeleted(now time.Time) {
	l.IsDeleted = true
	l.DeletedAt = &now
}

// Restore 撤销删除标记
func (l *Lifecycle) Restore() {
	l.IsDeleted = false
	l.DeletedAt = nil
}

// Alive 是否未被软删除
func (l *Lifecycle) Alive() bool {
	return !l.IsDeleted
}
