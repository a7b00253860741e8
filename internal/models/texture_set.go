package models

import (
	"time"
)

// TextureType 贴图类型枚举
// 数值与前端/插件约定一致，不能改动已有取值
type TextureType int

const (
	TextureTypeAlbedo           TextureType = 1
	TextureTypeNormal           TextureType = 2
	TextureTypeHeight           TextureType = 3
	TextureTypeAmbientOcclusion TextureType = 4
	TextureTypeRoughness        TextureType = 5
	TextureTypeMetallic         TextureType = 6
	TextureTypeDiffuse          TextureType = 7 // 视为 Albedo 的别名
	TextureTypeSpecular         TextureType = 8
	TextureTypeEmissive         TextureType = 9
	TextureTypeBump             TextureType = 10 // 视为 Normal 的别名
	TextureTypeOpacity          TextureType = 11
	TextureTypeDisplacement     TextureType = 12 // 视为 Height 的别名
)

var textureTypeNames = map[TextureType]string{
	TextureTypeAlbedo:           "Albedo",
	TextureTypeNormal:           "Normal",
	TextureTypeHeight:           "Height",
	TextureTypeAmbientOcclusion: "AmbientOcclusion",
	TextureTypeRoughness:        "Roughness",
	TextureTypeMetallic:         "Metallic",
	TextureTypeDiffuse:          "Diffuse",
	TextureTypeSpecular:         "Specular",
	TextureTypeEmissive:         "Emissive",
	TextureTypeBump:             "Bump",
	TextureTypeOpacity:          "Opacity",
	TextureTypeDisplacement:     "Displacement",
}

func (t TextureType) String() string {
	if name, ok := textureTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Valid 检查贴图类型取值是否在枚举范围内
func (t TextureType) Valid() bool {
	_, ok := textureTypeNames[t]
	return ok
}

// Canonical 返回规范化后的类型：Diffuse→Albedo, Bump→Normal, Displacement→Height
// "每个类型至多一张" 的唯一性约束按规范化后的类型判断
func (t TextureType) Canonical() TextureType {
	switch t {
	case TextureTypeDiffuse:
		return TextureTypeAlbedo
	case TextureTypeBump:
		return TextureTypeNormal
	case TextureTypeDisplacement:
		return TextureTypeHeight
	default:
		return t
	}
}

// TextureSet 对应 texture_sets 表，一组具名的类型化贴图
type TextureSet struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Lifecycle
}

func (TextureSet) TableName() string {
	return "texture_sets"
}

// Texture 对应 textures 表，包装一个 File 外加类型信息
// 同一个贴图集内同一规范化类型最多一张，重复添加时替换
type Texture struct {
	ID            uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TextureSetID  uint64      `gorm:"not null;index" json:"texture_set_id"`
	FileID        uint64      `gorm:"not null;index" json:"file_id"`
	TextureType   TextureType `gorm:"not null" json:"texture_type"`
	SourceChannel *string     `gorm:"type:varchar(16);default:null" json:"source_channel,omitempty"` // 例如通道分离贴图的 R/G/B/A
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`

	File *File `gorm:"foreignKey:FileID" json:"file,omitempty"`
}

func (Texture) TableName() string {
	return "textures"
}

// ModelVersionTextureSet 对应 model_version_texture_sets 表
type ModelVersionTextureSet struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelVersionID uint64    `gorm:"not null;index:idx_version_set,unique" json:"model_version_id"`
	TextureSetID   uint64    `gorm:"not null;index:idx_version_set,unique" json:"texture_set_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ModelVersionTextureSet) TableName() string {
	return "model_version_texture_sets"
}
