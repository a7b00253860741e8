package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/services/assets"
)

type textureSetRequest struct {
	Name string `json:"name" binding:"required"`
}

type textureRequest struct {
	FileID        uint64  `json:"file_id" binding:"required"`
	TextureType   int     `json:"texture_type" binding:"required"`
	SourceChannel *string `json:"source_channel"`
}

type versionAssociationRequest struct {
	VersionID uint64 `json:"version_id" binding:"required"`
}

// CreateTextureSet 创建贴图集
func CreateTextureSet(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req textureSetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		set, err := setService.Create(c.Request.Context(), req.Name)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Texture set created successfully", set)
	}
}

// ListTextureSets 列出贴图集
func ListTextureSets(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sets, err := setService.List(c.Request.Context())
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture sets listed successfully", sets)
	}
}

// GetTextureSet 获取贴图集及其贴图
func GetTextureSet(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		set, err := setService.Get(c.Request.Context(), setID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		textures, err := setService.ListTextures(c.Request.Context(), setID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set retrieved successfully", gin.H{
			"texture_set": set,
			"textures":    textures,
		})
	}
}

// UpdateTextureSet 更新贴图集
func UpdateTextureSet(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		var req textureSetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		set, err := setService.Update(c.Request.Context(), setID, req.Name)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set updated successfully", set)
	}
}

// DeleteTextureSet 软删除贴图集
func DeleteTextureSet(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		if err := setService.SoftDelete(c.Request.Context(), setID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set deleted successfully", nil)
	}
}

// AddTexture 向贴图集添加贴图，同类型(按规范化类型)已存在时替换
func AddTexture(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		var req textureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		texture, replaced, err := setService.AddTexture(
			c.Request.Context(), setID, req.FileID, models.TextureType(req.TextureType), req.SourceChannel)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Texture added successfully", gin.H{
			"texture":  texture,
			"replaced": replaced,
		})
	}
}

// RemoveTexture 从贴图集移除贴图
func RemoveTexture(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		textureID, ok := pathID(c, "texture_id")
		if !ok {
			return
		}
		if err := setService.RemoveTexture(c.Request.Context(), setID, textureID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture removed successfully", nil)
	}
}

// AssociateTextureSetVersion 把贴图集关联到模型版本
func AssociateTextureSetVersion(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		var req versionAssociationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := setService.AssociateVersion(c.Request.Context(), setID, req.VersionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set associated with version", nil)
	}
}

// DisassociateTextureSetVersion 解除贴图集与模型版本的关联
func DisassociateTextureSetVersion(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		if err := setService.DisassociateVersion(c.Request.Context(), setID, versionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set disassociated from version", nil)
	}
}

// ListVersionTextureSets 列出版本关联的贴图集
func ListVersionTextureSets(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		sets, err := setService.ListVersionSets(c.Request.Context(), versionID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Version texture sets listed successfully", sets)
	}
}

// SetVersionDefaultTextureSet 设置版本的默认贴图集
func SetVersionDefaultTextureSet(setService assets.TextureSetService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		if err := setService.SetVersionDefault(c.Request.Context(), versionID, setID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Default texture set updated", nil)
	}
}
