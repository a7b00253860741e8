package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/services/assets"
)

type versionRequest struct {
	Description string `json:"description"`
}

type reorderRequest struct {
	OrderedIDs []uint64 `json:"ordered_ids" binding:"required"`
}

type versionFileRequest struct {
	FileID uint64 `json:"file_id" binding:"required"`
}

// CreateVersion 为模型创建新版本
func CreateVersion(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		var req versionRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		version, err := versionService.CreateVersion(c.Request.Context(), modelID, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Version created successfully", version)
	}
}

// ListVersions 列出模型的版本
func ListVersions(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		includeDeleted := c.Query("include_deleted") == "true"
		versions, err := versionService.ListVersions(c.Request.Context(), modelID, includeDeleted)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Versions listed successfully", versions)
	}
}

// ReorderVersions 整体重排模型版本的展示顺序
func ReorderVersions(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := versionService.ReorderVersions(c.Request.Context(), modelID, req.OrderedIDs); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Versions reordered successfully", nil)
	}
}

// SetActiveVersion 设置模型的活动版本
func SetActiveVersion(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		if err := versionService.SetActiveVersion(c.Request.Context(), modelID, versionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Active version updated", nil)
	}
}

// AddFileToVersion 把已入库的文件挂进版本
func AddFileToVersion(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		var req versionFileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		alreadyLinked, err := versionService.AddFileToVersion(c.Request.Context(), versionID, req.FileID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "File linked to version", gin.H{"already_linked": alreadyLinked})
	}
}

// ListVersionFiles 列出版本引用的文件
func ListVersionFiles(versionService assets.VersionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		files, err := versionService.ListVersionFiles(c.Request.Context(), versionID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Version files listed successfully", files)
	}
}

// SoftDeleteVersion 软删除版本
func SoftDeleteVersion(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		if err := lifecycle.SoftDeleteVersion(c.Request.Context(), versionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Version soft-deleted successfully", nil)
	}
}

// RestoreVersion 恢复软删除的版本
func RestoreVersion(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		if err := lifecycle.RestoreVersion(c.Request.Context(), versionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Version restored successfully", nil)
	}
}

// PermanentDeleteVersion 物理删除版本
func PermanentDeleteVersion(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		if err := lifecycle.PermanentDeleteVersion(c.Request.Context(), versionID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Version permanently deleted", nil)
	}
}
