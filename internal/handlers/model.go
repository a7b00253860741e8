package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/search"
	"github.com/modelibr/modelibr/internal/services/assets"
)

type modelRequest struct {
	Name        string `json:"name" binding:"required"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
}

type modelUpdateRequest struct {
	Name        string `json:"name"`
	Tags        string `json:"tags"`
	Description string `json:"description"`
}

// CreateModel 创建模型
func CreateModel(modelService assets.ModelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req modelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		model, err := modelService.Create(c.Request.Context(), req.Name, req.Tags, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Model created successfully", model)
	}
}

// ListModels 列出所有未删除的模型
func ListModels(modelService assets.ModelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := modelService.List(c.Request.Context())
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Models listed successfully", result)
	}
}

// GetModel 获取单个模型
func GetModel(modelService assets.ModelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		model, err := modelService.Get(c.Request.Context(), id)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model retrieved successfully", model)
	}
}

// UpdateModel 更新模型元数据
func UpdateModel(modelService assets.ModelService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		var req modelUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		model, err := modelService.Update(c.Request.Context(), id, req.Name, req.Tags, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model updated successfully", model)
	}
}

// SearchModels 按关键词检索模型
func SearchModels(searchService *search.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		keyword := c.Query("q")
		result, err := searchService.Search(c.Request.Context(), keyword)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Search completed", result)
	}
}

// SoftDeleteModel 软删除模型
func SoftDeleteModel(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		if err := lifecycle.SoftDeleteModel(c.Request.Context(), id); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model soft-deleted successfully", nil)
	}
}

// RestoreModel 恢复软删除的模型
func RestoreModel(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		if err := lifecycle.RestoreModel(c.Request.Context(), id); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model restored successfully", nil)
	}
}

// PermanentDeleteModel 物理删除模型及其版本
func PermanentDeleteModel(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		if err := lifecycle.PermanentDeleteModel(c.Request.Context(), id); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model permanently deleted", nil)
	}
}
