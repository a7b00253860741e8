package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/services/assets"
	"go.uber.org/zap"
)

type packRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type packUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type modelAssociationRequest struct {
	ModelID uint64 `json:"model_id" binding:"required"`
}

type setAssociationRequest struct {
	TextureSetID uint64 `json:"texture_set_id" binding:"required"`
}

// CreatePack 创建资产包
func CreatePack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req packRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		pack, err := packService.CreatePack(c.Request.Context(), req.Name, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Pack created successfully", pack)
	}
}

// ListPacks 分页列出资产包
func ListPacks(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		pageSize := queryInt(c, "page_size", 20)
		packs, total, err := packService.ListPacks(c.Request.Context(), page, pageSize)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Packs listed successfully", gin.H{"packs": packs, "total": total})
	}
}

// GetPack 获取资产包详情(附带关联的模型和贴图集 ID)
func GetPack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		pack, err := packService.GetPack(c.Request.Context(), packID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		modelIDs, err := packService.PackModelIDs(c.Request.Context(), packID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		setIDs, err := packService.PackTextureSetIDs(c.Request.Context(), packID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Pack retrieved successfully", gin.H{
			"pack":            pack,
			"model_ids":       modelIDs,
			"texture_set_ids": setIDs,
		})
	}
}

// UpdatePack 更新资产包
func UpdatePack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		var req packUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		pack, err := packService.UpdatePack(c.Request.Context(), packID, req.Name, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Pack updated successfully", pack)
	}
}

// DeletePack 软删除资产包
func DeletePack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		if err := packService.SoftDeletePack(c.Request.Context(), packID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Pack deleted successfully", nil)
	}
}

// AddModelToPack 把模型加入资产包
func AddModelToPack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		var req modelAssociationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := packService.AddModelToPack(c.Request.Context(), packID, req.ModelID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model added to pack", nil)
	}
}

// RemoveModelFromPack 把模型移出资产包
func RemoveModelFromPack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		if err := packService.RemoveModelFromPack(c.Request.Context(), packID, modelID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model removed from pack", nil)
	}
}

// AddTextureSetToPack 把贴图集加入资产包
func AddTextureSetToPack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		var req setAssociationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := packService.AddTextureSetToPack(c.Request.Context(), packID, req.TextureSetID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set added to pack", nil)
	}
}

// RemoveTextureSetFromPack 把贴图集移出资产包
func RemoveTextureSetFromPack(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		if err := packService.RemoveTextureSetFromPack(c.Request.Context(), packID, setID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set removed from pack", nil)
	}
}

// DownloadPackArchive 把整个资产包打成 ZIP 流式下载
func DownloadPackArchive(archiveService assets.ArchiveService) gin.HandlerFunc {
	return func(c *gin.Context) {
		packID, ok := pathID(c, "pack_id")
		if !ok {
			return
		}
		reader, fileName, err := archiveService.StreamPackArchive(c.Request.Context(), packID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		defer reader.Close()

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
		c.Header("Content-Type", "application/zip")
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, reader); err != nil {
			// 响应头已发出，只能记日志
			logger.Error("DownloadPackArchive: Failed to stream archive", zap.Error(err), zap.Uint64("packID", packID))
		}
	}
}

// CreateProject 创建项目
func CreateProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req packRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		project, err := packService.CreateProject(c.Request.Context(), req.Name, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Project created successfully", project)
	}
}

// ListProjects 分页列出项目
func ListProjects(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		pageSize := queryInt(c, "page_size", 20)
		projects, total, err := packService.ListProjects(c.Request.Context(), page, pageSize)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Projects listed successfully", gin.H{"projects": projects, "total": total})
	}
}

// GetProject 获取项目详情
func GetProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		project, err := packService.GetProject(c.Request.Context(), projectID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		modelIDs, err := packService.ProjectModelIDs(c.Request.Context(), projectID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		setIDs, err := packService.ProjectTextureSetIDs(c.Request.Context(), projectID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Project retrieved successfully", gin.H{
			"project":         project,
			"model_ids":       modelIDs,
			"texture_set_ids": setIDs,
		})
	}
}

// UpdateProject 更新项目
func UpdateProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		var req packUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		project, err := packService.UpdateProject(c.Request.Context(), projectID, req.Name, req.Description)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Project updated successfully", project)
	}
}

// DeleteProject 软删除项目
func DeleteProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		if err := packService.SoftDeleteProject(c.Request.Context(), projectID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Project deleted successfully", nil)
	}
}

// AddModelToProject 把模型加入项目
func AddModelToProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		var req modelAssociationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := packService.AddModelToProject(c.Request.Context(), projectID, req.ModelID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model added to project", nil)
	}
}

// RemoveModelFromProject 把模型移出项目
func RemoveModelFromProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		modelID, ok := pathID(c, "model_id")
		if !ok {
			return
		}
		if err := packService.RemoveModelFromProject(c.Request.Context(), projectID, modelID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Model removed from project", nil)
	}
}

// AddTextureSetToProject 把贴图集加入项目
func AddTextureSetToProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		var req setAssociationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		if err := packService.AddTextureSetToProject(c.Request.Context(), projectID, req.TextureSetID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set added to project", nil)
	}
}

// RemoveTextureSetFromProject 把贴图集移出项目
func RemoveTextureSetFromProject(packService assets.PackService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := pathID(c, "project_id")
		if !ok {
			return
		}
		setID, ok := pathID(c, "set_id")
		if !ok {
			return
		}
		if err := packService.RemoveTextureSetFromProject(c.Request.Context(), projectID, setID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Texture set removed from project", nil)
	}
}
