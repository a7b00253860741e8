package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/thumbnail"
)

type enqueueRequest struct {
	ModelID   uint64  `json:"model_id" binding:"required"`
	VersionID *uint64 `json:"version_id"`
}

// GetThumbnail 获取版本的缩略图记录
func GetThumbnail(thumbnailRepo repositories.ThumbnailRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		record, err := thumbnailRepo.FindByVersionID(versionID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Thumbnail retrieved successfully", record)
	}
}

// GetThumbnailFile 下载版本缩略图的 PNG 内容
func GetThumbnailFile(thumbnailRepo repositories.ThumbnailRepository, store storage.BlobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		record, err := thumbnailRepo.FindByVersionID(versionID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		if record.Status != models.ThumbnailStatusReady || record.RelativePath == "" {
			xerr.Error(c, http.StatusNotFound, xerr.ThumbnailNotFoundCode, xerr.ErrThumbnailNotFound.Error())
			return
		}
		result, err := store.Get(c.Request.Context(), record.RelativePath)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		defer result.Reader.Close()
		c.DataFromReader(http.StatusOK, result.Size, "image/png", result.Reader, nil)
	}
}

// EnqueueThumbnailJob 手动入队一个缩略图渲染任务(幂等)
func EnqueueThumbnailJob(queue thumbnail.QueueService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		job, err := queue.Enqueue(c.Request.Context(), req.ModelID, req.VersionID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Thumbnail job enqueued", job)
	}
}

// GetThumbnailJob 获取任务当前状态
func GetThumbnailJob(queue thumbnail.QueueService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := pathID(c, "job_id")
		if !ok {
			return
		}
		job, err := queue.GetJob(c.Request.Context(), jobID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Job retrieved successfully", job)
	}
}

// ListThumbnailJobEvents 查看任务的审计事件流
func ListThumbnailJobEvents(queue thumbnail.QueueService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := pathID(c, "job_id")
		if !ok {
			return
		}
		events, err := queue.ListJobEvents(c.Request.Context(), jobID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Job events listed successfully", events)
	}
}
