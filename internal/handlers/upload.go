package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/services/assets"
)

// UploadModel 上传文件并创建新模型(自动建版本 1)
// 表单字段: file(必填), name(可选，缺省用文件名)
func UploadModel(uploadService assets.UploadService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "missing file field")
			return
		}
		stream, err := fileHeader.Open()
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "failed to open uploaded file")
			return
		}
		defer stream.Close()

		result, err := uploadService.UploadNewModel(
			c.Request.Context(),
			c.PostForm("name"),
			stream,
			fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"),
		)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "Model uploaded successfully", result)
	}
}

// UploadToVersion 上传文件并挂进已有版本
func UploadToVersion(uploadService assets.UploadService) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, ok := pathID(c, "version_id")
		if !ok {
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, "missing file field")
			return
		}
		stream, err := fileHeader.Open()
		if err != nil {
			xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "failed to open uploaded file")
			return
		}
		defer stream.Close()

		result, err := uploadService.UploadToVersion(
			c.Request.Context(),
			versionID,
			stream,
			fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"),
		)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusCreated, "File uploaded successfully", result)
	}
}
