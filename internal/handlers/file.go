package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/services/assets"
)

// DownloadFile 下载文件原始内容
func DownloadFile(contentStore assets.ContentStoreService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID, ok := pathID(c, "file_id")
		if !ok {
			return
		}
		file, result, err := contentStore.Open(c.Request.Context(), fileID)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		defer result.Reader.Close()

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
		c.Header("Content-Length", strconv.FormatInt(result.Size, 10))
		c.DataFromReader(http.StatusOK, result.Size, result.MimeType, result.Reader, nil)
	}
}

// ListRecycleBin 分页列出回收站里等待清除的文件
func ListRecycleBin(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		pageSize := queryInt(c, "page_size", 20)
		records, total, err := lifecycle.ListRecycleBin(c.Request.Context(), page, pageSize)
		if err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "Recycle bin listed successfully", gin.H{
			"records": records,
			"total":   total,
		})
	}
}

// RestoreRecycledFile 撤销文件的待清除状态
func RestoreRecycledFile(lifecycle assets.LifecycleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID, ok := pathID(c, "file_id")
		if !ok {
			return
		}
		if err := lifecycle.RestoreRecycledFile(c.Request.Context(), fileID); err != nil {
			xerr.FromError(c, err)
			return
		}
		xerr.Success(c, http.StatusOK, "File restored from recycle bin", nil)
	}
}
