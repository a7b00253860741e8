package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentStoreService 内容寻址的文件入库服务
// 文件身份由 SHA-256 决定：同样的字节序列不论上传多少次都解析到同一条 files 记录
type ContentStoreService interface {
	// StoreOrGet 存储上传内容，重复内容直接复用已有记录
	// created 为 false 表示命中去重(或复活了一条软删除记录)
	StoreOrGet(ctx context.Context, reader io.Reader, originalName, declaredMime string) (file *models.File, created bool, err error)
	// Open 打开文件内容，调用方负责关闭 Reader
	Open(ctx context.Context, fileID uint64) (*models.File, storage.GetResult, error)
	// RemoveBlob 物理删除文件字节，只能在引用计数归零并走完回收宽限期后调用
	RemoveBlob(ctx context.Context, file *models.File) error
}

type contentStoreService struct {
	fileRepo repositories.FileRepository
	tm       TransactionManager
	store    storage.BlobStore
}

// NewContentStoreService 创建一个新的 ContentStoreService 实例
func NewContentStoreService(fileRepo repositories.FileRepository, tm TransactionManager, store storage.BlobStore) ContentStoreService {
	return &contentStoreService{
		fileRepo: fileRepo,
		tm:       tm,
		store:    store,
	}
}

func (s *contentStoreService) StoreOrGet(ctx context.Context, reader io.Reader, originalName, declaredMime string) (*models.File, bool, error) {
	// 先落临时文件边写边算哈希，哈希算完才知道最终存储路径
	tmpFile, err := os.CreateTemp("", "modelibr-upload-*")
	if err != nil {
		return nil, false, fmt.Errorf("failed to create spool file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	hasher := sha256.New()
	size, err := io.Copy(tmpFile, io.TeeReader(reader, hasher))
	if err != nil {
		return nil, false, fmt.Errorf("failed to spool upload: %w", err)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	// 去重查找包含软删除行：哈希列有唯一约束，软删除的同哈希记录必须复活而不是新建
	existing, err := s.fileRepo.FindBySha256Hash(hash)
	if err != nil && !errors.Is(err, xerr.ErrFileNotFound) {
		return nil, false, err
	}
	if existing != nil {
		if existing.IsDeleted {
			if err := s.resurrect(ctx, existing, tmpPath, size); err != nil {
				return nil, false, err
			}
			logger.Info("StoreOrGet: Resurrected soft-deleted file for re-uploaded content",
				zap.Uint64("fileID", existing.ID), zap.String("hash", hash))
			return existing, false, nil
		}
		logger.Info("StoreOrGet: Content already stored, reusing file record",
			zap.Uint64("fileID", existing.ID), zap.String("hash", hash))
		return existing, false, nil
	}

	relativePath := storage.ObjectPathForHash(hash)
	mimeType := s.resolveMime(tmpPath, originalName, declaredMime)

	if err := s.putFromSpool(ctx, tmpPath, relativePath, size, mimeType); err != nil {
		return nil, false, err
	}

	file := &models.File{
		Sha256Hash:   hash,
		OriginalName: originalName,
		StoredName:   filepath.Base(relativePath),
		RelativePath: relativePath,
		MimeType:     mimeType,
		SizeBytes:    size,
	}
	err = s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return repositories.NewFileRepository(tx).Create(file)
	})
	if err != nil {
		// 并发上传同一内容时唯一索引会拒绝后到者，回读取胜者即可
		winner, findErr := s.fileRepo.FindBySha256Hash(hash)
		if findErr == nil && winner != nil {
			logger.Warn("StoreOrGet: Lost insert race for content hash, reusing winner row",
				zap.String("hash", hash), zap.Uint64("fileID", winner.ID))
			return winner, false, nil
		}
		return nil, false, err
	}

	logger.Info("StoreOrGet: Stored new content",
		zap.Uint64("fileID", file.ID), zap.String("hash", hash), zap.Int64("size", size))
	return file, true, nil
}

// resurrect 复活一条软删除的同哈希记录：恢复生命周期标记并确保字节仍在
// 元数据保留首次上传时的值，复活不覆盖
func (s *contentStoreService) resurrect(ctx context.Context, file *models.File, spoolPath string, size int64) error {
	exists, err := s.store.Exists(ctx, file.RelativePath)
	if err != nil {
		return fmt.Errorf("failed to check blob existence: %w", err)
	}
	if !exists {
		// 字节已被清除但记录还在，重新写入
		if err := s.putFromSpool(ctx, spoolPath, file.RelativePath, size, file.MimeType); err != nil {
			return err
		}
	}
	if err := s.fileRepo.Restore(file.ID); err != nil {
		return err
	}
	file.Restore()
	return nil
}

func (s *contentStoreService) putFromSpool(ctx context.Context, spoolPath, relativePath string, size int64, mimeType string) error {
	src, err := os.Open(spoolPath)
	if err != nil {
		return fmt.Errorf("failed to reopen spool file: %w", err)
	}
	defer src.Close()

	if _, err := s.store.Put(ctx, relativePath, src, size, mimeType); err != nil {
		logger.Error("putFromSpool: Failed to write blob to storage", zap.Error(err), zap.String("path", relativePath))
		return fmt.Errorf("failed to store blob: %w", err)
	}
	return nil
}

// resolveMime 确定文件的 MIME 类型：优先用客户端声明，否则嗅探文件头
func (s *contentStoreService) resolveMime(spoolPath, originalName, declaredMime string) string {
	if declaredMime != "" && declaredMime != "application/octet-stream" {
		return declaredMime
	}
	src, err := os.Open(spoolPath)
	if err != nil {
		return "application/octet-stream"
	}
	defer src.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	if n == 0 {
		return "application/octet-stream"
	}
	sniffed := http.DetectContentType(head[:n])
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(filepath.Ext(originalName)); byExt != "" {
		return byExt
	}
	if declaredMime != "" {
		return declaredMime
	}
	return "application/octet-stream"
}

func (s *contentStoreService) Open(ctx context.Context, fileID uint64) (*models.File, storage.GetResult, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, storage.GetResult{}, err
	}
	result, err := s.store.Get(ctx, file.RelativePath)
	if err != nil {
		logger.Error("Open: Failed to open blob", zap.Error(err), zap.Uint64("fileID", fileID), zap.String("path", file.RelativePath))
		return nil, storage.GetResult{}, fmt.Errorf("failed to open blob: %w", err)
	}
	if result.MimeType == "" {
		result.MimeType = file.MimeType
	}
	return file, result, nil
}

func (s *contentStoreService) RemoveBlob(ctx context.Context, file *models.File) error {
	if err := s.store.Remove(ctx, file.RelativePath); err != nil {
		logger.Error("RemoveBlob: Failed to remove blob from storage", zap.Error(err), zap.Uint64("fileID", file.ID))
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}
