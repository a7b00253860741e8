package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
)

// LocalBlobStore 把对象存储在本地文件系统的上传目录下
// 这是默认后端：资产库通常与渲染 worker 共享同一块盘
type LocalBlobStore struct {
	root string
	cfg  *config.StorageConfig
}

func NewLocalBlobStore(cfg *config.StorageConfig) (*LocalBlobStore, error) {
	root := cfg.LocalBasePath
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		logger.Error("初始化本地存储目录失败", zap.String("root", root), zap.Error(err))
		return nil, fmt.Errorf("无法创建本地存储目录: %w", err)
	}
	logger.Info("本地存储初始化成功", zap.String("root", root))
	return &LocalBlobStore{root: root, cfg: cfg}, nil
}

func (s *LocalBlobStore) fullPath(relativePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relativePath))
}

// Put 先写入同目录下的临时文件再原子改名
// 中途失败只会留下临时文件，不会出现内容不完整的目标对象
func (s *LocalBlobStore) Put(ctx context.Context, relativePath string, reader io.Reader, objectSize int64, contentType string) (PutResult, error) {
	target := s.fullPath(relativePath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("创建对象目录失败: %w", err)
	}

	tmp := target + ".tmp." + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return PutResult{}, fmt.Errorf("创建临时文件失败: %w", err)
	}

	written, err := io.Copy(f, reader)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return PutResult{}, fmt.Errorf("写入对象失败: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return PutResult{}, fmt.Errorf("提交对象失败: %w", err)
	}

	return PutResult{Key: relativePath, Size: written}, nil
}

func (s *LocalBlobStore) Get(ctx context.Context, relativePath string) (GetResult, error) {
	f, err := os.Open(s.fullPath(relativePath))
	if err != nil {
		return GetResult{}, fmt.Errorf("打开对象失败: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return GetResult{}, fmt.Errorf("读取对象信息失败: %w", err)
	}
	return GetResult{
		Reader:   f,
		Size:     info.Size(),
		MimeType: mime.TypeByExtension(filepath.Ext(relativePath)),
	}, nil
}

func (s *LocalBlobStore) Remove(ctx context.Context, relativePath string) error {
	err := os.Remove(s.fullPath(relativePath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	return nil
}

func (s *LocalBlobStore) Exists(ctx context.Context, relativePath string) (bool, error) {
	_, err := os.Stat(s.fullPath(relativePath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("检查对象存在性失败: %w", err)
}

// ObjectURL 本地后端没有可公开的URL，由 API 层代理下载
func (s *LocalBlobStore) ObjectURL(relativePath string) string {
	return ""
}
