package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/modelibr/modelibr/internal/config"
)

// BlobStore 定义了按路径寻址的字节存储接口
// 约定：资产位于 {root}/{relativePath}，预览图位于 {root}/previews/{sha256}.png
type BlobStore interface {
	// Put 写入对象，返回写入结果或错误
	// 实现必须保证写入的原子性：失败时不能留下可被读到的半成品对象
	Put(ctx context.Context, relativePath string, reader io.Reader, objectSize int64, contentType string) (PutResult, error)
	// Get 打开对象读取器，调用方负责关闭
	Get(ctx context.Context, relativePath string) (GetResult, error)
	// Remove 删除对象，对象不存在时不报错
	Remove(ctx context.Context, relativePath string) error
	// Exists 检查对象是否存在
	Exists(ctx context.Context, relativePath string) (bool, error)
	// ObjectURL 获取对象的访问URL(如果后端支持)
	ObjectURL(relativePath string) string
}

type PutResult struct {
	Key  string
	Size int64
	ETag string
}

type GetResult struct {
	Reader   io.ReadCloser // 文件内容读取器，需要在使用后关闭
	Size     int64
	MimeType string
}

// ObjectPathForHash 根据内容哈希派生确定性的存储路径
// 前两级按哈希前缀分桶，避免单目录文件数过多
func ObjectPathForHash(sha256Hash string) string {
	if len(sha256Hash) < 4 {
		return sha256Hash
	}
	return path.Join(sha256Hash[0:2], sha256Hash[2:4], sha256Hash)
}

// PreviewPathForHash 预览图路径约定: previews/{sha256}.png
// channel 非空时使用 _{channel} 后缀(通道分离预览)
func PreviewPathForHash(sha256Hash, channel string) string {
	if channel != "" {
		return path.Join("previews", fmt.Sprintf("%s_%s.png", sha256Hash, channel))
	}
	return path.Join("previews", sha256Hash+".png")
}

// NewBlobStore 根据配置选择存储后端
func NewBlobStore(cfg *config.Config) (BlobStore, error) {
	switch cfg.Storage.Type {
	case "local", "":
		return NewLocalBlobStore(&cfg.Storage)
	case "minio":
		return NewMinIOBlobStore(&cfg.MinIO)
	case "aliyun_oss":
		return NewAliyunOSSBlobStore(&cfg.AliyunOSS)
	default:
		return nil, errors.New("invalid storage type: " + cfg.Storage.Type)
	}
}
