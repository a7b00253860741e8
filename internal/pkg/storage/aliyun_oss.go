package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
)

// AliyunOSSBlobStore 阿里云 OSS 后端
type AliyunOSSBlobStore struct {
	client *oss.Client
	cfg    *config.AliyunOSSConfig
}

// NewAliyunOSSBlobStore 创建并返回一个 AliyunOSSBlobStore 实例
func NewAliyunOSSBlobStore(cfg *config.AliyunOSSConfig) (*AliyunOSSBlobStore, error) {
	// OSS Endpoint 应该包含 http:// 或 https:// 前缀
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSBlobStore{
		client: ossClient,
		cfg:    cfg,
	}, nil
}

func (s *AliyunOSSBlobStore) bucket() (*oss.Bucket, error) {
	bucket, err := s.client.Bucket(s.cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	return bucket, nil
}

func (s *AliyunOSSBlobStore) Put(ctx context.Context, relativePath string, reader io.Reader, objectSize int64, contentType string) (PutResult, error) {
	bucket, err := s.bucket()
	if err != nil {
		return PutResult{}, err
	}

	options := []oss.Option{
		oss.ContentType(contentType),
	}
	if err := bucket.PutObject(relativePath, reader, options...); err != nil {
		return PutResult{}, fmt.Errorf("阿里云OSS上传文件失败: %w", err)
	}

	// PutObject 不返回对象信息，沿用调用方传入的尺寸
	return PutResult{
		Key:  relativePath,
		Size: objectSize,
	}, nil
}

func (s *AliyunOSSBlobStore) Get(ctx context.Context, relativePath string) (GetResult, error) {
	bucket, err := s.bucket()
	if err != nil {
		return GetResult{}, err
	}

	reader, err := bucket.GetObject(relativePath)
	if err != nil {
		return GetResult{}, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}

	size := int64(-1)
	mimeType := ""
	if meta, err := bucket.GetObjectDetailedMeta(relativePath); err == nil {
		if lenStr := meta.Get("Content-Length"); lenStr != "" {
			if parsed, err := strconv.ParseInt(lenStr, 10, 64); err == nil {
				size = parsed
			}
		}
		mimeType = meta.Get("Content-Type")
	} else {
		logger.Warn("获取OSS对象元数据失败", zap.String("object", relativePath), zap.Error(err))
	}

	return GetResult{
		Reader:   reader,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

func (s *AliyunOSSBlobStore) Remove(ctx context.Context, relativePath string) error {
	bucket, err := s.bucket()
	if err != nil {
		return err
	}
	if err := bucket.DeleteObject(relativePath); err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

func (s *AliyunOSSBlobStore) Exists(ctx context.Context, relativePath string) (bool, error) {
	bucket, err := s.bucket()
	if err != nil {
		return false, err
	}
	exists, err := bucket.IsObjectExist(relativePath)
	if err != nil {
		return false, fmt.Errorf("检查OSS对象存在性失败: %w", err)
	}
	return exists, nil
}

func (s *AliyunOSSBlobStore) ObjectURL(relativePath string) string {
	scheme := "https"
	if !s.cfg.UseSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.cfg.BucketName, s.cfg.Endpoint, relativePath)
}
