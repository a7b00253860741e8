package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"go.uber.org/zap"
)

// MinIOBlobStore 把对象存储在 MinIO 的单个存储桶下
type MinIOBlobStore struct {
	client *minio.Client
	cfg    *config.MinIOConfig
}

// NewMinIOBlobStore 创建并返回一个 MinIOBlobStore 实例
func NewMinIOBlobStore(cfg *config.MinIOConfig) (*MinIOBlobStore, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	}

	minioClient, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		logger.Error("初始化 MinIO 客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化 MinIO 客户端: %w", err)
	}

	s := &MinIOBlobStore{client: minioClient, cfg: cfg}
	if err := s.ensureBucket(context.Background()); err != nil {
		return nil, err
	}

	logger.Info("MinIO 客户端初始化成功", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.BucketName))
	return s, nil
}

func (s *MinIOBlobStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.BucketName)
	if err != nil {
		return fmt.Errorf("检查 MinIO 存储桶存在性失败: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
	}
	logger.Info("MinIO 存储桶创建成功", zap.String("bucket", s.cfg.BucketName))
	return nil
}

// Put MinIO 的 PutObject 本身是原子的：未完成的上传不会出现在桶里
func (s *MinIOBlobStore) Put(ctx context.Context, relativePath string, reader io.Reader, objectSize int64, contentType string) (PutResult, error) {
	info, err := s.client.PutObject(ctx, s.cfg.BucketName, relativePath, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("MinIO 上传文件失败: %w", err)
	}
	return PutResult{
		Key:  info.Key,
		Size: info.Size,
		ETag: info.ETag,
	}, nil
}

func (s *MinIOBlobStore) Get(ctx context.Context, relativePath string) (GetResult, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.BucketName, relativePath, minio.GetObjectOptions{})
	if err != nil {
		return GetResult{}, fmt.Errorf("MinIO 获取文件失败: %w", err)
	}
	// 获取对象信息，这里需要 Stat 调用才能拿到
	objectStat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return GetResult{}, fmt.Errorf("MinIO 获取文件信息失败: %w", err)
	}

	return GetResult{
		Reader:   obj,
		Size:     objectStat.Size,
		MimeType: objectStat.ContentType,
	}, nil
}

func (s *MinIOBlobStore) Remove(ctx context.Context, relativePath string) error {
	err := s.client.RemoveObject(ctx, s.cfg.BucketName, relativePath, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("MinIO 删除文件失败: %w", err)
	}
	return nil
}

func (s *MinIOBlobStore) Exists(ctx context.Context, relativePath string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.BucketName, relativePath, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("检查 MinIO 对象存在性失败: %w", err)
	}
	return true, nil
}

// ObjectURL MinIO 的 URL 格式: Endpoint/bucketName/objectName
func (s *MinIOBlobStore) ObjectURL(relativePath string) string {
	endpoint := s.cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if s.cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	return fmt.Sprintf("%s/%s/%s", endpoint, s.cfg.BucketName, relativePath)
}
