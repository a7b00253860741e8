package cache

import (
	"context"
	"fmt"
	"time"
)

// 缓存通用接口
type Cache interface {
	// Set 在缓存中设置一个值，并指定过期时间
	// value 应该是一个可以被 JSON 封送的结构体或指向结构体的指针
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get 从缓存中检索一个值，并将其解编组到目标接口
	// target 应该是一个指针，指向希望解编组成的类型
	Get(ctx context.Context, key string, target any) error

	// 删除一个或多个key
	Del(ctx context.Context, keys ...string) error

	// 检查key是否存在
	Exists(ctx context.Context, key string) (bool, error)

	Expire(ctx context.Context, key string, expiration time.Duration) error
}

func GenerateFileHashKey(sha256Hash string) string {
	return fmt.Sprintf("file:sha256:%s", sha256Hash)
}

func GenerateFileMetadataKey(fileID uint64) string {
	return fmt.Sprintf("file:metadata:%d", fileID)
}

func GenerateModelKey(modelID uint64) string {
	return fmt.Sprintf("model:metadata:%d", modelID)
}

func GenerateThumbnailKey(versionID uint64) string {
	return fmt.Sprintf("thumbnail:version:%d", versionID)
}
