package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/cache"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"go.uber.org/zap"
)

// 文件元数据缓存过期时间
// 上传去重路径上 FindBySha256Hash 是热点查询，其余操作直接透传
const fileCacheTTL = 10 * time.Minute

type cachedFileRepository struct {
	next  FileRepository // 链条中的下一层(数据库实现)
	cache cache.Cache
}

// NewCachedFileRepository 用缓存装饰一个 FileRepository
func NewCachedFileRepository(next FileRepository, c cache.Cache) FileRepository {
	return &cachedFileRepository{
		next:  next,
		cache: c,
	}
}

func (r *cachedFileRepository) Create(file *models.File) error {
	if err := r.next.Create(file); err != nil {
		return err
	}

	ctx := context.Background()
	if err := r.cache.Set(ctx, cache.GenerateFileHashKey(file.Sha256Hash), file, fileCacheTTL); err != nil {
		logger.Warn("Create: failed to warm file cache", zap.Uint64("fileID", file.ID), zap.Error(err))
	}
	return nil
}

func (r *cachedFileRepository) FindByID(id uint64) (*models.File, error) {
	ctx := context.Background()
	key := cache.GenerateFileMetadataKey(id)

	var cached models.File
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindByID: cache read failed, falling back to DB", zap.Uint64("fileID", id), zap.Error(err))
	}

	file, err := r.next.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, file, fileCacheTTL); err != nil {
		logger.Warn("FindByID: failed to populate file cache", zap.Uint64("fileID", id), zap.Error(err))
	}
	return file, nil
}

func (r *cachedFileRepository) FindBySha256Hash(sha256Hash string) (*models.File, error) {
	ctx := context.Background()
	key := cache.GenerateFileHashKey(sha256Hash)

	var cached models.File
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("FindBySha256Hash: cache read failed, falling back to DB", zap.String("sha256", sha256Hash), zap.Error(err))
	}

	file, err := r.next.FindBySha256Hash(sha256Hash)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, file, fileCacheTTL); err != nil {
		logger.Warn("FindBySha256Hash: failed to populate file cache", zap.String("sha256", sha256Hash), zap.Error(err))
	}
	return file, nil
}

func (r *cachedFileRepository) FindDeleted() ([]models.File, error) {
	return r.next.FindDeleted()
}

func (r *cachedFileRepository) Update(file *models.File) error {
	if err := r.next.Update(file); err != nil {
		return err
	}
	r.invalidate(file.ID, file.Sha256Hash)
	return nil
}

func (r *cachedFileRepository) SoftDelete(id uint64, now time.Time) error {
	if err := r.next.SoftDelete(id, now); err != nil {
		return err
	}
	r.invalidateWithLookup(id)
	return nil
}

func (r *cachedFileRepository) Restore(id uint64) error {
	if err := r.next.Restore(id); err != nil {
		return err
	}
	r.invalidateWithLookup(id)
	return nil
}

// invalidateWithLookup 回查一次数据库，把按 ID 和按哈希的键都清掉
// 生命周期标记变了之后，哈希键里缓存的旧快照同样不能再用
func (r *cachedFileRepository) invalidateWithLookup(id uint64) {
	if file, err := r.next.FindByID(id); err == nil {
		r.invalidate(id, file.Sha256Hash)
		return
	}
	r.invalidateByID(id)
}

func (r *cachedFileRepository) HardDelete(id uint64) error {
	// 先读一次拿到哈希，保证哈希键也被清掉
	file, err := r.next.FindByID(id)
	if err != nil && !errors.Is(err, xerr.ErrFileNotFound) {
		return err
	}
	if err := r.next.HardDelete(id); err != nil {
		return err
	}
	if file != nil {
		r.invalidate(id, file.Sha256Hash)
	} else {
		r.invalidateByID(id)
	}
	return nil
}

func (r *cachedFileRepository) CountLiveReferences(fileID uint64, excludeVersionID uint64) (int64, error) {
	// 引用计数是删除正确性的前提，永远不走缓存
	return r.next.CountLiveReferences(fileID, excludeVersionID)
}

func (r *cachedFileRepository) CountLiveTextureReferences(fileID uint64) (int64, error) {
	return r.next.CountLiveTextureReferences(fileID)
}

func (r *cachedFileRepository) invalidate(id uint64, sha256Hash string) {
	ctx := context.Background()
	if err := r.cache.Del(ctx, cache.GenerateFileMetadataKey(id), cache.GenerateFileHashKey(sha256Hash)); err != nil {
		logger.Warn("invalidate: failed to drop file cache keys", zap.Uint64("fileID", id), zap.Error(err))
	}
}

func (r *cachedFileRepository) invalidateByID(id uint64) {
	ctx := context.Background()
	if err := r.cache.Del(ctx, cache.GenerateFileMetadataKey(id)); err != nil {
		logger.Warn("invalidateByID: failed to drop file cache key", zap.Uint64("fileID", id), zap.Error(err))
	}
}
