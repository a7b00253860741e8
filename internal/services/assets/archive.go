package assets

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
)

// ArchiveService 把资产包打成 ZIP 流式下载
// 布局: {modelName}/v{N}/{originalName} 与 texture_sets/{setName}/{typeName}{ext}
type ArchiveService interface {
	// StreamPackArchive 返回 ZIP 内容读取器和建议的下载文件名，调用方负责关闭
	StreamPackArchive(ctx context.Context, packID uint64) (io.ReadCloser, string, error)
}

type archiveService struct {
	packService PackService
	modelRepo   repositories.ModelRepository
	versionRepo repositories.ModelVersionRepository
	setRepo     repositories.TextureSetRepository
	store       storage.BlobStore
}

// NewArchiveService 创建一个新的 ArchiveService 实例
func NewArchiveService(
	packService PackService,
	modelRepo repositories.ModelRepository,
	versionRepo repositories.ModelVersionRepository,
	setRepo repositories.TextureSetRepository,
	store storage.BlobStore,
) ArchiveService {
	return &archiveService{
		packService: packService,
		modelRepo:   modelRepo,
		versionRepo: versionRepo,
		setRepo:     setRepo,
		store:       store,
	}
}

func (s *archiveService) StreamPackArchive(ctx context.Context, packID uint64) (io.ReadCloser, string, error) {
	pack, err := s.packService.GetPack(ctx, packID)
	if err != nil {
		return nil, "", err
	}
	modelIDs, err := s.packService.PackModelIDs(ctx, packID)
	if err != nil {
		return nil, "", err
	}
	setIDs, err := s.packService.PackTextureSetIDs(ctx, packID)
	if err != nil {
		return nil, "", err
	}

	// pipe 流式压缩，避免把整个包先落到内存或磁盘
	pr, pw := io.Pipe()
	go func() {
		zipWriter := zip.NewWriter(pw)

		for _, modelID := range modelIDs {
			if err := s.writeModelEntries(ctx, zipWriter, modelID); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		for _, setID := range setIDs {
			if err := s.writeTextureSetEntries(ctx, zipWriter, setID); err != nil {
				pw.CloseWithError(err)
				return
			}
		}

		if err := zipWriter.Close(); err != nil {
			pw.CloseWithError(fmt.Errorf("failed to close zip writer: %w", err))
			return
		}
		pw.Close()
		logger.Info("StreamPackArchive: ZIP creation finished", zap.Uint64("packID", packID))
	}()

	return pr, pack.Name + ".zip", nil
}

func (s *archiveService) writeModelEntries(ctx context.Context, zipWriter *zip.Writer, modelID uint64) error {
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return err
	}
	if model.IsDeleted {
		logger.Warn("writeModelEntries: Skipping soft-deleted model in archive", zap.Uint64("modelID", modelID))
		return nil
	}

	versions, err := s.versionRepo.FindByModelID(modelID, false)
	if err != nil {
		return err
	}
	for _, version := range versions {
		files, err := s.versionRepo.FindFiles(version.ID)
		if err != nil {
			return err
		}
		for i := range files {
			entryPath := path.Join(model.Name, fmt.Sprintf("v%d", version.VersionNumber), files[i].OriginalName)
			if err := s.writeFileEntry(ctx, zipWriter, entryPath, &files[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *archiveService) writeTextureSetEntries(ctx context.Context, zipWriter *zip.Writer, setID uint64) error {
	set, err := s.setRepo.FindByID(setID)
	if err != nil {
		return err
	}
	if set.IsDeleted {
		return nil
	}

	textures, err := s.setRepo.FindTextures(setID)
	if err != nil {
		return err
	}
	for _, texture := range textures {
		if texture.File == nil {
			continue
		}
		name := texture.TextureType.String() + path.Ext(texture.File.OriginalName)
		entryPath := path.Join("texture_sets", set.Name, name)
		if err := s.writeFileEntry(ctx, zipWriter, entryPath, texture.File); err != nil {
			return err
		}
	}
	return nil
}

func (s *archiveService) writeFileEntry(ctx context.Context, zipWriter *zip.Writer, entryPath string, file *models.File) error {
	result, err := s.store.Get(ctx, file.RelativePath)
	if err != nil {
		// 单个文件缺失不让整个归档失败
		logger.Warn("writeFileEntry: Blob missing, skipping archive entry",
			zap.Error(err), zap.Uint64("fileID", file.ID), zap.String("entry", entryPath))
		return nil
	}
	defer result.Reader.Close()

	header := &zip.FileHeader{
		Name:     entryPath,
		Method:   zip.Deflate,
		Modified: file.UpdatedAt,
	}
	if file.SizeBytes > 0 {
		header.UncompressedSize64 = uint64(file.SizeBytes)
	}

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", entryPath, err)
	}
	if _, err := io.Copy(writer, result.Reader); err != nil {
		return fmt.Errorf("failed to copy %s into zip: %w", entryPath, err)
	}
	return nil
}
