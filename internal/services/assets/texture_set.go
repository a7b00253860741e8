package assets

import (
	"context"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TextureSetService 贴图集与贴图的业务逻辑
type TextureSetService interface {
	Create(ctx context.Context, name string) (*models.TextureSet, error)
	Get(ctx context.Context, id uint64) (*models.TextureSet, error)
	List(ctx context.Context) ([]models.TextureSet, error)
	Update(ctx context.Context, id uint64, name string) (*models.TextureSet, error)
	SoftDelete(ctx context.Context, id uint64) error

	// AddTexture 集合内同一规范化类型至多一张，已存在时替换并返回 replaced=true
	AddTexture(ctx context.Context, setID, fileID uint64, textureType models.TextureType, sourceChannel *string) (texture *models.Texture, replaced bool, err error)
	ListTextures(ctx context.Context, setID uint64) ([]models.Texture, error)
	RemoveTexture(ctx context.Context, setID, textureID uint64) error

	// AssociateVersion 重复关联是业务规则冲突
	AssociateVersion(ctx context.Context, setID, versionID uint64) error
	DisassociateVersion(ctx context.Context, setID, versionID uint64) error
	ListVersionSets(ctx context.Context, versionID uint64) ([]models.TextureSet, error)
	// SetVersionDefault 把贴图集设为版本的默认贴图集，集合必须已关联到该版本
	SetVersionDefault(ctx context.Context, versionID, setID uint64) error
}

type textureSetService struct {
	setRepo     repositories.TextureSetRepository
	versionRepo repositories.ModelVersionRepository
	fileRepo    repositories.FileRepository
	tm          TransactionManager
}

// NewTextureSetService 创建一个新的 TextureSetService 实例
func NewTextureSetService(
	setRepo repositories.TextureSetRepository,
	versionRepo repositories.ModelVersionRepository,
	fileRepo repositories.FileRepository,
	tm TransactionManager,
) TextureSetService {
	return &textureSetService{
		setRepo:     setRepo,
		versionRepo: versionRepo,
		fileRepo:    fileRepo,
		tm:          tm,
	}
}

func (s *textureSetService) Create(ctx context.Context, name string) (*models.TextureSet, error) {
	if name == "" {
		return nil, xerr.ErrValidationFailed
	}
	set := &models.TextureSet{Name: name}
	if err := s.setRepo.Create(set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *textureSetService) Get(ctx context.Context, id uint64) (*models.TextureSet, error) {
	set, err := s.setRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if set.IsDeleted {
		return nil, xerr.ErrTextureSetNotFound
	}
	return set, nil
}

func (s *textureSetService) List(ctx context.Context) ([]models.TextureSet, error) {
	return s.setRepo.FindAlive()
}

func (s *textureSetService) Update(ctx context.Context, id uint64, name string) (*models.TextureSet, error) {
	set, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		set.Name = name
	}
	if err := s.setRepo.Update(set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *textureSetService) SoftDelete(ctx context.Context, id uint64) error {
	set, err := s.setRepo.FindByID(id)
	if err != nil {
		return err
	}
	if set.IsDeleted {
		return nil
	}
	return s.setRepo.SoftDelete(id, time.Now())
}

func (s *textureSetService) AddTexture(ctx context.Context, setID, fileID uint64, textureType models.TextureType, sourceChannel *string) (*models.Texture, bool, error) {
	if !textureType.Valid() {
		return nil, false, xerr.ErrTextureTypeInvalid
	}
	if _, err := s.Get(ctx, setID); err != nil {
		return nil, false, err
	}
	if _, err := s.fileRepo.FindByID(fileID); err != nil {
		return nil, false, err
	}

	// 规范化类型的所有别名都算同一个槽位：Diffuse 会替换已有的 Albedo
	canonical := textureType.Canonical()
	var aliases []models.TextureType
	for t := models.TextureTypeAlbedo; t <= models.TextureTypeDisplacement; t++ {
		if t.Valid() && t.Canonical() == canonical {
			aliases = append(aliases, t)
		}
	}

	texture := &models.Texture{
		TextureSetID:  setID,
		FileID:        fileID,
		TextureType:   textureType,
		SourceChannel: sourceChannel,
	}
	replaced := false
	err := s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		setRepo := repositories.NewTextureSetRepository(tx)
		existing, err := setRepo.FindTextureByCanonicalTypes(setID, aliases)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := setRepo.DeleteTexture(existing.ID); err != nil {
				return err
			}
			replaced = true
		}
		return setRepo.CreateTexture(texture)
	})
	if err != nil {
		return nil, false, err
	}

	if replaced {
		logger.Info("AddTexture: Replaced existing texture of same canonical type",
			zap.Uint64("setID", setID), zap.String("type", textureType.String()))
	}
	return texture, replaced, nil
}

func (s *textureSetService) ListTextures(ctx context.Context, setID uint64) ([]models.Texture, error) {
	if _, err := s.Get(ctx, setID); err != nil {
		return nil, err
	}
	return s.setRepo.FindTextures(setID)
}

func (s *textureSetService) RemoveTexture(ctx context.Context, setID, textureID uint64) error {
	if _, err := s.Get(ctx, setID); err != nil {
		return err
	}
	textures, err := s.setRepo.FindTextures(setID)
	if err != nil {
		return err
	}
	for _, texture := range textures {
		if texture.ID == textureID {
			return s.setRepo.DeleteTexture(textureID)
		}
	}
	return xerr.ErrTextureNotFound
}

func (s *textureSetService) AssociateVersion(ctx context.Context, setID, versionID uint64) error {
	if _, err := s.Get(ctx, setID); err != nil {
		return err
	}
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if version.IsDeleted {
		return xerr.ErrVersionNotFound
	}

	exists, err := s.setRepo.VersionAssociationExists(setID, versionID)
	if err != nil {
		return err
	}
	if exists {
		return xerr.ErrDuplicateAssociation
	}
	return s.setRepo.AssociateVersion(setID, versionID)
}

func (s *textureSetService) DisassociateVersion(ctx context.Context, setID, versionID uint64) error {
	exists, err := s.setRepo.VersionAssociationExists(setID, versionID)
	if err != nil {
		return err
	}
	if !exists {
		return xerr.ErrTextureSetNotFound
	}

	return s.tm.WithTransaction(ctx, func(tx *gorm.DB) error {
		setRepo := repositories.NewTextureSetRepository(tx)
		versionRepo := repositories.NewModelVersionRepository(tx)

		if err := setRepo.DisassociateVersion(setID, versionID); err != nil {
			return err
		}

		// 解除关联的集合不能继续当默认
		version, err := versionRepo.FindByID(versionID)
		if err != nil {
			return err
		}
		if version.DefaultTextureSetID != nil && *version.DefaultTextureSetID == setID {
			version.DefaultTextureSetID = nil
			return versionRepo.Update(version)
		}
		return nil
	})
}

func (s *textureSetService) ListVersionSets(ctx context.Context, versionID uint64) ([]models.TextureSet, error) {
	if _, err := s.versionRepo.FindByID(versionID); err != nil {
		return nil, err
	}
	return s.setRepo.FindSetsByVersion(versionID)
}

func (s *textureSetService) SetVersionDefault(ctx context.Context, versionID, setID uint64) error {
	version, err := s.versionRepo.FindByID(versionID)
	if err != nil {
		return err
	}
	if version.IsDeleted {
		return xerr.ErrVersionNotFound
	}
	if _, err := s.Get(ctx, setID); err != nil {
		return err
	}

	exists, err := s.setRepo.VersionAssociationExists(setID, versionID)
	if err != nil {
		return err
	}
	if !exists {
		return xerr.ErrValidationFailed
	}

	version.DefaultTextureSetID = &setID
	return s.versionRepo.Update(version)
}
