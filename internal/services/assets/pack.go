package assets

import (
	"context"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
)

// PackService 资产包与项目的分组管理
// 两者表结构一致，包表示已交付的资产集合，项目表示进行中的工作集
type PackService interface {
	CreatePack(ctx context.Context, name, description string) (*models.Pack, error)
	GetPack(ctx context.Context, id uint64) (*models.Pack, error)
	ListPacks(ctx context.Context, page, pageSize int) ([]models.Pack, int64, error)
	UpdatePack(ctx context.Context, id uint64, name, description string) (*models.Pack, error)
	SoftDeletePack(ctx context.Context, id uint64) error

	AddModelToPack(ctx context.Context, packID, modelID uint64) error
	RemoveModelFromPack(ctx context.Context, packID, modelID uint64) error
	AddTextureSetToPack(ctx context.Context, packID, setID uint64) error
	RemoveTextureSetFromPack(ctx context.Context, packID, setID uint64) error
	PackModelIDs(ctx context.Context, packID uint64) ([]uint64, error)
	PackTextureSetIDs(ctx context.Context, packID uint64) ([]uint64, error)

	CreateProject(ctx context.Context, name, description string) (*models.Project, error)
	GetProject(ctx context.Context, id uint64) (*models.Project, error)
	ListProjects(ctx context.Context, page, pageSize int) ([]models.Project, int64, error)
	UpdateProject(ctx context.Context, id uint64, name, description string) (*models.Project, error)
	SoftDeleteProject(ctx context.Context, id uint64) error

	AddModelToProject(ctx context.Context, projectID, modelID uint64) error
	RemoveModelFromProject(ctx context.Context, projectID, modelID uint64) error
	AddTextureSetToProject(ctx context.Context, projectID, setID uint64) error
	RemoveTextureSetFromProject(ctx context.Context, projectID, setID uint64) error
	ProjectModelIDs(ctx context.Context, projectID uint64) ([]uint64, error)
	ProjectTextureSetIDs(ctx context.Context, projectID uint64) ([]uint64, error)
}

type packService struct {
	packRepo    repositories.PackRepository
	projectRepo repositories.ProjectRepository
	modelRepo   repositories.ModelRepository
	setRepo     repositories.TextureSetRepository
}

// NewPackService 创建一个新的 PackService 实例
func NewPackService(
	packRepo repositories.PackRepository,
	projectRepo repositories.ProjectRepository,
	modelRepo repositories.ModelRepository,
	setRepo repositories.TextureSetRepository,
) PackService {
	return &packService{
		packRepo:    packRepo,
		projectRepo: projectRepo,
		modelRepo:   modelRepo,
		setRepo:     setRepo,
	}
}

func (s *packService) CreatePack(ctx context.Context, name, description string) (*models.Pack, error) {
	if name == "" {
		return nil, xerr.ErrValidationFailed
	}
	pack := &models.Pack{Name: name, Description: description}
	if err := s.packRepo.Create(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

func (s *packService) GetPack(ctx context.Context, id uint64) (*models.Pack, error) {
	pack, err := s.packRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if pack.IsDeleted {
		return nil, xerr.ErrPackNotFound
	}
	return pack, nil
}

func (s *packService) ListPacks(ctx context.Context, page, pageSize int) ([]models.Pack, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.packRepo.FindAlive(page, pageSize)
}

func (s *packService) UpdatePack(ctx context.Context, id uint64, name, description string) (*models.Pack, error) {
	pack, err := s.GetPack(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		pack.Name = name
	}
	pack.Description = description
	if err := s.packRepo.Update(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

func (s *packService) SoftDeletePack(ctx context.Context, id uint64) error {
	pack, err := s.packRepo.FindByID(id)
	if err != nil {
		return err
	}
	if pack.IsDeleted {
		return nil
	}
	pack.MarkDeleted(time.Now())
	return s.packRepo.Update(pack)
}

func (s *packService) AddModelToPack(ctx context.Context, packID, modelID uint64) error {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return err
	}
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return err
	}
	if model.IsDeleted {
		return xerr.ErrModelNotFound
	}

	alreadyLinked, err := s.packRepo.AddModel(packID, modelID)
	if err != nil {
		return err
	}
	if alreadyLinked {
		return xerr.ErrDuplicateAssociation
	}
	return nil
}

func (s *packService) RemoveModelFromPack(ctx context.Context, packID, modelID uint64) error {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return err
	}
	return s.packRepo.RemoveModel(packID, modelID)
}

func (s *packService) AddTextureSetToPack(ctx context.Context, packID, setID uint64) error {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return err
	}
	set, err := s.setRepo.FindByID(setID)
	if err != nil {
		return err
	}
	if set.IsDeleted {
		return xerr.ErrTextureSetNotFound
	}

	alreadyLinked, err := s.packRepo.AddTextureSet(packID, setID)
	if err != nil {
		return err
	}
	if alreadyLinked {
		return xerr.ErrDuplicateAssociation
	}
	return nil
}

func (s *packService) RemoveTextureSetFromPack(ctx context.Context, packID, setID uint64) error {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return err
	}
	return s.packRepo.RemoveTextureSet(packID, setID)
}

func (s *packService) PackModelIDs(ctx context.Context, packID uint64) ([]uint64, error) {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return nil, err
	}
	return s.packRepo.FindModelIDs(packID)
}

func (s *packService) PackTextureSetIDs(ctx context.Context, packID uint64) ([]uint64, error) {
	if _, err := s.GetPack(ctx, packID); err != nil {
		return nil, err
	}
	return s.packRepo.FindTextureSetIDs(packID)
}

func (s *packService) CreateProject(ctx context.Context, name, description string) (*models.Project, error) {
	if name == "" {
		return nil, xerr.ErrValidationFailed
	}
	project := &models.Project{Name: name, Description: description}
	if err := s.projectRepo.Create(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *packService) GetProject(ctx context.Context, id uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if project.IsDeleted {
		return nil, xerr.ErrProjectNotFound
	}
	return project, nil
}

func (s *packService) ListProjects(ctx context.Context, page, pageSize int) ([]models.Project, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.projectRepo.FindAlive(page, pageSize)
}

func (s *packService) UpdateProject(ctx context.Context, id uint64, name, description string) (*models.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		project.Name = name
	}
	project.Description = description
	if err := s.projectRepo.Update(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *packService) SoftDeleteProject(ctx context.Context, id uint64) error {
	project, err := s.projectRepo.FindByID(id)
	if err != nil {
		return err
	}
	if project.IsDeleted {
		return nil
	}
	project.MarkDeleted(time.Now())
	return s.projectRepo.Update(project)
}

func (s *packService) AddModelToProject(ctx context.Context, projectID, modelID uint64) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	model, err := s.modelRepo.FindByID(modelID)
	if err != nil {
		return err
	}
	if model.IsDeleted {
		return xerr.ErrModelNotFound
	}

	alreadyLinked, err := s.projectRepo.AddModel(projectID, modelID)
	if err != nil {
		return err
	}
	if alreadyLinked {
		return xerr.ErrDuplicateAssociation
	}
	return nil
}

func (s *packService) RemoveModelFromProject(ctx context.Context, projectID, modelID uint64) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.projectRepo.RemoveModel(projectID, modelID)
}

func (s *packService) AddTextureSetToProject(ctx context.Context, projectID, setID uint64) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	set, err := s.setRepo.FindByID(setID)
	if err != nil {
		return err
	}
	if set.IsDeleted {
		return xerr.ErrTextureSetNotFound
	}

	alreadyLinked, err := s.projectRepo.AddTextureSet(projectID, setID)
	if err != nil {
		return err
	}
	if alreadyLinked {
		return xerr.ErrDuplicateAssociation
	}
	return nil
}

func (s *packService) RemoveTextureSetFromProject(ctx context.Context, projectID, setID uint64) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	return s.projectRepo.RemoveTextureSet(projectID, setID)
}

func (s *packService) ProjectModelIDs(ctx context.Context, projectID uint64) ([]uint64, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.projectRepo.FindModelIDs(projectID)
}

func (s *packService) ProjectTextureSetIDs(ctx context.Context, projectID uint64) ([]uint64, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.projectRepo.FindTextureSetIDs(projectID)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
