package assets

import (
	"context"
	"errors"
	"testing"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"gorm.io/gorm"
)

func newTextureSetService(t *testing.T) (TextureSetService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewTextureSetService(
		repositories.NewTextureSetRepository(db),
		repositories.NewModelVersionRepository(db),
		repositories.NewFileRepository(db),
		NewTransactionManager(db),
	)
	return svc, db
}

func TestTextureTypeCanonical(t *testing.T) {
	cases := []struct {
		in   models.TextureType
		want models.TextureType
	}{
		{models.TextureTypeDiffuse, models.TextureTypeAlbedo},
		{models.TextureTypeBump, models.TextureTypeNormal},
		{models.TextureTypeDisplacement, models.TextureTypeHeight},
		{models.TextureTypeRoughness, models.TextureTypeRoughness},
		{models.TextureTypeAlbedo, models.TextureTypeAlbedo},
	}
	for _, tc := range cases {
		if got := tc.in.Canonical(); got != tc.want {
			t.Errorf("Canonical(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestAddTexture_ReplacesSameCanonicalType(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	set, err := svc.Create(ctx, "wood")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	albedoFile := createTestFile(t, db, "albedo pixels", "wood_albedo.png")
	diffuseFile := createTestFile(t, db, "diffuse pixels", "wood_diffuse.png")
	roughFile := createTestFile(t, db, "rough pixels", "wood_rough.png")

	first, replaced, err := svc.AddTexture(ctx, set.ID, albedoFile.ID, models.TextureTypeAlbedo, nil)
	if err != nil {
		t.Fatalf("AddTexture failed: %v", err)
	}
	if replaced {
		t.Error("first texture should not report replaced")
	}

	// Diffuse 是 Albedo 的别名，必须替换掉上一张
	second, replaced, err := svc.AddTexture(ctx, set.ID, diffuseFile.ID, models.TextureTypeDiffuse, nil)
	if err != nil {
		t.Fatalf("AddTexture failed: %v", err)
	}
	if !replaced {
		t.Error("alias type should replace the existing texture")
	}
	if second.ID == first.ID {
		t.Error("replacement should create a new texture row")
	}

	// 不同规范化类型互不影响
	if _, replaced, err = svc.AddTexture(ctx, set.ID, roughFile.ID, models.TextureTypeRoughness, nil); err != nil {
		t.Fatalf("AddTexture failed: %v", err)
	} else if replaced {
		t.Error("different canonical type should not replace")
	}

	textures, err := svc.ListTextures(ctx, set.ID)
	if err != nil {
		t.Fatalf("ListTextures failed: %v", err)
	}
	if len(textures) != 2 {
		t.Errorf("set has %d textures, want 2", len(textures))
	}
}

func TestAddTexture_RejectsInvalidType(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	set, _ := svc.Create(ctx, "metal")
	file := createTestFile(t, db, "pixels", "metal.png")

	_, _, err := svc.AddTexture(ctx, set.ID, file.ID, models.TextureType(99), nil)
	if !errors.Is(err, xerr.ErrTextureTypeInvalid) {
		t.Errorf("invalid type error = %v, want ErrTextureTypeInvalid", err)
	}
}

func TestAssociateVersion_RejectsDuplicate(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	set, _ := svc.Create(ctx, "stone")
	model := createTestModel(t, db, "rock")
	version := createTestVersion(t, db, model.ID, 1)

	if err := svc.AssociateVersion(ctx, set.ID, version.ID); err != nil {
		t.Fatalf("AssociateVersion failed: %v", err)
	}
	if err := svc.AssociateVersion(ctx, set.ID, version.ID); !errors.Is(err, xerr.ErrDuplicateAssociation) {
		t.Errorf("duplicate association error = %v, want ErrDuplicateAssociation", err)
	}
}

func TestDisassociateVersion_ClearsDefault(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	set, _ := svc.Create(ctx, "fabric")
	model := createTestModel(t, db, "cushion")
	version := createTestVersion(t, db, model.ID, 1)

	if err := svc.AssociateVersion(ctx, set.ID, version.ID); err != nil {
		t.Fatalf("AssociateVersion failed: %v", err)
	}
	if err := svc.SetVersionDefault(ctx, version.ID, set.ID); err != nil {
		t.Fatalf("SetVersionDefault failed: %v", err)
	}

	versionRepo := repositories.NewModelVersionRepository(db)
	after, err := versionRepo.FindByID(version.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.DefaultTextureSetID == nil || *after.DefaultTextureSetID != set.ID {
		t.Fatalf("default texture set = %v, want %d", after.DefaultTextureSetID, set.ID)
	}

	if err := svc.DisassociateVersion(ctx, set.ID, version.ID); err != nil {
		t.Fatalf("DisassociateVersion failed: %v", err)
	}
	after, err = versionRepo.FindByID(version.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.DefaultTextureSetID != nil {
		t.Error("default texture set must be cleared when the set is disassociated")
	}
}

func TestSetVersionDefault_RequiresAssociation(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	set, _ := svc.Create(ctx, "leather")
	model := createTestModel(t, db, "bag")
	version := createTestVersion(t, db, model.ID, 1)

	if err := svc.SetVersionDefault(ctx, version.ID, set.ID); !errors.Is(err, xerr.ErrValidationFailed) {
		t.Errorf("unassociated default error = %v, want ErrValidationFailed", err)
	}
}

func TestRemoveTexture_ChecksOwnership(t *testing.T) {
	svc, db := newTextureSetService(t)
	ctx := context.Background()

	setA, _ := svc.Create(ctx, "a")
	setB, _ := svc.Create(ctx, "b")
	file := createTestFile(t, db, "pixels", "tex.png")

	texture, _, err := svc.AddTexture(ctx, setA.ID, file.ID, models.TextureTypeNormal, nil)
	if err != nil {
		t.Fatalf("AddTexture failed: %v", err)
	}

	// 贴图属于 setA，不能通过 setB 删除
	if err := svc.RemoveTexture(ctx, setB.ID, texture.ID); !errors.Is(err, xerr.ErrTextureNotFound) {
		t.Errorf("cross-set removal error = %v, want ErrTextureNotFound", err)
	}
	if err := svc.RemoveTexture(ctx, setA.ID, texture.ID); err != nil {
		t.Fatalf("RemoveTexture failed: %v", err)
	}

	textures, err := svc.ListTextures(ctx, setA.ID)
	if err != nil {
		t.Fatalf("ListTextures failed: %v", err)
	}
	if len(textures) != 0 {
		t.Errorf("set has %d textures after removal, want 0", len(textures))
	}
}
