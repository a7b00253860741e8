package assets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"gorm.io/gorm"
)

func newVersionService(t *testing.T) (VersionService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewVersionService(
		repositories.NewModelRepository(db),
		repositories.NewModelVersionRepository(db),
		repositories.NewFileRepository(db),
		NewTransactionManager(db),
	)
	return svc, db
}

func TestCreateVersion_NumbersAreMonotonic(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()
	model := createTestModel(t, db, "chair")

	v1, err := svc.CreateVersion(ctx, model.ID, "first")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if v1.VersionNumber != 1 {
		t.Errorf("first version number = %d, want 1", v1.VersionNumber)
	}

	v2, err := svc.CreateVersion(ctx, model.ID, "second")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if v2.VersionNumber != 2 {
		t.Errorf("second version number = %d, want 2", v2.VersionNumber)
	}

	// 软删除不释放版本号
	if err := repositories.NewModelVersionRepository(db).SoftDelete(v2.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	v3, err := svc.CreateVersion(ctx, model.ID, "third")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if v3.VersionNumber != 3 {
		t.Errorf("version number after soft delete = %d, want 3", v3.VersionNumber)
	}
}

func TestCreateVersion_MigratesLooseFiles(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()
	model := createTestModel(t, db, "legacy")

	fileA := createTestFile(t, db, "loose content a", "a.obj")
	fileB := createTestFile(t, db, "loose content b", "b.obj")
	for _, f := range []*models.File{fileA, fileB} {
		if err := db.Create(&models.ModelFile{ModelID: model.ID, FileID: f.ID}).Error; err != nil {
			t.Fatalf("failed to attach loose file: %v", err)
		}
	}

	version, err := svc.CreateVersion(ctx, model.ID, "")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}

	files, err := svc.ListVersionFiles(ctx, version.ID)
	if err != nil {
		t.Fatalf("ListVersionFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("migrated %d files into first version, want 2", len(files))
	}

	loose, err := repositories.NewModelRepository(db).FindLooseFiles(model.ID)
	if err != nil {
		t.Fatalf("FindLooseFiles failed: %v", err)
	}
	if len(loose) != 0 {
		t.Errorf("loose file rows remaining = %d, want 0", len(loose))
	}

	// 第二个版本不重复迁移
	second, err := svc.CreateVersion(ctx, model.ID, "")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	files, err = svc.ListVersionFiles(ctx, second.ID)
	if err != nil {
		t.Fatalf("ListVersionFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("second version should start empty, got %d files", len(files))
	}
}

func TestAddFileToVersion_ReportsDuplicateLink(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()
	model := createTestModel(t, db, "lamp")
	version, err := svc.CreateVersion(ctx, model.ID, "")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	file := createTestFile(t, db, "lamp mesh", "lamp.obj")

	alreadyLinked, err := svc.AddFileToVersion(ctx, version.ID, file.ID)
	if err != nil {
		t.Fatalf("AddFileToVersion failed: %v", err)
	}
	if alreadyLinked {
		t.Error("first link should not report alreadyLinked")
	}

	alreadyLinked, err = svc.AddFileToVersion(ctx, version.ID, file.ID)
	if err != nil {
		t.Fatalf("duplicate AddFileToVersion failed: %v", err)
	}
	if !alreadyLinked {
		t.Error("second link should report alreadyLinked")
	}

	files, err := svc.ListVersionFiles(ctx, version.ID)
	if err != nil {
		t.Fatalf("ListVersionFiles failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("version has %d files, want 1", len(files))
	}
}

func TestSetActiveVersion_Guards(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()

	modelA := createTestModel(t, db, "a")
	modelB := createTestModel(t, db, "b")
	versionA, err := svc.CreateVersion(ctx, modelA.ID, "")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}

	// 版本属于另一个模型
	if err := svc.SetActiveVersion(ctx, modelB.ID, versionA.ID); !errors.Is(err, xerr.ErrVersionModelMismatch) {
		t.Errorf("cross-model SetActiveVersion error = %v, want ErrVersionModelMismatch", err)
	}

	// 已删除版本不能设为活动
	versionA2, err := svc.CreateVersion(ctx, modelA.ID, "")
	if err != nil {
		t.Fatalf("CreateVersion failed: %v", err)
	}
	if err := repositories.NewModelVersionRepository(db).SoftDelete(versionA2.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := svc.SetActiveVersion(ctx, modelA.ID, versionA2.ID); !errors.Is(err, xerr.ErrVersionDeleted) {
		t.Errorf("deleted-version SetActiveVersion error = %v, want ErrVersionDeleted", err)
	}

	if err := svc.SetActiveVersion(ctx, modelA.ID, versionA.ID); err != nil {
		t.Fatalf("valid SetActiveVersion failed: %v", err)
	}
	model, err := repositories.NewModelRepository(db).FindByID(modelA.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if model.ActiveVersionID == nil || *model.ActiveVersionID != versionA.ID {
		t.Errorf("active version pointer = %v, want %d", model.ActiveVersionID, versionA.ID)
	}
}

func TestReorderVersions_AllOrNothing(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()
	model := createTestModel(t, db, "sofa")

	v1, _ := svc.CreateVersion(ctx, model.ID, "")
	v2, _ := svc.CreateVersion(ctx, model.ID, "")
	v3, _ := svc.CreateVersion(ctx, model.ID, "")

	// 缺一个版本，整体拒绝
	err := svc.ReorderVersions(ctx, model.ID, []uint64{v2.ID, v1.ID})
	if !errors.Is(err, xerr.ErrIncompleteOrder) {
		t.Errorf("partial reorder error = %v, want ErrIncompleteOrder", err)
	}

	// 重复 ID，整体拒绝
	err = svc.ReorderVersions(ctx, model.ID, []uint64{v1.ID, v1.ID, v2.ID})
	if !errors.Is(err, xerr.ErrIncompleteOrder) {
		t.Errorf("duplicate reorder error = %v, want ErrIncompleteOrder", err)
	}

	// 被拒绝的调用不留下部分修改
	versions, err := svc.ListVersions(ctx, model.ID, false)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	orders := map[uint64]int{}
	for _, v := range versions {
		orders[v.ID] = v.DisplayOrder
	}
	if orders[v1.ID] != 0 || orders[v2.ID] != 1 || orders[v3.ID] != 2 {
		t.Errorf("display orders changed by rejected reorder: %v", orders)
	}

	if err := svc.ReorderVersions(ctx, model.ID, []uint64{v3.ID, v1.ID, v2.ID}); err != nil {
		t.Fatalf("valid reorder failed: %v", err)
	}
	versions, err = svc.ListVersions(ctx, model.ID, false)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	for _, v := range versions {
		var want int
		switch v.ID {
		case v3.ID:
			want = 0
		case v1.ID:
			want = 1
		case v2.ID:
			want = 2
		}
		if v.DisplayOrder != want {
			t.Errorf("version %d display order = %d, want %d", v.ID, v.DisplayOrder, want)
		}
	}
}

func TestLatestVersion_IgnoresDeleted(t *testing.T) {
	svc, db := newVersionService(t)
	ctx := context.Background()
	model := createTestModel(t, db, "table")

	v1, _ := svc.CreateVersion(ctx, model.ID, "")
	v2, _ := svc.CreateVersion(ctx, model.ID, "")

	latest, err := svc.LatestVersion(ctx, model.ID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if latest == nil || latest.ID != v2.ID {
		t.Fatalf("latest = %v, want version %d", latest, v2.ID)
	}

	if err := repositories.NewModelVersionRepository(db).SoftDelete(v2.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	latest, err = svc.LatestVersion(ctx, model.ID)
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}
	if latest == nil || latest.ID != v1.ID {
		t.Fatalf("latest after delete = %v, want version %d", latest, v1.ID)
	}
}
