package assets

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"gorm.io/gorm"
)

func newLifecycleService(t *testing.T, gracePeriod time.Duration) (LifecycleService, *gorm.DB, storage.BlobStore) {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	svc := NewLifecycleService(
		repositories.NewModelRepository(db),
		repositories.NewModelVersionRepository(db),
		repositories.NewFileRepository(db),
		repositories.NewRecycledFileRepository(db),
		NewTransactionManager(db),
		store,
		nil,
		gracePeriod,
	)
	return svc, db, store
}

func TestSoftDeleteVersion_KeepsLastVersion(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()
	model := createTestModel(t, db, "solo")
	version := createTestVersion(t, db, model.ID, 1)

	err := svc.SoftDeleteVersion(ctx, version.ID)
	if !errors.Is(err, xerr.ErrLastVersion) {
		t.Errorf("deleting the only version: error = %v, want ErrLastVersion", err)
	}
}

func TestSoftDeleteVersion_RepointsActiveVersion(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()
	modelRepo := repositories.NewModelRepository(db)

	model := createTestModel(t, db, "pair")
	v1 := createTestVersion(t, db, model.ID, 1)
	v2 := createTestVersion(t, db, model.ID, 2)

	model.ActiveVersionID = &v2.ID
	if err := modelRepo.Update(model); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := svc.SoftDeleteVersion(ctx, v2.ID); err != nil {
		t.Fatalf("SoftDeleteVersion failed: %v", err)
	}

	model, err := modelRepo.FindByID(model.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if model.ActiveVersionID == nil || *model.ActiveVersionID != v1.ID {
		t.Errorf("active version = %v, want %d", model.ActiveVersionID, v1.ID)
	}

	// 再删一次应幂等
	if err := svc.SoftDeleteVersion(ctx, v2.ID); err != nil {
		t.Errorf("repeated SoftDeleteVersion should be a no-op, got %v", err)
	}
}

func TestRestoreVersion_DoesNotTouchActivePointer(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()
	modelRepo := repositories.NewModelRepository(db)

	model := createTestModel(t, db, "restoreme")
	v1 := createTestVersion(t, db, model.ID, 1)
	v2 := createTestVersion(t, db, model.ID, 2)
	model.ActiveVersionID = &v2.ID
	if err := modelRepo.Update(model); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := svc.SoftDeleteVersion(ctx, v2.ID); err != nil {
		t.Fatalf("SoftDeleteVersion failed: %v", err)
	}
	if err := svc.RestoreVersion(ctx, v2.ID); err != nil {
		t.Fatalf("RestoreVersion failed: %v", err)
	}

	// 恢复只翻转标记，活动指针停留在删除时改写的 v1 上
	model, err := modelRepo.FindByID(model.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if model.ActiveVersionID == nil || *model.ActiveVersionID != v1.ID {
		t.Errorf("active version = %v, want %d (restore must not re-point)", model.ActiveVersionID, v1.ID)
	}

	version, err := repositories.NewModelVersionRepository(db).FindByID(v2.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if version.IsDeleted {
		t.Error("restored version should be alive")
	}
}

func TestPermanentDeleteVersion_RecyclesUnsharedFiles(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	model := createTestModel(t, db, "shared")
	v1 := createTestVersion(t, db, model.ID, 1)
	v2 := createTestVersion(t, db, model.ID, 2)

	shared := createTestFile(t, db, "shared bytes", "shared.obj")
	exclusive := createTestFile(t, db, "exclusive bytes", "only.obj")
	linkFile(t, db, v1.ID, shared.ID)
	linkFile(t, db, v2.ID, shared.ID)
	linkFile(t, db, v2.ID, exclusive.ID)

	if err := svc.PermanentDeleteVersion(ctx, v2.ID); err != nil {
		t.Fatalf("PermanentDeleteVersion failed: %v", err)
	}

	fileRepo := repositories.NewFileRepository(db)
	recycledRepo := repositories.NewRecycledFileRepository(db)

	// 共享文件不受影响
	sharedAfter, err := fileRepo.FindByID(shared.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if sharedAfter.IsDeleted {
		t.Error("file still referenced by v1 must stay alive")
	}
	if rec, _ := recycledRepo.FindByFileID(shared.ID); rec != nil {
		t.Error("shared file must not enter the recycle bin")
	}

	// 独占文件进回收站并软删除
	exclusiveAfter, err := fileRepo.FindByID(exclusive.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !exclusiveAfter.IsDeleted {
		t.Error("orphaned file should be soft-deleted")
	}
	rec, err := recycledRepo.FindByFileID(exclusive.ID)
	if err != nil {
		t.Fatalf("FindByFileID failed: %v", err)
	}
	if rec == nil {
		t.Fatal("orphaned file should have a recycle record")
	}
	if !rec.ScheduledDeletionAt.After(rec.RecycledAt) {
		t.Error("scheduled deletion must be after recycle time")
	}

	// 版本行已物理删除
	if _, err := repositories.NewModelVersionRepository(db).FindByID(v2.ID); !errors.Is(err, xerr.ErrVersionNotFound) {
		t.Errorf("deleted version lookup error = %v, want ErrVersionNotFound", err)
	}
}

func TestPurgeDue_RemovesExpiredRecycledFiles(t *testing.T) {
	svc, db, store := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	content := "purge me"
	file := createTestFile(t, db, content, "victim.obj")
	if _, err := store.Put(ctx, file.RelativePath, strings.NewReader(content), int64(len(content)), "application/octet-stream"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	now := time.Now()
	fileRepo := repositories.NewFileRepository(db)
	if err := fileRepo.SoftDelete(file.ID, now); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	recycled := &models.RecycledFile{
		FileID:              file.ID,
		Reason:              "version permanently deleted",
		RecycledAt:          now.Add(-2 * time.Hour),
		ScheduledDeletionAt: now.Add(-time.Hour),
	}
	if err := repositories.NewRecycledFileRepository(db).Create(recycled); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	purged, err := svc.PurgeDue(ctx, now)
	if err != nil {
		t.Fatalf("PurgeDue failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	if _, err := fileRepo.FindByID(file.ID); !errors.Is(err, xerr.ErrFileNotFound) {
		t.Errorf("file lookup after purge error = %v, want ErrFileNotFound", err)
	}
	exists, err := store.Exists(ctx, file.RelativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("blob should be removed by purge")
	}
}

func TestPurgeDue_SkipsReReferencedFile(t *testing.T) {
	svc, db, store := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	content := "saved by reference"
	file := createTestFile(t, db, content, "saved.obj")
	if _, err := store.Put(ctx, file.RelativePath, strings.NewReader(content), int64(len(content)), "application/octet-stream"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	now := time.Now()
	if err := repositories.NewFileRepository(db).SoftDelete(file.ID, now); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := repositories.NewRecycledFileRepository(db).Create(&models.RecycledFile{
		FileID:              file.ID,
		Reason:              "version permanently deleted",
		RecycledAt:          now.Add(-2 * time.Hour),
		ScheduledDeletionAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 宽限期内一个新版本重新引用了该文件
	model := createTestModel(t, db, "rescuer")
	version := createTestVersion(t, db, model.ID, 1)
	linkFile(t, db, version.ID, file.ID)

	purged, err := svc.PurgeDue(ctx, now)
	if err != nil {
		t.Fatalf("PurgeDue failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("purged = %d, want 0", purged)
	}

	// 清除被撤销：回收记录删除，文件复活，字节保留
	rec, err := repositories.NewRecycledFileRepository(db).FindByFileID(file.ID)
	if err != nil {
		t.Fatalf("FindByFileID failed: %v", err)
	}
	if rec != nil {
		t.Error("recycle record should be removed for re-referenced file")
	}
	after, err := repositories.NewFileRepository(db).FindByID(file.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.IsDeleted {
		t.Error("re-referenced file should be restored")
	}
	exists, err := store.Exists(ctx, file.RelativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("blob of re-referenced file must be kept")
	}
}

func TestPurgeDue_SkipsTextureWrappedFile(t *testing.T) {
	svc, db, store := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	content := "wrapped by a texture"
	file := createTestFile(t, db, content, "albedo.png")
	if _, err := store.Put(ctx, file.RelativePath, strings.NewReader(content), int64(len(content)), "image/png"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	now := time.Now()
	if err := repositories.NewFileRepository(db).SoftDelete(file.ID, now); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := repositories.NewRecycledFileRepository(db).Create(&models.RecycledFile{
		FileID:              file.ID,
		Reason:              "version permanently deleted",
		RecycledAt:          now.Add(-2 * time.Hour),
		ScheduledDeletionAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 该文件没有任何版本引用，但还被一个活着的贴图集包装着
	set := &models.TextureSet{Name: "keeper"}
	if err := db.Create(set).Error; err != nil {
		t.Fatalf("create texture set failed: %v", err)
	}
	texture := &models.Texture{TextureSetID: set.ID, FileID: file.ID, TextureType: models.TextureTypeAlbedo}
	if err := db.Create(texture).Error; err != nil {
		t.Fatalf("create texture failed: %v", err)
	}

	purged, err := svc.PurgeDue(ctx, now)
	if err != nil {
		t.Fatalf("PurgeDue failed: %v", err)
	}
	if purged != 0 {
		t.Errorf("purged = %d, want 0", purged)
	}

	after, err := repositories.NewFileRepository(db).FindByID(file.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.IsDeleted {
		t.Error("texture-wrapped file should be restored")
	}
	exists, err := store.Exists(ctx, file.RelativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("blob of texture-wrapped file must be kept")
	}
}

func TestRestoreRecycledFile(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	file := createTestFile(t, db, "undo me", "undo.obj")
	now := time.Now()
	if err := repositories.NewFileRepository(db).SoftDelete(file.ID, now); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := repositories.NewRecycledFileRepository(db).Create(&models.RecycledFile{
		FileID:              file.ID,
		Reason:              "manual",
		RecycledAt:          now,
		ScheduledDeletionAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.RestoreRecycledFile(ctx, file.ID); err != nil {
		t.Fatalf("RestoreRecycledFile failed: %v", err)
	}
	after, err := repositories.NewFileRepository(db).FindByID(file.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.IsDeleted {
		t.Error("restored file should be alive")
	}

	// 没有回收记录时报错
	if err := svc.RestoreRecycledFile(ctx, file.ID); !errors.Is(err, xerr.ErrRecycledFileNotFound) {
		t.Errorf("second restore error = %v, want ErrRecycledFileNotFound", err)
	}
}

func TestSoftDeleteModel_Idempotent(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()
	model := createTestModel(t, db, "gone")

	if err := svc.SoftDeleteModel(ctx, model.ID); err != nil {
		t.Fatalf("SoftDeleteModel failed: %v", err)
	}
	if err := svc.SoftDeleteModel(ctx, model.ID); err != nil {
		t.Errorf("repeated SoftDeleteModel should be a no-op, got %v", err)
	}

	after, err := repositories.NewModelRepository(db).FindByID(model.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !after.IsDeleted {
		t.Error("model should be soft-deleted")
	}

	if err := svc.RestoreModel(ctx, model.ID); err != nil {
		t.Fatalf("RestoreModel failed: %v", err)
	}
	after, err = repositories.NewModelRepository(db).FindByID(model.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if after.IsDeleted {
		t.Error("model should be restored")
	}
}

func TestPermanentDeleteModel_CascadesToFiles(t *testing.T) {
	svc, db, _ := newLifecycleService(t, time.Hour)
	ctx := context.Background()

	model := createTestModel(t, db, "doomed")
	v1 := createTestVersion(t, db, model.ID, 1)
	file := createTestFile(t, db, "doomed bytes", "doomed.obj")
	linkFile(t, db, v1.ID, file.ID)
	model.ActiveVersionID = &v1.ID
	if err := repositories.NewModelRepository(db).Update(model); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := svc.PermanentDeleteModel(ctx, model.ID); err != nil {
		t.Fatalf("PermanentDeleteModel failed: %v", err)
	}

	if _, err := repositories.NewModelRepository(db).FindByID(model.ID); !errors.Is(err, xerr.ErrModelNotFound) {
		t.Errorf("model lookup error = %v, want ErrModelNotFound", err)
	}
	if _, err := repositories.NewModelVersionRepository(db).FindByID(v1.ID); !errors.Is(err, xerr.ErrVersionNotFound) {
		t.Errorf("version lookup error = %v, want ErrVersionNotFound", err)
	}
	rec, err := repositories.NewRecycledFileRepository(db).FindByFileID(file.ID)
	if err != nil {
		t.Fatalf("FindByFileID failed: %v", err)
	}
	if rec == nil {
		t.Error("orphaned file should be in the recycle bin")
	}
}
