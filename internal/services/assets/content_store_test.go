package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/modelibr/modelibr/internal/repositories"
)

func newContentStore(t *testing.T) (ContentStoreService, *contentStoreService) {
	t.Helper()
	db := newTestDB(t)
	store := newTestStore(t)
	fileRepo := repositories.NewFileRepository(db)
	svc := NewContentStoreService(fileRepo, NewTransactionManager(db), store)
	return svc, svc.(*contentStoreService)
}

func TestStoreOrGet_NewContent(t *testing.T) {
	svc, impl := newContentStore(t)
	ctx := context.Background()

	content := "solid cube vertex data"
	file, created, err := svc.StoreOrGet(ctx, strings.NewReader(content), "cube.obj", "")
	if err != nil {
		t.Fatalf("StoreOrGet failed: %v", err)
	}
	if !created {
		t.Error("expected created=true for new content")
	}

	sum := sha256.Sum256([]byte(content))
	wantHash := hex.EncodeToString(sum[:])
	if file.Sha256Hash != wantHash {
		t.Errorf("hash = %s, want %s", file.Sha256Hash, wantHash)
	}
	if file.SizeBytes != int64(len(content)) {
		t.Errorf("size = %d, want %d", file.SizeBytes, len(content))
	}
	if file.OriginalName != "cube.obj" {
		t.Errorf("original name = %s, want cube.obj", file.OriginalName)
	}

	exists, err := impl.store.Exists(ctx, file.RelativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("blob should exist after StoreOrGet")
	}
}

func TestStoreOrGet_DeduplicatesByContent(t *testing.T) {
	svc, _ := newContentStore(t)
	ctx := context.Background()

	content := "identical bytes"
	first, created, err := svc.StoreOrGet(ctx, strings.NewReader(content), "a.obj", "")
	if err != nil {
		t.Fatalf("first StoreOrGet failed: %v", err)
	}
	if !created {
		t.Fatal("first upload should create a record")
	}

	// 不同文件名、相同字节必须命中同一条记录
	second, created, err := svc.StoreOrGet(ctx, strings.NewReader(content), "b.obj", "")
	if err != nil {
		t.Fatalf("second StoreOrGet failed: %v", err)
	}
	if created {
		t.Error("second upload of same content should not create a record")
	}
	if second.ID != first.ID {
		t.Errorf("second upload resolved to file %d, want %d", second.ID, first.ID)
	}
	if second.OriginalName != "a.obj" {
		t.Errorf("metadata should keep first upload's name, got %s", second.OriginalName)
	}
}

func TestStoreOrGet_ResurrectsSoftDeletedFile(t *testing.T) {
	svc, impl := newContentStore(t)
	ctx := context.Background()

	content := "recyclable mesh"
	file, _, err := svc.StoreOrGet(ctx, strings.NewReader(content), "mesh.fbx", "")
	if err != nil {
		t.Fatalf("StoreOrGet failed: %v", err)
	}

	if err := impl.fileRepo.SoftDelete(file.ID, time.Now()); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	// 字节也被清掉，复活时必须重新写入
	if err := impl.store.Remove(ctx, file.RelativePath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	revived, created, err := svc.StoreOrGet(ctx, strings.NewReader(content), "renamed.fbx", "")
	if err != nil {
		t.Fatalf("re-upload failed: %v", err)
	}
	if created {
		t.Error("re-upload should resurrect, not create")
	}
	if revived.ID != file.ID {
		t.Errorf("resurrected file ID = %d, want %d", revived.ID, file.ID)
	}
	if revived.IsDeleted {
		t.Error("resurrected file should not be marked deleted")
	}

	fromDB, err := impl.fileRepo.FindByID(file.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if fromDB.IsDeleted {
		t.Error("database row should be alive after resurrection")
	}
	exists, err := impl.store.Exists(ctx, file.RelativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("blob should be rewritten during resurrection")
	}
}

func TestOpen_ReturnsStoredBytes(t *testing.T) {
	svc, _ := newContentStore(t)
	ctx := context.Background()

	content := "binary payload"
	file, _, err := svc.StoreOrGet(ctx, strings.NewReader(content), "payload.bin", "application/x-test")
	if err != nil {
		t.Fatalf("StoreOrGet failed: %v", err)
	}

	opened, result, err := svc.Open(ctx, file.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer result.Reader.Close()

	if opened.ID != file.ID {
		t.Errorf("opened file ID = %d, want %d", opened.ID, file.ID)
	}
	data, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("read back %q, want %q", data, content)
	}
}

func TestStoreOrGet_PrefersDeclaredMime(t *testing.T) {
	svc, _ := newContentStore(t)
	ctx := context.Background()

	file, _, err := svc.StoreOrGet(ctx, strings.NewReader("x"), "model.glb", "model/gltf-binary")
	if err != nil {
		t.Fatalf("StoreOrGet failed: %v", err)
	}
	if file.MimeType != "model/gltf-binary" {
		t.Errorf("mime = %s, want model/gltf-binary", file.MimeType)
	}
}
