package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelibr/modelibr/internal/config"
)

func newLocalStore(t *testing.T) (*LocalBlobStore, string) {
	t.Helper()
	root := t.TempDir()
	store, err := NewLocalBlobStore(&config.StorageConfig{LocalBasePath: root})
	if err != nil {
		t.Fatalf("NewLocalBlobStore failed: %v", err)
	}
	return store, root
}

func TestLocalBlobStore_PutGetRemove(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	content := "object bytes"
	relativePath := ObjectPathForHash("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")

	result, err := store.Put(ctx, relativePath, strings.NewReader(content), int64(len(content)), "application/octet-stream")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("put size = %d, want %d", result.Size, len(content))
	}

	exists, err := store.Exists(ctx, relativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Fatal("object should exist after Put")
	}

	got, err := store.Get(ctx, relativePath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data, err := io.ReadAll(got.Reader)
	got.Reader.Close()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != content {
		t.Errorf("read back %q, want %q", data, content)
	}

	if err := store.Remove(ctx, relativePath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	exists, err = store.Exists(ctx, relativePath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("object should be gone after Remove")
	}

	// 删除不存在的对象不是错误
	if err := store.Remove(ctx, relativePath); err != nil {
		t.Errorf("Remove of missing object = %v, want nil", err)
	}
}

func TestLocalBlobStore_PutLeavesNoTempFilesOnSuccess(t *testing.T) {
	store, root := newLocalStore(t)
	ctx := context.Background()

	relativePath := "aa/bb/object"
	if _, err := store.Put(ctx, relativePath, strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "aa", "bb"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "object" {
		t.Errorf("object directory entries = %v, want only the committed object", entries)
	}
}

func TestObjectPathForHash(t *testing.T) {
	hash := "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
	want := "ab/cd/" + hash
	if got := ObjectPathForHash(hash); got != want {
		t.Errorf("ObjectPathForHash = %s, want %s", got, want)
	}
}

func TestPreviewPathForHash(t *testing.T) {
	hash := "ff00"
	if got := PreviewPathForHash(hash, ""); got != "previews/ff00.png" {
		t.Errorf("PreviewPathForHash = %s, want previews/ff00.png", got)
	}
	if got := PreviewPathForHash(hash, "R"); got != "previews/ff00_R.png" {
		t.Errorf("PreviewPathForHash with channel = %s, want previews/ff00_R.png", got)
	}
}
