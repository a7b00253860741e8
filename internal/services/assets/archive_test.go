package assets

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/modelibr/modelibr/internal/repositories"
)

func TestStreamPackArchive(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	ctx := context.Background()

	packService := NewPackService(
		repositories.NewPackRepository(db),
		repositories.NewProjectRepository(db),
		repositories.NewModelRepository(db),
		repositories.NewTextureSetRepository(db),
	)
	archiveService := NewArchiveService(
		packService,
		repositories.NewModelRepository(db),
		repositories.NewModelVersionRepository(db),
		repositories.NewTextureSetRepository(db),
		store,
	)

	model := createTestModel(t, db, "barrel")
	version := createTestVersion(t, db, model.ID, 1)
	content := "barrel mesh"
	file := createTestFile(t, db, content, "barrel.obj")
	linkFile(t, db, version.ID, file.ID)
	if _, err := store.Put(ctx, file.RelativePath, strings.NewReader(content), int64(len(content)), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	pack, err := packService.CreatePack(ctx, "props", "")
	if err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}
	if err := packService.AddModelToPack(ctx, pack.ID, model.ID); err != nil {
		t.Fatalf("AddModelToPack failed: %v", err)
	}

	reader, name, err := archiveService.StreamPackArchive(ctx, pack.ID)
	if err != nil {
		t.Fatalf("StreamPackArchive failed: %v", err)
	}
	defer reader.Close()
	if name != "props.zip" {
		t.Errorf("archive name = %s, want props.zip", name)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read archive stream: %v", err)
	}
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}

	if len(zipReader.File) != 1 {
		t.Fatalf("archive has %d entries, want 1", len(zipReader.File))
	}
	entry := zipReader.File[0]
	if entry.Name != "barrel/v1/barrel.obj" {
		t.Errorf("entry name = %s, want barrel/v1/barrel.obj", entry.Name)
	}

	rc, err := entry.Open()
	if err != nil {
		t.Fatalf("failed to open entry: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read entry: %v", err)
	}
	if string(got) != content {
		t.Errorf("entry content = %q, want %q", got, content)
	}
}

func TestStreamPackArchive_SkipsMissingBlobs(t *testing.T) {
	db := newTestDB(t)
	store := newTestStore(t)
	ctx := context.Background()

	packService := NewPackService(
		repositories.NewPackRepository(db),
		repositories.NewProjectRepository(db),
		repositories.NewModelRepository(db),
		repositories.NewTextureSetRepository(db),
	)
	archiveService := NewArchiveService(
		packService,
		repositories.NewModelRepository(db),
		repositories.NewModelVersionRepository(db),
		repositories.NewTextureSetRepository(db),
		store,
	)

	model := createTestModel(t, db, "ghost")
	version := createTestVersion(t, db, model.ID, 1)
	// 文件记录在库里，但字节从未写入存储
	file := createTestFile(t, db, "phantom bytes", "ghost.obj")
	linkFile(t, db, version.ID, file.ID)

	pack, err := packService.CreatePack(ctx, "haunted", "")
	if err != nil {
		t.Fatalf("CreatePack failed: %v", err)
	}
	if err := packService.AddModelToPack(ctx, pack.ID, model.ID); err != nil {
		t.Fatalf("AddModelToPack failed: %v", err)
	}

	reader, _, err := archiveService.StreamPackArchive(ctx, pack.ID)
	if err != nil {
		t.Fatalf("StreamPackArchive failed: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("missing blob should not fail the stream: %v", err)
	}
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	if len(zipReader.File) != 0 {
		t.Errorf("archive has %d entries, want 0", len(zipReader.File))
	}
}
