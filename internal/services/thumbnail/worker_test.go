package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/modelibr/modelibr/internal/config"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/assets"
	"gorm.io/gorm"
)

// stubRenderer 返回固定的 PNG 字节或固定错误
type stubRenderer struct {
	data []byte
	err  error
}

func (r *stubRenderer) Render(ctx context.Context, inputPath string) ([]byte, error) {
	return r.data, r.err
}

func encodeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

type workerFixture struct {
	worker  *Worker
	queue   QueueService
	db      *gorm.DB
	store   storage.BlobStore
	version *models.ModelVersion
	file    *models.File
}

func newWorkerFixture(t *testing.T, renderer Renderer) *workerFixture {
	t.Helper()
	db := newTestDB(t)
	store, err := storage.NewLocalBlobStore(&config.StorageConfig{LocalBasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalBlobStore failed: %v", err)
	}

	modelRepo := repositories.NewModelRepository(db)
	versionRepo := repositories.NewModelVersionRepository(db)
	fileRepo := repositories.NewFileRepository(db)
	thumbnailRepo := repositories.NewThumbnailRepository(db)
	jobRepo := repositories.NewThumbnailJobRepository(db)
	tm := assets.NewTransactionManager(db)
	queue := NewQueueService(jobRepo, tm, nil, 30)

	model := &models.Model{Name: "renderable"}
	if err := modelRepo.Create(model); err != nil {
		t.Fatalf("Create model failed: %v", err)
	}
	version := &models.ModelVersion{ModelID: model.ID, VersionNumber: 1}
	if err := versionRepo.Create(version); err != nil {
		t.Fatalf("Create version failed: %v", err)
	}

	content := "mesh bytes"
	hash := "dd00000000000000000000000000000000000000000000000000000000000000"
	file := &models.File{
		Sha256Hash:   hash,
		OriginalName: "mesh.obj",
		StoredName:   hash,
		RelativePath: storage.ObjectPathForHash(hash),
		SizeBytes:    int64(len(content)),
	}
	if err := fileRepo.Create(file); err != nil {
		t.Fatalf("Create file failed: %v", err)
	}
	if _, err := versionRepo.AddFile(version.ID, file.ID); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, file.RelativePath, strings.NewReader(content), int64(len(content)), ""); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	worker := NewWorker(queue, modelRepo, versionRepo, fileRepo, thumbnailRepo, store, renderer, nil, 5)
	return &workerFixture{worker: worker, queue: queue, db: db, store: store, version: version, file: file}
}

func TestProcessOne_RendersAndCompletes(t *testing.T) {
	pngBytes := encodeTestPNG(t, 256, 256)
	fx := newWorkerFixture(t, &stubRenderer{data: pngBytes})
	ctx := context.Background()

	versionID := fx.version.ID
	job, err := fx.queue.Enqueue(ctx, fx.version.ModelID, &versionID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	processed, err := fx.worker.ProcessOne(ctx)
	if err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}
	if !processed {
		t.Fatal("ProcessOne should have claimed the job")
	}

	done, err := fx.queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if done.Status != models.JobStatusDone {
		t.Errorf("job status = %s, want Done", done.Status)
	}

	// 预览图按内容哈希落盘
	previewPath := storage.PreviewPathForHash(fx.file.Sha256Hash, "")
	exists, err := fx.store.Exists(ctx, previewPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("preview blob should exist")
	}

	thumbnail, err := repositories.NewThumbnailRepository(fx.db).FindByVersionID(fx.version.ID)
	if err != nil {
		t.Fatalf("FindByVersionID failed: %v", err)
	}
	if thumbnail.Status != models.ThumbnailStatusReady {
		t.Errorf("thumbnail status = %s, want Ready", thumbnail.Status)
	}
	if thumbnail.Width != 256 || thumbnail.Height != 256 {
		t.Errorf("thumbnail dimensions = %dx%d, want 256x256", thumbnail.Width, thumbnail.Height)
	}
	if thumbnail.RelativePath != previewPath {
		t.Errorf("thumbnail path = %s, want %s", thumbnail.RelativePath, previewPath)
	}

	// 队列空了
	processed, err = fx.worker.ProcessOne(ctx)
	if err != nil {
		t.Fatalf("second ProcessOne failed: %v", err)
	}
	if processed {
		t.Error("empty queue should not report processed")
	}
}

func TestProcessOne_FailsJobOnRenderError(t *testing.T) {
	fx := newWorkerFixture(t, &stubRenderer{err: errors.New("renderer exploded")})
	ctx := context.Background()

	versionID := fx.version.ID
	job, err := fx.queue.Enqueue(ctx, fx.version.ModelID, &versionID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	processed, err := fx.worker.ProcessOne(ctx)
	if err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}
	if !processed {
		t.Fatal("failed job still counts as processed")
	}

	failed, err := fx.queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if failed.Status != models.JobStatusFailed {
		t.Errorf("job status = %s, want Failed", failed.Status)
	}

	thumbnail, err := repositories.NewThumbnailRepository(fx.db).FindByVersionID(fx.version.ID)
	if err != nil {
		t.Fatalf("FindByVersionID failed: %v", err)
	}
	if thumbnail.Status != models.ThumbnailStatusFailed {
		t.Errorf("thumbnail status = %s, want Failed", thumbnail.Status)
	}
	if thumbnail.ErrorMessage == "" {
		t.Error("failed thumbnail should record the error message")
	}

	events, err := fx.queue.ListJobEvents(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListJobEvents failed: %v", err)
	}
	last := events[len(events)-1]
	if last.EventType != models.JobEventFailed {
		t.Errorf("last event = %s, want failed", last.EventType)
	}
}
