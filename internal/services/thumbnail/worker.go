package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/logger"
	"github.com/modelibr/modelibr/internal/pkg/mq"
	"github.com/modelibr/modelibr/internal/pkg/storage"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/assets"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Worker 缩略图渲染工作者
// 定时轮询加 MQ 唤醒双驱动：空轮询成本低，入队后又能及时响应
type Worker struct {
	queue         QueueService
	modelRepo     repositories.ModelRepository
	versionRepo   repositories.ModelVersionRepository
	fileRepo      repositories.FileRepository
	thumbnailRepo repositories.ThumbnailRepository
	store         storage.BlobStore
	renderer      Renderer
	mqClient      *mq.RabbitMQClient
	pollInterval  time.Duration

	nudges chan struct{}
}

// NewWorker 创建一个新的缩略图工作者
func NewWorker(
	queue QueueService,
	modelRepo repositories.ModelRepository,
	versionRepo repositories.ModelVersionRepository,
	fileRepo repositories.FileRepository,
	thumbnailRepo repositories.ThumbnailRepository,
	store storage.BlobStore,
	renderer Renderer,
	mqClient *mq.RabbitMQClient,
	pollIntervalSeconds int,
) *Worker {
	if pollIntervalSeconds <= 0 {
		pollIntervalSeconds = 5
	}
	return &Worker{
		queue:         queue,
		modelRepo:     modelRepo,
		versionRepo:   versionRepo,
		fileRepo:      fileRepo,
		thumbnailRepo: thumbnailRepo,
		store:         store,
		renderer:      renderer,
		mqClient:      mqClient,
		pollInterval:  time.Duration(pollIntervalSeconds) * time.Second,
		nudges:        make(chan struct{}, 1),
	}
}

// Run 阻塞运行工作循环直到 ctx 取消
func (w *Worker) Run(ctx context.Context) error {
	if w.mqClient != nil {
		err := w.mqClient.Consume(mq.ThumbnailNudgeQueueName, func(msg amqp.Delivery) {
			select {
			case w.nudges <- struct{}{}:
			default: // 已有待处理的唤醒信号，合并
			}
			_ = msg.Ack(false)
		})
		if err != nil {
			logger.Warn("Run: Failed to subscribe nudge queue, falling back to polling only", zap.Error(err))
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	logger.Info("Thumbnail worker started", zap.Duration("pollInterval", w.pollInterval))
	for {
		// 队列非空时连续消费，空了再回到等待
		for {
			processed, err := w.ProcessOne(ctx)
			if err != nil {
				logger.Error("Run: Failed to process thumbnail job", zap.Error(err))
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("Thumbnail worker stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-w.nudges:
		}
	}
}

// ProcessOne 领取并处理一个任务，队列为空时返回 (false, nil)
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	if err := w.renderJob(ctx, job); err != nil {
		// 渲染失败终结任务并把原因落进缩略图记录，失败不向上传播
		logger.Error("ProcessOne: Render failed", zap.Error(err), zap.Uint64("jobID", job.ID))
		if job.ModelVersionID != nil {
			w.upsertThumbnail(ctx, *job.ModelVersionID, models.ThumbnailStatusFailed, "", nil, err.Error())
		}
		if failErr := w.queue.Fail(ctx, job, err.Error()); failErr != nil {
			logger.Error("ProcessOne: Failed to mark job as failed", zap.Error(failErr), zap.Uint64("jobID", job.ID))
		}
		return true, nil
	}

	if err := w.queue.Complete(ctx, job); err != nil {
		// 渲染成功但终结失败(例如租约已被回收)：预览已落盘，另一次执行会重做终结
		logger.Error("ProcessOne: Failed to mark job as done", zap.Error(err), zap.Uint64("jobID", job.ID))
	}
	return true, nil
}

func (w *Worker) renderJob(ctx context.Context, job *models.ThumbnailJob) error {
	file, err := w.pickRenderableFile(job)
	if err != nil {
		return err
	}

	// 渲染器要的是本地路径，先把字节拉到临时文件
	inputPath := filepath.Join(os.TempDir(), "modelibr-input-"+uuid.NewString()+filepath.Ext(file.OriginalName))
	if err := w.downloadTo(ctx, file.RelativePath, inputPath); err != nil {
		return err
	}
	defer os.Remove(inputPath)

	data, err := w.renderer.Render(ctx, inputPath)
	if err != nil {
		return err
	}

	previewPath := storage.PreviewPathForHash(file.Sha256Hash, "")
	if _, err := w.store.Put(ctx, previewPath, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}

	if job.ModelVersionID != nil {
		w.upsertThumbnail(ctx, *job.ModelVersionID, models.ThumbnailStatusReady, previewPath, data, "")
	}
	logger.Info("renderJob: Preview rendered",
		zap.Uint64("jobID", job.ID), zap.String("previewPath", previewPath), zap.Int("bytes", len(data)))
	return nil
}

// pickRenderableFile 在任务目标里找第一个可渲染的模型文件
// 版本级任务看版本文件，模型级任务(遗留数据)看散文件
func (w *Worker) pickRenderableFile(job *models.ThumbnailJob) (*models.File, error) {
	if job.ModelVersionID != nil {
		files, err := w.versionRepo.FindFiles(*job.ModelVersionID)
		if err != nil {
			return nil, err
		}
		for i := range files {
			if assets.IsRenderable(files[i].OriginalName) {
				return &files[i], nil
			}
		}
		return nil, fmt.Errorf("version %d has no renderable file", *job.ModelVersionID)
	}

	loose, err := w.modelRepo.FindLooseFiles(job.ModelID)
	if err != nil {
		return nil, err
	}
	if len(loose) == 0 {
		return nil, fmt.Errorf("model %d has no files to render", job.ModelID)
	}
	// 散文件只有关联行，逐个取文件记录找可渲染的
	for _, mf := range loose {
		file, err := w.fileRepo.FindByID(mf.FileID)
		if err != nil {
			continue
		}
		if assets.IsRenderable(file.OriginalName) {
			return file, nil
		}
	}
	return nil, fmt.Errorf("model %d has no renderable file", job.ModelID)
}

func (w *Worker) downloadTo(ctx context.Context, relativePath, localPath string) error {
	result, err := w.store.Get(ctx, relativePath)
	if err != nil {
		return fmt.Errorf("failed to fetch blob %s: %w", relativePath, err)
	}
	defer result.Reader.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create temp input: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, result.Reader); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to download blob: %w", err)
	}
	return nil
}

// upsertThumbnail 失败也只记日志，缩略图记录是尽力而为的展示数据
func (w *Worker) upsertThumbnail(ctx context.Context, versionID uint64, status, relativePath string, data []byte, errorMessage string) {
	thumbnail := &models.Thumbnail{
		ModelVersionID: versionID,
		Status:         status,
		RelativePath:   relativePath,
		SizeBytes:      int64(len(data)),
		ErrorMessage:   errorMessage,
	}
	if len(data) > 0 {
		if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
			thumbnail.Width = cfg.Width
			thumbnail.Height = cfg.Height
		}
	}
	if err := w.thumbnailRepo.Upsert(thumbnail); err != nil {
		logger.Error("upsertThumbnail: Failed to upsert thumbnail record",
			zap.Error(err), zap.Uint64("versionID", versionID))
	}
}
