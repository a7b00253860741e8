package thumbnail

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/modelibr/modelibr/internal/models"
	"github.com/modelibr/modelibr/internal/pkg/xerr"
	"github.com/modelibr/modelibr/internal/repositories"
	"github.com/modelibr/modelibr/internal/services/assets"
	"github.com/modelibr/modelibr/internal/setup"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "modelibr.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := setup.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newQueue(t *testing.T, lockTimeoutMinutes int) (*queueService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewQueueService(
		repositories.NewThumbnailJobRepository(db),
		assets.NewTransactionManager(db),
		nil,
		lockTimeoutMinutes,
	)
	return svc.(*queueService), db
}

func TestEnqueue_IsIdempotentPerTarget(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()
	versionID := uint64(7)

	first, err := queue.Enqueue(ctx, 1, &versionID)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if first.Status != models.JobStatusPending {
		t.Errorf("status = %s, want Pending", first.Status)
	}

	second, err := queue.Enqueue(ctx, 1, &versionID)
	if err != nil {
		t.Fatalf("second Enqueue failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second enqueue created job %d, want existing %d", second.ID, first.ID)
	}

	// 不同目标各自有独立任务
	otherVersion := uint64(8)
	third, err := queue.Enqueue(ctx, 1, &otherVersion)
	if err != nil {
		t.Fatalf("third Enqueue failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("different version target should get its own job")
	}

	events, err := queue.ListJobEvents(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListJobEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].EventType != models.JobEventEnqueued {
		t.Errorf("events = %v, want a single enqueued event", events)
	}
}

func TestClaimNext_OldestFirst(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	v1, v2 := uint64(1), uint64(2)
	first, _ := queue.Enqueue(ctx, 1, &v1)
	second, _ := queue.Enqueue(ctx, 2, &v2)

	claimed, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed = %v, want oldest job %d", claimed, first.ID)
	}
	if claimed.Status != models.JobStatusProcessing {
		t.Errorf("claimed status = %s, want Processing", claimed.Status)
	}
	if claimed.LockedAt == nil || claimed.LockExpiresAt == nil {
		t.Error("claimed job must carry lease timestamps")
	}
	if claimed.AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", claimed.AttemptCount)
	}

	// 第一个任务持有租约期间，下一次领取拿到第二个任务
	next, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("second ClaimNext failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("second claim = %v, want job %d", next, second.ID)
	}

	// 队列空了
	empty, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("third ClaimNext failed: %v", err)
	}
	if empty != nil {
		t.Errorf("empty queue claim = %v, want nil", empty)
	}
}

func TestClaimNext_ReclaimsExpiredLease(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	base := time.Now()
	queue.now = func() time.Time { return base }

	versionID := uint64(1)
	job, _ := queue.Enqueue(ctx, 1, &versionID)
	if _, err := queue.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// 租约未过期时没有可领取的任务
	queue.now = func() time.Time { return base.Add(29 * time.Minute) }
	held, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if held != nil {
		t.Fatalf("claim before lease expiry = %v, want nil", held)
	}

	// 过期后同一任务可被重新领取
	queue.now = func() time.Time { return base.Add(31 * time.Minute) }
	reclaimed, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != job.ID {
		t.Fatalf("reclaimed = %v, want job %d", reclaimed, job.ID)
	}
	if reclaimed.AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", reclaimed.AttemptCount)
	}

	// 事件流里回收和再领取都可见
	events, err := queue.ListJobEvents(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListJobEvents failed: %v", err)
	}
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	want := []string{
		models.JobEventEnqueued,
		models.JobEventClaimed,
		models.JobEventReclaimed,
		models.JobEventClaimed,
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestClaimNext_SingleWinnerUnderContention(t *testing.T) {
	queue, db := newQueue(t, 30)
	ctx := context.Background()

	// 单连接让并发事务在驱动层排队，sqlite 不支持真正的并行写
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	base := time.Now()
	queue.now = func() time.Time { return base }

	versionID := uint64(1)
	job, _ := queue.Enqueue(ctx, 1, &versionID)
	if _, err := queue.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// 租约过期后多个工作者同时抢这一个任务，只能有一个赢家
	queue.now = func() time.Time { return base.Add(31 * time.Minute) }

	const workers = 8
	results := make(chan *models.ThumbnailJob, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := queue.ClaimNext(ctx)
			if err != nil {
				t.Errorf("concurrent ClaimNext failed: %v", err)
				return
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for claimed := range results {
		if claimed == nil {
			continue
		}
		winners++
		if claimed.ID != job.ID {
			t.Errorf("claimed job %d, want %d", claimed.ID, job.ID)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}

	after, err := queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if after.Status != models.JobStatusProcessing {
		t.Errorf("status = %s, want Processing", after.Status)
	}
	if after.AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", after.AttemptCount)
	}
}

func TestCompleteAndFail_RequireProcessing(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	versionID := uint64(1)
	job, _ := queue.Enqueue(ctx, 1, &versionID)

	// Pending 状态不能直接终结
	if err := queue.Complete(ctx, job); !errors.Is(err, xerr.ErrJobNotProcessing) {
		t.Errorf("Complete on pending job error = %v, want ErrJobNotProcessing", err)
	}

	claimed, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := queue.Complete(ctx, claimed); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	done, err := queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if done.Status != models.JobStatusDone {
		t.Errorf("status = %s, want Done", done.Status)
	}
	if done.LockedAt != nil || done.LockExpiresAt != nil {
		t.Error("finished job must not hold a lease")
	}

	// 终态不能再转换
	if err := queue.Fail(ctx, claimed, "too late"); !errors.Is(err, xerr.ErrJobNotProcessing) {
		t.Errorf("Fail on done job error = %v, want ErrJobNotProcessing", err)
	}

	// 终结后同目标可以重新入队
	fresh, err := queue.Enqueue(ctx, 1, &versionID)
	if err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	if fresh.ID == job.ID {
		t.Error("finished job should not be reused by a new enqueue")
	}
}

func TestComplete_RejectsStaleClaimant(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	base := time.Now()
	queue.now = func() time.Time { return base }

	versionID := uint64(1)
	job, _ := queue.Enqueue(ctx, 1, &versionID)
	stale, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// 租约过期后任务被另一个工作者接管
	queue.now = func() time.Time { return base.Add(31 * time.Minute) }
	fresh, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("second ClaimNext failed: %v", err)
	}
	if fresh == nil || fresh.ID != job.ID {
		t.Fatalf("second claim = %v, want job %d", fresh, job.ID)
	}

	// 过期的持有者不能终结新持有者的任务
	if err := queue.Complete(ctx, stale); !errors.Is(err, xerr.ErrLeaseLost) {
		t.Errorf("stale Complete error = %v, want ErrLeaseLost", err)
	}
	if err := queue.Fail(ctx, stale, "too slow"); !errors.Is(err, xerr.ErrLeaseLost) {
		t.Errorf("stale Fail error = %v, want ErrLeaseLost", err)
	}
	after, err := queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if after.Status != models.JobStatusProcessing {
		t.Errorf("status = %s, want Processing (stale claimant must not change it)", after.Status)
	}

	// 当前持有者正常终结
	if err := queue.Complete(ctx, fresh); err != nil {
		t.Fatalf("Complete by current claimant failed: %v", err)
	}
}

func TestFail_RecordsReason(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	versionID := uint64(1)
	job, _ := queue.Enqueue(ctx, 1, &versionID)
	claimed, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := queue.Fail(ctx, claimed, "renderer crashed"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	events, err := queue.ListJobEvents(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListJobEvents failed: %v", err)
	}
	last := events[len(events)-1]
	if last.EventType != models.JobEventFailed || last.Detail != "renderer crashed" {
		t.Errorf("last event = %+v, want failed with reason", last)
	}
}

func TestReclaimExpired(t *testing.T) {
	queue, _ := newQueue(t, 30)
	ctx := context.Background()

	base := time.Now()
	queue.now = func() time.Time { return base }

	v1, v2 := uint64(1), uint64(2)
	expired, _ := queue.Enqueue(ctx, 1, &v1)
	if _, err := queue.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// 第二个任务 10 分钟后领取，31 分钟时它的租约还新鲜
	queue.now = func() time.Time { return base.Add(10 * time.Minute) }
	fresh, _ := queue.Enqueue(ctx, 2, &v2)
	if _, err := queue.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	queue.now = func() time.Time { return base.Add(31 * time.Minute) }
	reclaimed, err := queue.ReclaimExpired(ctx)
	if err != nil {
		t.Fatalf("ReclaimExpired failed: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != expired.ID {
		t.Fatalf("reclaimed = %v, want only job %d", reclaimed, expired.ID)
	}

	after, err := queue.GetJob(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if after.Status != models.JobStatusPending {
		t.Errorf("reclaimed job status = %s, want Pending", after.Status)
	}

	freshAfter, err := queue.GetJob(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if freshAfter.Status != models.JobStatusProcessing {
		t.Errorf("fresh job status = %s, want Processing", freshAfter.Status)
	}
}
