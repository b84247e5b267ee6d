package task

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/service"
)

// 单轮巡检的硬超时，浏览器卡死时兜底
const scanTimeout = 6 * time.Hour

// ScanTask 库存巡检定时任务
// 每天凌晨全量扫一遍库存，也支持接口手动触发
type ScanTask struct {
	Inventory *service.InventoryService
	Runs      repository.ScanRunRepository
	Cron      *cron.Cron

	// 巡检耗时可能超过调度间隔，用标记位避免重叠执行
	running int32
}

func NewScanTask(inventory *service.InventoryService, runs repository.ScanRunRepository) *ScanTask {
	return &ScanTask{
		Inventory: inventory,
		Runs:      runs,
		Cron:      cron.New(cron.WithSeconds()),
	}
}

// Start 启动定时任务，每天凌晨 3 点执行
func (t *ScanTask) Start() {
	_, err := t.Cron.AddFunc("0 0 3 * * *", func() {
		if _, err := t.RunNow(); err != nil {
			log.Printf("[Scan] 定时巡检未执行: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("无法启动巡检定时任务: %v", err)
	}

	t.Cron.Start()
	log.Println("库存巡检任务已启动 (每天 03:00 执行)")
}

// Stop 停止定时任务，等待在途的一轮结束
func (t *ScanTask) Stop() {
	ctx := t.Cron.Stop()
	<-ctx.Done()
}

// RunNow 立即触发一轮巡检，返回本轮的运行标识
// 已有巡检在跑时拒绝重复触发
func (t *ScanTask) RunNow() (string, error) {
	if !atomic.CompareAndSwapInt32(&t.running, 0, 1) {
		return "", ErrScanInProgress
	}

	run := &model.ScanRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    model.ScanRunRunning,
	}

	go func() {
		defer atomic.StoreInt32(&t.running, 0)

		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()

		// 记录失败不影响巡检本身
		if err := t.Runs.Create(ctx, run); err != nil {
			log.Printf("[Scan] Record run %s failed: %v", run.ID, err)
		}

		log.Printf("[Scan] Run %s started", run.ID)
		report, err := t.Inventory.ScanAll(ctx)

		finished := time.Now()
		run.FinishedAt = &finished
		if err != nil {
			log.Printf("[Scan] Run %s failed: %v", run.ID, err)
			run.Status = model.ScanRunFailed
			run.Error = err.Error()
		} else {
			run.Status = model.ScanRunFinished
		}
		if report != nil {
			run.Processed = report.Processed
			run.Failed = report.Failed
		}

		// 巡检超时后 ctx 已失效，回写用独立的短超时
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer finishCancel()
		if err := t.Runs.Finish(finishCtx, run); err != nil {
			log.Printf("[Scan] Finish run %s failed: %v", run.ID, err)
		}
		log.Printf("[Scan] Run %s finished in %s", run.ID, finished.Sub(run.StartedAt).Round(time.Second))
	}()
	return run.ID, nil
}

// Running 是否有巡检在途
func (t *ScanTask) Running() bool {
	return atomic.LoadInt32(&t.running) == 1
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	// ErrScanInProgress 已有一轮巡检在执行
	ErrScanInProgress TaskError = "scan already in progress"
)
