package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/service"
)

func newScanTaskForTest(t *testing.T) (*ScanTask, repository.ScanRunRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&model.Item{}, &model.User{}, &model.AppParams{}, &model.ScanRun{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}

	inventory := service.NewInventoryService(
		repository.NewItemRepository(db),
		repository.NewUserRepository(db),
		repository.NewParamsRepository(db),
		nil, nil,
		service.NewEligibilityService(),
	)
	runs := repository.NewScanRunRepository(db)
	return NewScanTask(inventory, runs), runs
}

func TestScanTask_RunNow(t *testing.T) {
	task, runs := newScanTaskForTest(t)

	runID, err := task.RunNow()
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if runID == "" {
		t.Error("runID 不应为空")
	}

	// 空库扫描很快结束，标记位应被复位
	deadline := time.Now().Add(5 * time.Second)
	for task.Running() {
		if time.Now().After(deadline) {
			t.Fatal("巡检未在期望时间内结束")
		}
		time.Sleep(10 * time.Millisecond)
	}

	run, err := runs.Latest(context.Background())
	if err != nil {
		t.Fatalf("读取巡检记录失败: %v", err)
	}
	if run == nil || run.ID != runID {
		t.Fatalf("run = %+v, want ID %s", run, runID)
	}
	if run.Status != model.ScanRunFinished || run.FinishedAt == nil {
		t.Errorf("status = %s, finishedAt = %v", run.Status, run.FinishedAt)
	}
}

func TestScanTask_RunNow_Overlap(t *testing.T) {
	task, _ := newScanTaskForTest(t)

	// 模拟一轮巡检在途
	task.running = 1

	if _, err := task.RunNow(); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("error = %v, want ErrScanInProgress", err)
	}
}
