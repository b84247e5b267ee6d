package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/service"
	"ebay_dev_v1_202608/internal/task"
)

type scanCtlFixture struct {
	router *gin.Engine
	task   *task.ScanTask
	runs   repository.ScanRunRepository
}

func newScanCtlFixture(t *testing.T) *scanCtlFixture {
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
	scanTask := task.NewScanTask(inventory, runs)
	scanCtl := NewScanController(scanTask, runs)

	r := gin.New()
	r.Use(gin.Recovery())
	scan := r.Group("/api/scan")
	{
		scan.POST("/trigger", scanCtl.Trigger)
		scan.GET("/status", scanCtl.Status)
		scan.GET("/history", scanCtl.History)
	}

	return &scanCtlFixture{router: r, task: scanTask, runs: runs}
}

func (f *scanCtlFixture) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.task.Running() {
		if time.Now().After(deadline) {
			t.Fatal("巡检未在期望时间内结束")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestScanController_Trigger(t *testing.T) {
	f := newScanCtlFixture(t)

	w := doRequest(f.router, http.MethodPost, "/api/scan/trigger", nil)
	if w.Code != 202 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp dto.ScanTriggerResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.RunID == "" || resp.Status != "started" {
		t.Errorf("resp = %+v", resp)
	}

	// 冷却期内重复触发
	w = doRequest(f.router, http.MethodPost, "/api/scan/trigger", nil)
	if w.Code != 429 {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("应返回 Retry-After 头")
	}
	f.waitIdle(t)
}

func TestScanController_Status(t *testing.T) {
	f := newScanCtlFixture(t)

	w := doRequest(f.router, http.MethodPost, "/api/scan/trigger", nil)
	if w.Code != 202 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	f.waitIdle(t)

	w = doRequest(f.router, http.MethodGet, "/api/scan/status", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Running bool             `json:"running"`
		LastRun *dto.ScanRunResp `json:"lastRun"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Running {
		t.Error("巡检结束后 running 应为 false")
	}
	if resp.LastRun == nil || resp.LastRun.Status != model.ScanRunFinished {
		t.Errorf("lastRun = %+v", resp.LastRun)
	}
}

func TestScanController_History(t *testing.T) {
	f := newScanCtlFixture(t)

	old := time.Now().Add(-time.Hour)
	oldFinished := old.Add(10 * time.Minute)
	f.runs.Create(context.Background(), &model.ScanRun{
		ID: "run-old", StartedAt: old, FinishedAt: &oldFinished,
		Status: model.ScanRunFinished, Processed: 12,
	})
	now := time.Now()
	f.runs.Create(context.Background(), &model.ScanRun{
		ID: "run-new", StartedAt: now, Status: model.ScanRunRunning,
	})

	w := doRequest(f.router, http.MethodGet, "/api/scan/history", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp dto.ScanHistoryResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Fatalf("len(data) = %d, want 2", len(resp.Data))
	}
	// 按开始时间倒序
	if resp.Data[0].RunID != "run-new" || resp.Data[1].RunID != "run-old" {
		t.Errorf("order = %s, %s", resp.Data[0].RunID, resp.Data[1].RunID)
	}
}
