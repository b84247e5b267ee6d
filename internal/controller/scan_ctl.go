package controller

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/middleware"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/task"
)

// 手动触发的冷却间隔，定时调度不受限
const scanTriggerCooldown = time.Minute

type ScanController struct {
	scanTask *task.ScanTask
	runs     repository.ScanRunRepository
	limiter  *middleware.CooldownLimiter
}

func NewScanController(scanTask *task.ScanTask, runs repository.ScanRunRepository) *ScanController {
	return &ScanController{
		scanTask: scanTask,
		runs:     runs,
		limiter:  middleware.NewCooldownLimiter(),
	}
}

// Trigger 手动触发一轮库存巡检
func (ctrl *ScanController) Trigger(c *gin.Context) {
	if res := ctrl.limiter.Check(middleware.ScanTriggerKey(), scanTriggerCooldown); !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
		c.JSON(429, gin.H{"code": 429, "message": fmt.Sprintf("触发过于频繁，%s 后重试", res.RetryAfter.Round(time.Second))})
		return
	}

	runID, err := ctrl.scanTask.RunNow()
	if errors.Is(err, task.ErrScanInProgress) {
		c.JSON(409, gin.H{"code": 409, "message": "已有巡检在执行"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "触发失败: " + err.Error()})
		return
	}

	c.JSON(202, dto.ScanTriggerResponse{
		RunID:  runID,
		Status: "started",
	})
}

// Status 查询巡检状态与最近一轮结果
func (ctrl *ScanController) Status(c *gin.Context) {
	resp := gin.H{"code": 0, "running": ctrl.scanTask.Running()}

	run, err := ctrl.runs.Latest(c.Request.Context())
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	if run != nil {
		resp["lastRun"] = toScanRunResp(run)
	}
	c.JSON(200, resp)
}

// History 查询最近的巡检历史
func (ctrl *ScanController) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := ctrl.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	data := make([]dto.ScanRunResp, 0, len(runs))
	for i := range runs {
		data = append(data, toScanRunResp(&runs[i]))
	}
	c.JSON(200, dto.ScanHistoryResponse{Code: 0, Message: "success", Data: data})
}

// ==================== 视图转换 ====================

func toScanRunResp(run *model.ScanRun) dto.ScanRunResp {
	resp := dto.ScanRunResp{
		RunID:     run.ID,
		Status:    run.Status,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Processed: run.Processed,
		Failed:    run.Failed,
		Error:     run.Error,
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return resp
}
