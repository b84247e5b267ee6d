package model

import "time"

// ==================== 巡检记录 ====================

// 巡检状态
const (
	ScanRunRunning  = "running"
	ScanRunFinished = "finished"
	ScanRunFailed   = "failed"
)

// ScanRun 一轮库存巡检的运行记录
// 按 started_at 做月度分区，只增不改（除结束时回写一次）
type ScanRun struct {
	ID        string    `gorm:"primaryKey;size:36"` // uuid
	StartedAt time.Time `gorm:"primaryKey;index"`   // 分区键

	FinishedAt *time.Time
	Status     string `gorm:"size:16;default:running"`

	// --- 统计 ---
	Processed int
	Failed    int

	// 整轮失败时的错误摘要
	Error string `gorm:"size:512"`
}

func (*ScanRun) TableName() string {
	return "scan_runs"
}
