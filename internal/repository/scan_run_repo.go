package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ScanRunRepository 巡检记录仓储接口
type ScanRunRepository interface {
	Create(ctx context.Context, run *model.ScanRun) error
	Finish(ctx context.Context, run *model.ScanRun) error
	Latest(ctx context.Context) (*model.ScanRun, error)
	ListRecent(ctx context.Context, limit int) ([]model.ScanRun, error)
}

// ==================== 仓储实现 ====================

type scanRunRepo struct {
	db *gorm.DB
}

// NewScanRunRepository 创建巡检记录仓储
func NewScanRunRepository(db *gorm.DB) ScanRunRepository {
	return &scanRunRepo{db: db}
}

func (r *scanRunRepo) Create(ctx context.Context, run *model.ScanRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Finish 回写一轮巡检的结束状态与统计
func (r *scanRunRepo) Finish(ctx context.Context, run *model.ScanRun) error {
	return r.db.WithContext(ctx).
		Model(&model.ScanRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"finished_at": run.FinishedAt,
			"status":      run.Status,
			"processed":   run.Processed,
			"failed":      run.Failed,
			"error":       run.Error,
		}).Error
}

// Latest 最近一轮巡检，没有记录时返回 nil
func (r *scanRunRepo) Latest(ctx context.Context) (*model.ScanRun, error) {
	var run model.ScanRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent 按开始时间倒序列出最近的巡检记录
func (r *scanRunRepo) ListRecent(ctx context.Context, limit int) ([]model.ScanRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []model.ScanRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
