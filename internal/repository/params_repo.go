package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ParamsRepository 全局参数仓储接口，整库仅一条 PARAMS 记录
type ParamsRepository interface {
	Get(ctx context.Context) (*model.AppParams, error)
	Save(ctx context.Context, params *model.AppParams) error
}

// ==================== 仓储实现 ====================

type paramsRepo struct {
	db *gorm.DB
}

// NewParamsRepository 创建全局参数仓储
func NewParamsRepository(db *gorm.DB) ParamsRepository {
	return &paramsRepo{db: db}
}

// Get 读取全局参数，记录不存在时返回带默认值的空记录
func (r *paramsRepo) Get(ctx context.Context) (*model.AppParams, error) {
	var params model.AppParams
	err := r.db.WithContext(ctx).
		Where("id = ?", model.AppParamsID).
		First(&params).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.AppParams{
			ID:                  model.AppParamsID,
			UsdJpy:              150,
			ScanEnabled:         true,
			RecheckIntervalDays: 10,
			S3TaxonomyPrefix:    "taxonomy",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &params, nil
}

// Save 写入全局参数，记录不存在时插入
// Select("*") 强制所有列入 INSERT，否则带 default 标签的字段在零值时会被数据库默认值覆盖
func (r *paramsRepo) Save(ctx context.Context, params *model.AppParams) error {
	params.ID = model.AppParamsID
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Select("*").
		Create(params).Error
}
