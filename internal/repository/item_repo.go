package repository

import (
	"context"

	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// ItemRepository 商品仓储接口
type ItemRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, item *model.Item) error
	GetByID(ctx context.Context, id string) (*model.Item, error)
	Update(ctx context.Context, item *model.Item) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	HardDelete(ctx context.Context, id string) error
	List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error)

	// 全量扫描（按主键分批翻页，供库存扫描使用）
	ScanBatch(ctx context.Context, afterID string, limit int) ([]model.Item, error)

	// 统计
	CountListed(ctx context.Context, username string) (int64, error)

	// 事务
	WithTx(tx *gorm.DB) ItemRepository
	Transaction(ctx context.Context, fn func(txRepo ItemRepository) error) error
}

// ==================== 过滤条件 ====================

// ItemFilter 商品过滤条件
type ItemFilter struct {
	Username string
	Platform string
	IsListed *bool
	IsDraft  *bool
	Keyword  string
	Page     int
	PageSize int
}

// ==================== 仓储实现 ====================

type itemRepo struct {
	db *gorm.DB
}

// NewItemRepository 创建商品仓储
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) Create(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepo) GetByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) Update(ctx context.Context, item *model.Item) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *itemRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *itemRepo) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Where("id = ?", id).
		Delete(&model.Item{}).Error
}

func (r *itemRepo) List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Item{})

	if filter.Username != "" {
		query = query.Where("username = ?", filter.Username)
	}
	if filter.Platform != "" {
		query = query.Where("org_platform = ?", filter.Platform)
	}
	if filter.IsListed != nil {
		query = query.Where("is_listed = ?", *filter.IsListed)
	}
	if filter.IsDraft != nil {
		query = query.Where("is_draft = ?", *filter.IsDraft)
	}
	if filter.Keyword != "" {
		query = query.Where("org_title LIKE ?", "%"+filter.Keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Order("updated_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&items).Error

	return items, total, err
}

// ScanBatch 主键游标翻页，afterID 传空串取第一批
func (r *itemRepo) ScanBatch(ctx context.Context, afterID string, limit int) ([]model.Item, error) {
	var items []model.Item
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *itemRepo) CountListed(ctx context.Context, username string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("username = ? AND is_listed = ?", username, true).
		Count(&count).Error
	return count, err
}

func (r *itemRepo) WithTx(tx *gorm.DB) ItemRepository {
	return &itemRepo{db: tx}
}

func (r *itemRepo) Transaction(ctx context.Context, fn func(txRepo ItemRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
