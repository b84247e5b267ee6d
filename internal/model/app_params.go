package model

import (
	"time"

	"gorm.io/datatypes"
)

// AppParamsID 全局参数单条记录的固定主键
const AppParamsID = "PARAMS"

// AppParams 全局运行参数，整库仅一条记录
type AppParams struct {
	ID        string    `gorm:"primaryKey;size:16"` // 恒为 PARAMS
	UpdatedAt time.Time

	// --- 汇率与定价 ---
	UsdJpy float64 `gorm:"default:150"` // 美元兑日元

	// --- eBay 应用凭据 ---
	EbayIsSandbox    bool   `gorm:"default:false"`
	EbayClientID     string `gorm:"size:128"`
	EbayClientSecret string `gorm:"size:128"`

	// --- 分类词库（S3 上的离线数据） ---
	S3Bucket         string `gorm:"size:128"`
	S3TaxonomyPrefix string `gorm:"size:128;default:taxonomy"`

	// 兜底分类路径：AI 给出的路径查不到叶子分类时使用
	DefaultCategorySrc      datatypes.JSONSlice[string] `gorm:"type:json"`
	DefaultStoreCategorySrc datatypes.JSONSlice[string] `gorm:"type:json"`

	// --- 扫描开关 ---
	ScanEnabled         bool `gorm:"default:true"`
	RecheckIntervalDays int  `gorm:"default:10"` // 下架商品的复核间隔
}

func (*AppParams) TableName() string {
	return "app_params"
}
