package dto

import (
	"fmt"
	"strings"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 快照采集 ====================

// StockCore 来源商品的核心字段，任一缺失视为采集失败
type StockCore struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageUrls   []string `json:"imageUrls"`
}

// StockData 一次采集得到的完整快照
type StockData struct {
	Core  StockCore        `json:"core"`
	Extra model.StockExtra `json:"extra"`
}

// ScrapeResult 采集结果：在售时携带快照，已售出时快照为空
type ScrapeResult struct {
	StockStatus string     `json:"stockStatus"` // instock / outofstock
	StockData   *StockData `json:"stockData,omitempty"`
}

// InStock 是否在售
func (r *ScrapeResult) InStock() bool {
	return r.StockStatus == model.StockStatusInStock
}

// Validate 校验在售快照的完整性，返回缺失字段清单
func (r *ScrapeResult) Validate() error {
	if r.StockStatus == model.StockStatusOutOfStock {
		return nil
	}
	if r.StockData == nil {
		return fmt.Errorf("stock data missing")
	}

	var missing []string
	core := r.StockData.Core
	if core.Title == "" {
		missing = append(missing, "title")
	}
	if core.Description == "" {
		missing = append(missing, "description")
	}
	// Mercari 最低售价 300 日元，低于此值说明解析到了错误节点
	if core.Price < 300 {
		missing = append(missing, "price")
	}
	if len(core.ImageUrls) == 0 {
		missing = append(missing, "imageUrls")
	}
	if r.StockData.Extra.ShippedFrom == "" {
		missing = append(missing, "shippedFrom")
	}
	if r.StockData.Extra.ShippedWithin == "" {
		missing = append(missing, "shippedWithin")
	}
	if r.StockData.Extra.ShippingMethod == "" {
		missing = append(missing, "shippingMethod")
	}

	if len(missing) > 0 {
		return fmt.Errorf("incomplete snapshot, missing: %s", strings.Join(missing, ", "))
	}
	return nil
}
