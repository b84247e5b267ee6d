package service

import (
	"strings"
	"time"

	"ebay_dev_v1_202608/internal/model"
)

// ==================== 生命周期判定 ====================
// 纯函数分类器，副作用（删除/采集/上下架）由扫描编排负责执行

// 不符合上架条件的发货地
var rejectedShippedFrom = map[string]bool{
	"沖縄県": true, // 冲绳发货周期长、运费高
	"海外":  true, // 海外代发无法保证时效
}

// 发货时限与配送方式的危险组合，时效不可控
const (
	slowShippedWithin    = "4~7日で発送"
	slowShippingKeyword  = "普通郵便"
	undecidedShipping    = "未定"
	minSellerRateScore   = 4.8
	minSellerRateCount   = 10
)

// EligibilityService 商品生命周期判定
type EligibilityService struct {
	RetentionDays   float64 // 未上架商品的留存天数
	PriceCeilingYen float64 // 来源价上限
}

// NewEligibilityService 创建判定服务
func NewEligibilityService() *EligibilityService {
	return &EligibilityService{
		RetentionDays:   model.ItemRetentionDays,
		PriceCeilingYen: model.ItemPriceCeilingYen,
	}
}

// ShouldDelete 未上架且超过留存期的商品应清理
// 删除判定优先级最高，避免长期滞留的商品被后续判定复活
func (s *EligibilityService) ShouldDelete(item *model.Item, now time.Time) bool {
	return !item.IsListed && item.AgeDays(now) > s.RetentionDays
}

// ShouldScrape 在架且来源可信的商品才值得刷新快照
// 来源已下架或已换图的商品快照不会再变好，刷新是浪费
func (s *EligibilityService) ShouldScrape(item *model.Item) bool {
	return item.IsOrgLive && !item.IsImageChanged && item.IsListed
}

// ShouldList 是否符合上架（或维持在架）条件
func (s *EligibilityService) ShouldList(item *model.Item, user *model.User) bool {
	if !item.IsOrgLive || item.IsImageChanged {
		return false
	}
	if item.OrgPrice >= s.PriceCeilingYen {
		return false
	}

	extra := item.OrgExtra.Data()
	if extra.IsPayOnDelivery != nil && *extra.IsPayOnDelivery {
		return false
	}
	// 评分缺失视为通过（Mercari Shops 页面没有评分）
	if extra.RateScore != nil && *extra.RateScore <= minSellerRateScore {
		return false
	}
	if extra.RateCount != nil && *extra.RateCount <= minSellerRateCount {
		return false
	}
	if rejectedShippedFrom[extra.ShippedFrom] {
		return false
	}
	if extra.ShippedWithin == slowShippedWithin {
		if strings.Contains(extra.ShippingMethod, slowShippingKeyword) {
			return false
		}
		if extra.ShippingMethod == undecidedShipping {
			return false
		}
	}
	if user.IsBlacklisted(extra.SellerID) {
		return false
	}
	return true
}

// RecheckDue 下架商品是否到了复核时刻
func (s *EligibilityService) RecheckDue(item *model.Item, now time.Time) bool {
	return item.NextRecheckAt != nil && !now.Before(*item.NextRecheckAt)
}
