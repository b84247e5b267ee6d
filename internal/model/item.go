package model

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ==================== 状态常量 ====================

const (
	// 来源平台
	PlatformMercari     = "merc"  // Mercari 个人卖家
	PlatformMercariShop = "mshop" // Mercari Shops 店铺卖家

	// 库存状态（快照采集结果）
	StockStatusInStock    = "instock"
	StockStatusOutOfStock = "outofstock"

	// 商品留存上限（天），超期且未上架的商品会被清理
	ItemRetentionDays = 180

	// 来源价上限（日元），超过则不符合上架条件
	ItemPriceCeilingYen = 100000
)

// 主键前缀，沿用旧系统的单表命名习惯，扫描端据此过滤脏数据
const (
	ItemIDPrefix = "ITEM#"
	UserIDPrefix = "USER#"
)

// ==================== 来源侧扩展信息 ====================

// StockExtra 来源平台的卖家/配送属性快照
// RateScore / RateCount 在 Mercari Shops 页面上不存在，保持 nil
type StockExtra struct {
	IsPayOnDelivery *bool    `json:"isPayOnDelivery,omitempty"` // 着払い（运费到付）
	RateScore       *float64 `json:"rateScore,omitempty"`       // 卖家评分
	RateCount       *int     `json:"rateCount,omitempty"`       // 评价数量
	ShippedFrom     string   `json:"shippedFrom,omitempty"`     // 发货地（都道府県）
	ShippedWithin   string   `json:"shippedWithin,omitempty"`   // 发货时限
	ShippingMethod  string   `json:"shippingMethod,omitempty"`  // 配送方式
	SellerID        string   `json:"sellerId,omitempty"`        // 卖家 ID
	ItemCondition   string   `json:"itemCondition,omitempty"`   // 商品の状態
}

// ==================== 数据库模型 ====================

// Item 套利商品：Mercari 来源快照 + eBay 上架内容 + 生命周期标记
type Item struct {
	ID        string         `gorm:"primaryKey;size:255"` // ITEM#<username>#<sku>
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time      `gorm:"index"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// --- 归属 ---
	Username string `gorm:"size:64;index;not null"` // 运营用户
	EbaySku  string `gorm:"size:64;index;not null"` // 也是来源平台的商品 ID

	// --- 来源快照 ---
	OrgPlatform    string                          `gorm:"size:16;not null"` // merc / mshop
	OrgURL         string                          `gorm:"size:1024"`
	OrgTitle       string                          `gorm:"size:512"`
	OrgDescription string                          `gorm:"type:text"`
	OrgPrice       float64                         `gorm:"default:0"` // 日元
	OrgImageUrls   datatypes.JSONSlice[string]     `gorm:"type:json"`
	OrgExtra       datatypes.JSONType[StockExtra]  `gorm:"type:json"`

	// --- eBay 上架内容（注册阶段生成，扫描阶段不重算） ---
	EbayTitle                string                               `gorm:"size:80"`
	EbayDescription          string                               `gorm:"type:text"`
	EbayCategorySrc          datatypes.JSONSlice[string]          `gorm:"type:json"` // 分类路径（根到叶）
	EbayCategory             string                               `gorm:"size:16"`   // 叶子分类 ID
	EbayStoreCategorySrc     datatypes.JSONSlice[string]          `gorm:"type:json"`
	EbayCondition            string                               `gorm:"size:32"`
	EbayConditionDescription string                               `gorm:"size:1024"`
	EbayImageUrls            datatypes.JSONSlice[string]          `gorm:"type:json"`
	EbayAspectParam          datatypes.JSONType[map[string][]string] `gorm:"type:json"`

	// --- 物流估算 ---
	ShippingYen float64                      `gorm:"default:0"` // 国际运费（日元）
	WeightGram  float64                      `gorm:"default:0"`
	BoxSizeCm   datatypes.JSONSlice[float64] `gorm:"type:json"` // [长, 宽, 高]

	// --- 生命周期标记 ---
	IsListed       bool   `gorm:"default:false;index"` // eBay 在架
	IsOrgLive      bool   `gorm:"default:false"`       // 来源仍在售
	IsImageChanged bool   `gorm:"default:false"`       // 来源换图，内容不再可信
	IsDraft        bool   `gorm:"default:false;index"` // 注册被拦截，待人工处理
	DraftReason    string `gorm:"size:1024"`

	// 下架后复核时刻，到期的商品在扫描时重新判定
	NextRecheckAt *time.Time `gorm:"index"`
}

func (*Item) TableName() string {
	return "items"
}

// ItemID 拼接主键：ITEM#<username>#<sku>
func ItemID(username, sku string) string {
	return fmt.Sprintf("%s%s#%s", ItemIDPrefix, username, sku)
}

// IsItemID 判断主键是否属于商品记录
func IsItemID(id string) bool {
	return strings.HasPrefix(id, ItemIDPrefix)
}

// Clone 深拷贝，扫描流程先拷贝后修改，失败时不污染原快照
func (i *Item) Clone() *Item {
	c := *i
	c.OrgImageUrls = append(datatypes.JSONSlice[string]{}, i.OrgImageUrls...)
	c.EbayCategorySrc = append(datatypes.JSONSlice[string]{}, i.EbayCategorySrc...)
	c.EbayStoreCategorySrc = append(datatypes.JSONSlice[string]{}, i.EbayStoreCategorySrc...)
	c.EbayImageUrls = append(datatypes.JSONSlice[string]{}, i.EbayImageUrls...)
	c.BoxSizeCm = append(datatypes.JSONSlice[float64]{}, i.BoxSizeCm...)
	if i.NextRecheckAt != nil {
		t := *i.NextRecheckAt
		c.NextRecheckAt = &t
	}
	extra := i.OrgExtra.Data()
	if extra.IsPayOnDelivery != nil {
		v := *extra.IsPayOnDelivery
		extra.IsPayOnDelivery = &v
	}
	if extra.RateScore != nil {
		v := *extra.RateScore
		extra.RateScore = &v
	}
	if extra.RateCount != nil {
		v := *extra.RateCount
		extra.RateCount = &v
	}
	aspects := i.EbayAspectParam.Data()
	if aspects != nil {
		copied := make(map[string][]string, len(aspects))
		for k, v := range aspects {
			copied[k] = append([]string{}, v...)
		}
		c.EbayAspectParam = datatypes.NewJSONType(copied)
	}
	c.OrgExtra = datatypes.NewJSONType(extra)
	return &c
}

// AgeDays 距创建时刻的天数（可为小数）
func (i *Item) AgeDays(now time.Time) float64 {
	return now.Sub(i.CreatedAt).Hours() / 24
}

// MarkDraft 标记为草稿并记录原因，草稿不参与自动上架
func (i *Item) MarkDraft(reason string) {
	i.IsDraft = true
	i.DraftReason = reason
}
