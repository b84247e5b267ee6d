package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 运营用户：eBay 账号凭据、上架策略与风控参数
type User struct {
	ID        string         `gorm:"primaryKey;size:128"` // USER#<username>
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time      `gorm:"index"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Username string `gorm:"size:64;uniqueIndex;not null"`

	// --- 风控 ---
	SellerBlacklist datatypes.JSONSlice[string] `gorm:"type:json"` // 拉黑的来源卖家 ID
	MaxListedCount  int                         `gorm:"default:0"` // 在架商品数量上限

	// --- 定价 ---
	ProfitRatio float64 `gorm:"default:0.1"` // 目标利润率 (0~1)

	// --- eBay 商务策略 ---
	FulfillmentPolicyID string `gorm:"size:64"`
	PaymentPolicyID     string `gorm:"size:64"`
	ReturnPolicyID      string `gorm:"size:64"`
	MerchantLocationKey string `gorm:"size:64"`

	// --- eBay OAuth ---
	EbayRefreshToken   string    `gorm:"size:2048"`
	EbayAccessToken    string    `gorm:"size:4096"`
	EbayTokenExpiresAt time.Time `gorm:"index"`
}

func (*User) TableName() string {
	return "users"
}

// UserID 拼接主键：USER#<username>
func UserID(username string) string {
	return UserIDPrefix + username
}

// IsBlacklisted 判断来源卖家是否被该用户拉黑
func (u *User) IsBlacklisted(sellerID string) bool {
	if sellerID == "" {
		return false
	}
	for _, s := range u.SellerBlacklist {
		if s == sellerID {
			return true
		}
	}
	return false
}

// TokenExpiringSoon 访问令牌是否即将过期（含已过期）
func (u *User) TokenExpiringSoon(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(u.EbayTokenExpiresAt)
}
