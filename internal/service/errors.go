package service

import (
	"errors"
	"fmt"
)

// ==================== 错误定义 ====================

var (
	// ErrScrapeFailed 快照采集不完整（页面改版或反爬拦截）
	ErrScrapeFailed = errors.New("scrape failed")

	// ErrPackageTooLarge 包装超出可承运范围
	ErrPackageTooLarge = errors.New("package too large")

	// ErrCategoryNotFound 分类路径查不到叶子分类
	ErrCategoryNotFound = errors.New("category not found")

	// ErrConditionNotFound 成色在目标分类下不可用
	ErrConditionNotFound = errors.New("condition not found")

	// ErrMaxListedCountReached 在架商品数量达到上限
	ErrMaxListedCountReached = errors.New("max listed count reached")

	// ErrItemExists 商品已注册
	ErrItemExists = errors.New("item already registered")

	// ErrUnsupportedURL 无法识别的来源链接
	ErrUnsupportedURL = errors.New("unsupported source url")
)

// RiskError AI 风险清单命中，携带模型给出的说明
type RiskError struct {
	Explanation string
}

func (e *RiskError) Error() string {
	return "risk checklist flagged: " + e.Explanation
}

// RemoteError 远端 API 调用失败（eBay / Gemini）
type RemoteError struct {
	Op     string // 调用点，如 ebay.createOffer
	Status int    // HTTP 状态码
	Body   string // 响应体摘要
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}
