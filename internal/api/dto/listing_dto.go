package dto

// ==================== 上架内容 ====================

// ListingDraft 注册流水线的最终产出，落库到 Item 的 ebay* 字段
type ListingDraft struct {
	EbayTitle                string              `json:"ebayTitle"`
	EbayDescription          string              `json:"ebayDescription"` // HTML
	EbayCategorySrc          []string            `json:"ebayCategorySrc"`
	EbayCategory             string              `json:"ebayCategory"` // 叶子分类 ID
	EbayStoreCategorySrc     []string            `json:"ebayStoreCategorySrc"`
	EbayCondition            string              `json:"ebayCondition"` // eBay condition enum
	EbayConditionDescription string              `json:"ebayConditionDescription"`
	EbayImageUrls            []string            `json:"ebayImageUrls"`
	EbayAspectParam          map[string][]string `json:"ebayAspectParam"`

	ShippingYen float64   `json:"shippingYen"`
	WeightGram  float64   `json:"weightGram"`
	BoxSizeCm   []float64 `json:"boxSizeCm"`
}

// ==================== HTTP 请求/响应 ====================

// RegisterItemRequest 商品注册请求
type RegisterItemRequest struct {
	Username  string `json:"username" binding:"required"`
	SourceURL string `json:"sourceUrl" binding:"required,url"`
}

// RegisterItemResponse 商品注册响应（流水线异步执行）
type RegisterItemResponse struct {
	ItemID   string `json:"itemId"`
	EbaySku  string `json:"ebaySku"`
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

// ItemListRequest 商品列表查询
type ItemListRequest struct {
	Username string `form:"username"`
	Platform string `form:"platform"`
	IsListed *bool  `form:"isListed"`
	IsDraft  *bool  `form:"isDraft"`
	Keyword  string `form:"keyword"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"pageSize,default=20"`
}

// ItemResp 商品视图
type ItemResp struct {
	ID             string   `json:"id"`
	Username       string   `json:"username"`
	EbaySku        string   `json:"ebaySku"`
	OrgPlatform    string   `json:"orgPlatform"`
	OrgURL         string   `json:"orgUrl"`
	OrgTitle       string   `json:"orgTitle"`
	OrgPrice       float64  `json:"orgPrice"`
	EbayTitle      string   `json:"ebayTitle"`
	EbayCategory   string   `json:"ebayCategory"`
	ShippingYen    float64  `json:"shippingYen"`
	IsListed       bool     `json:"isListed"`
	IsOrgLive      bool     `json:"isOrgLive"`
	IsImageChanged bool     `json:"isImageChanged"`
	IsDraft        bool     `json:"isDraft"`
	DraftReason    string   `json:"draftReason,omitempty"`
	ImageUrls      []string `json:"imageUrls"`
	CreatedAt      string   `json:"createdAt"`
}

// ItemListResponse 商品列表响应
type ItemListResponse struct {
	Code     int        `json:"code"`
	Message  string     `json:"message"`
	Data     []ItemResp `json:"data"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}

// ScanTriggerResponse 手动触发扫描的响应
type ScanTriggerResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// ScanRunResp 单轮巡检记录视图
type ScanRunResp struct {
	RunID      string `json:"runId"`
	Status     string `json:"status"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// ScanHistoryResponse 巡检历史响应
type ScanHistoryResponse struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    []ScanRunResp `json:"data"`
}
