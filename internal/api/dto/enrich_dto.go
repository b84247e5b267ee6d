package dto

// ==================== AI 生成结果 ====================
// json 标签沿用模型侧约定的 snake_case 字段名，结构化输出按此 schema 约束

// RiskChecklist 风险清单，任一命中则商品进草稿
type RiskChecklist struct {
	ViolatesEbayPolicies     bool   `json:"violates_ebay_policies"`
	IsScam                   bool   `json:"is_scam"`
	TakesMoreThanAWeekToShip bool   `json:"takes_more_than_a_week_to_ship"`
	ResultExplanation        string `json:"result_explanation"`
}

// Flagged 是否命中任一风险项
func (c *RiskChecklist) Flagged() bool {
	return c.ViolatesEbayPolicies || c.IsScam || c.TakesMoreThanAWeekToShip
}

// BoxDimensions 包装箱尺寸（厘米）
type BoxDimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PackageEstimate 发货重量（克）与包装箱尺寸估算
type PackageEstimate struct {
	Weight        float64       `json:"weight"`
	BoxDimensions BoxDimensions `json:"box_dimensions"`
}

// ResellingInfo 面向 eBay 的上架文案
type ResellingInfo struct {
	ListingTitle         string                 `json:"listing_title_for_ebay_listing"`
	ConditionDescription string                 `json:"item_condition_description_for_ebay_listing"`
	ItemSpecifics        map[string]interface{} `json:"item_specifics_for_ebay_listing"`
	PromotionalText      string                 `json:"promotional_text_for_ebay_listing"`
}

// EnrichedContent 一次生成任务的完整产出
type EnrichedContent struct {
	RiskChecklist RiskChecklist   `json:"risk_checklist"`
	Package       PackageEstimate `json:"shipping_weight_and_box_dimensions"`
	Reselling     ResellingInfo   `json:"reselling_information"`
}
