package dto

// ==================== eBay 分类词库 ====================
// 字段对应 eBay Taxonomy API 的 getItemAspectsForCategory 返回结构

// AspectValue 属性候选值
type AspectValue struct {
	LocalizedValue string `json:"localizedValue"`
}

// AspectConstraint 属性约束
type AspectConstraint struct {
	AspectDataType          string `json:"aspectDataType"`          // STRING / NUMBER / DATE
	ItemToAspectCardinality string `json:"itemToAspectCardinality"` // SINGLE / MULTI
	AspectMode              string `json:"aspectMode"`              // FREE_TEXT / SELECTION_ONLY
	AspectRequired          bool   `json:"aspectRequired"`
}

// Aspect 分类下的一个 Item Specifics 属性
type Aspect struct {
	LocalizedAspectName string           `json:"localizedAspectName"`
	AspectConstraint    AspectConstraint `json:"aspectConstraint"`
	AspectValues        []AspectValue    `json:"aspectValues,omitempty"`
}

// ItemCondition 分类支持的成色选项
type ItemCondition struct {
	ConditionID          string `json:"conditionId"`
	ConditionDescription string `json:"conditionDescription"`
}
