package service

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
)

// ==================== 上架内容组装 ====================

// eBay 平台抽成比例，定价时从利润中预留
const ebayFeeRatio = 0.17

// 成色的统一来源表述，新品在注册阶段已被过滤
const defaultConditionSrc = "Used"

// 固定的物流与关税说明，追加在每个商品描述末尾
const (
	shippingNote = "Tracking numbers are provided to all orders. The item will be carefully packed to ensure it arrives safely."
	customsNote  = "Import duties, taxes, and charges are not included in the item price or shipping cost. Buyers are responsible for these charges. These charges may be collected by the carrier when you receive the item."
)

// ComposerService 把 AI 产出和词库信息组装成可落库的上架内容
type ComposerService struct {
	taxonomy *TaxonomyService
	shipping *ShippingService
}

// NewComposerService 创建组装服务
func NewComposerService(taxonomy *TaxonomyService, shipping *ShippingService) *ComposerService {
	return &ComposerService{
		taxonomy: taxonomy,
		shipping: shipping,
	}
}

// Compose 组装上架内容
// 运费超限返回 ErrPackageTooLarge，分类/成色查不到原样上抛，调用方决定是否进草稿
func (s *ComposerService) Compose(ctx context.Context, item *model.Item, params *model.AppParams, enriched *dto.EnrichedContent) (*dto.ListingDraft, error) {
	pkg := enriched.Package
	shippingYen, err := s.shipping.Calc(
		pkg.BoxDimensions.Length,
		pkg.BoxDimensions.Width,
		pkg.BoxDimensions.Height,
		pkg.Weight,
		item.OrgPrice,
	)
	if err != nil {
		return nil, err
	}

	categorySrc := []string(item.EbayCategorySrc)
	if len(categorySrc) == 0 {
		categorySrc = params.DefaultCategorySrc
	}
	categoryID, err := s.taxonomy.LeafCategoryID(ctx, categorySrc)
	if err != nil {
		return nil, err
	}

	condition, err := s.taxonomy.EbayCondition(ctx, categoryID, defaultConditionSrc)
	if err != nil {
		return nil, err
	}

	storeCategorySrc := []string(item.EbayStoreCategorySrc)
	if len(storeCategorySrc) == 0 {
		storeCategorySrc = params.DefaultStoreCategorySrc
	}

	return &dto.ListingDraft{
		EbayTitle:                enriched.Reselling.ListingTitle,
		EbayDescription:          BuildDescription(enriched.Reselling.PromotionalText, enriched.Reselling.ConditionDescription),
		EbayCategorySrc:          categorySrc,
		EbayCategory:             categoryID,
		EbayStoreCategorySrc:     storeCategorySrc,
		EbayCondition:            condition,
		EbayConditionDescription: enriched.Reselling.ConditionDescription,
		EbayImageUrls:            append([]string{}, item.OrgImageUrls...),
		EbayAspectParam:          FilterAspectParams(enriched.Reselling.ItemSpecifics),
		ShippingYen:              shippingYen,
		WeightGram:               pkg.Weight,
		BoxSizeCm:                []float64{pkg.BoxDimensions.Length, pkg.BoxDimensions.Width, pkg.BoxDimensions.Height},
	}, nil
}

// BuildDescription 拼装描述 HTML，推广文案 + 成色 + 固定的物流/关税说明
func BuildDescription(promoText, conditionDescription string) string {
	return fmt.Sprintf(
		`<div style="color: rgb(51, 51, 51); font-family: Arial;"><p>%s</p>`+
			`<h3 style="margin-top: 1.6em;">Condition</h3><p>%s</p>`+
			`<h3 style="margin-top: 1.6em;">Shipping</h3><p>%s</p>`+
			`<h3 style="margin-top: 1.6em;">Customs and import charges</h3><p>%s</p></div>`,
		promoText, conditionDescription, shippingNote, customsNote,
	)
}

// FilterAspectParams 清洗 AI 生成的 Item Specifics
// 丢弃空值，统一转成字符串数组，并强制补上产地 Japan
func FilterAspectParams(specifics map[string]interface{}) map[string][]string {
	result := make(map[string][]string, len(specifics)+1)

	for key, value := range specifics {
		values := normalizeAspectValue(value)
		if len(values) > 0 {
			result[key] = values
		}
	}

	result["Country/Region of Manufacture"] = []string{"Japan"}
	return result
}

func normalizeAspectValue(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		return []string{strconv.FormatBool(v)}
	case []interface{}:
		values := make([]string, 0, len(v))
		for _, elem := range v {
			single := normalizeAspectValue(elem)
			if len(single) == 0 {
				// 数组中任一元素为空，整个属性作废
				return nil
			}
			values = append(values, single...)
		}
		return values
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// DisplayPrice 计算 eBay 展示价（美元，两位小数）
// 成本（来源价+运费）摊到扣除利润与平台抽成后的汇率上
func DisplayPrice(orgPriceYen, shippingYen, usdJpy, profitRatio float64) float64 {
	price := (orgPriceYen + shippingYen) / (usdJpy * (1 - profitRatio - ebayFeeRatio))
	return math.Round(price*100) / 100
}
