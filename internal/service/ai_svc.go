package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/pkg/utils"
)

// ==================== 配置 ====================

// AIConfig AI 服务配置
type AIConfig struct {
	ApiKey  string
	Model   string
	BaseURL string // 测试时指向 httptest，留空走官方端点
}

// ==================== 服务 ====================

// AIService 上架内容生成：风险清单、包装估算、eBay 文案与 Item Specifics
type AIService struct {
	Config *AIConfig
	client *http.Client
}

// NewAIService 创建 AI 服务
func NewAIService(cfg *AIConfig) *AIService {
	if cfg.Model == "" {
		cfg.Model = "gemini-3-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	return &AIService{
		Config: cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// 传给模型的图片数量上限，图片过多费用高且收益有限
const maxPromptImages = 5

const enrichPrompt = `You are running a cross-border reselling business, purchasing items from Mercari Japan and selling them to international customers on eBay. The process involves listing items on eBay based on existing Mercari listings, and then purchasing and shipping the item after an eBay sale. Given the following information from a Mercari listing (images, title, and description), perform the following tasks to prepare the item for eBay listing:
1. Complete the risk checklist to determine whether the item is suitable for reselling.
2. Estimate the total shipping weight (in grams) and the dimensions of the packaging box (in centimeters). Be cautious and aim slightly higher to avoid underestimation.
3. Create the eBay listing content in English.

Title: %s

Description:
%s`

// Enrich 生成上架内容
// 图片、标题、描述来自来源快照，aspects 约束 Item Specifics 的取值
func (s *AIService) Enrich(ctx context.Context, imageUrls []string, title, description string, aspects []dto.Aspect) (*dto.EnrichedContent, error) {
	if s.Config.ApiKey == "" {
		return nil, fmt.Errorf("Gemini API Key 未配置")
	}

	parts := []map[string]interface{}{
		{"text": fmt.Sprintf(enrichPrompt, title, description)},
	}

	if len(imageUrls) > maxPromptImages {
		imageUrls = imageUrls[:maxPromptImages]
	}
	for _, imageURL := range imageUrls {
		data, mimeType, err := utils.DownloadImage(ctx, imageURL)
		if err != nil {
			// 单张图片失败不阻断生成
			continue
		}
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": mimeType,
				"data":      base64.StdEncoding.EncodeToString(data),
			},
		})
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   BuildEnrichSchema(aspects),
		},
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		s.Config.BaseURL, s.Config.Model, s.Config.ApiKey)

	bodyBytes, _ := json.Marshal(reqBody)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Op: "gemini.generateContent", Status: resp.StatusCode, Body: string(respBody)}
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("无生成结果")
	}

	var jsonText string
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				jsonText = part.Text
				break
			}
		}
	}

	var result dto.EnrichedContent
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("解析生成结果失败: %v, raw: %s", err, jsonText)
	}
	return &result, nil
}

// ==================== 结构化输出 Schema ====================

// 不交给模型填写的属性：物流相关由包装估算负责，产地固定为 Japan
var skippedAspects = map[string]bool{
	"MPN":                           true,
	"California Prop 65 Warning":    true,
	"Unit Type":                     true,
	"Unit Quantity":                 true,
	"Item Width":                    true,
	"Item Height":                   true,
	"Item Weight":                   true,
	"Item Length":                   true,
	"Country/Region of Manufacture": true,
}

// BuildEnrichSchema 构建结构化输出 schema，Item Specifics 部分按分类属性动态生成
func BuildEnrichSchema(aspects []dto.Aspect) map[string]interface{} {
	riskChecklistSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"violates_ebay_policies": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether the item may violate eBay's policies on prohibited and restricted items.",
			},
			"is_scam": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether the seller is intentionally attempting to scam buyers by displaying an item that is completely different from the description.",
			},
			"takes_more_than_a_week_to_ship": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether the seller explicitly states that it takes more than a week to ship.",
			},
			"result_explanation": map[string]interface{}{
				"type":        "string",
				"description": "Explanation of the checklist completion results.",
			},
		},
		"required": []string{
			"violates_ebay_policies", "is_scam",
			"takes_more_than_a_week_to_ship", "result_explanation",
		},
	}

	packageSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"weight": map[string]interface{}{"type": "number"},
			"box_dimensions": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"length": map[string]interface{}{"type": "number"},
					"width":  map[string]interface{}{"type": "number"},
					"height": map[string]interface{}{"type": "number"},
				},
				"required": []string{"length", "width", "height"},
			},
		},
		"required": []string{"weight", "box_dimensions"},
	}

	aspectProperties := BuildAspectSchema(aspects)
	aspectKeys := make([]string, 0, len(aspectProperties))
	for key := range aspectProperties {
		aspectKeys = append(aspectKeys, key)
	}

	resellingSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"listing_title_for_ebay_listing": map[string]interface{}{
				"type":        "string",
				"description": "A concise and descriptive title optimized for eBay's search engine (within 80 characters, including spaces).",
			},
			"item_condition_description_for_ebay_listing": map[string]interface{}{
				"type":        "string",
				"description": `Brief description of the item's current condition suitable for the eBay listing's "Condition Description" field.`,
			},
			"item_specifics_for_ebay_listing": map[string]interface{}{
				"type":        "object",
				"description": `"Item specifics" details suitable for the eBay listing.`,
				"properties":  aspectProperties,
				"required":    aspectKeys,
			},
			"promotional_text_for_ebay_listing": map[string]interface{}{
				"type":        "string",
				"description": "Promotional text for the item. It should be a short and concise description of the item's features and benefits.",
			},
		},
		"required": []string{
			"listing_title_for_ebay_listing",
			"item_condition_description_for_ebay_listing",
			"item_specifics_for_ebay_listing",
			"promotional_text_for_ebay_listing",
		},
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"risk_checklist":                     riskChecklistSchema,
			"shipping_weight_and_box_dimensions": packageSchema,
			"reselling_information":              resellingSchema,
		},
		"required": []string{
			"risk_checklist",
			"shipping_weight_and_box_dimensions",
			"reselling_information",
		},
	}
}

// BuildAspectSchema 把分类属性定义转成 schema 片段
// MULTI 属性生成数组，SELECTION_ONLY 属性限制取值，可选属性允许 null
func BuildAspectSchema(aspects []dto.Aspect) map[string]interface{} {
	properties := make(map[string]interface{}, len(aspects))

	for _, aspect := range aspects {
		if skippedAspects[aspect.LocalizedAspectName] {
			continue
		}

		constraint := aspect.AspectConstraint
		elemType := "string"
		if constraint.AspectDataType == "NUMBER" {
			elemType = "number"
		}

		prop := map[string]interface{}{
			"description": aspectDescription(aspect),
		}
		if constraint.ItemToAspectCardinality == "MULTI" {
			prop["type"] = "array"
			prop["items"] = map[string]interface{}{"type": elemType}
		} else {
			prop["type"] = elemType
		}
		if !constraint.AspectRequired {
			prop["nullable"] = true
		}
		if constraint.AspectMode == "SELECTION_ONLY" {
			values := make([]string, 0, len(aspect.AspectValues))
			for _, v := range aspect.AspectValues {
				values = append(values, v.LocalizedValue)
			}
			prop["enum"] = values
		}

		properties[aspect.LocalizedAspectName] = prop
	}
	return properties
}

// ==================== 工具函数 ====================

func aspectDescription(aspect dto.Aspect) string {
	var desc string
	if aspect.AspectConstraint.ItemToAspectCardinality == "SINGLE" {
		desc = fmt.Sprintf("A value for '%s'. ", aspect.LocalizedAspectName)
	} else {
		desc = fmt.Sprintf("Values for '%s'. ", aspect.LocalizedAspectName)
	}
	if aspect.AspectConstraint.AspectMode == "FREE_TEXT" && len(aspect.AspectValues) > 0 {
		samples := aspect.AspectValues
		if len(samples) > 20 {
			samples = samples[:20]
		}
		desc += "(ex. "
		for i, v := range samples {
			if i > 0 {
				desc += ", "
			}
			desc += v.LocalizedValue
		}
		desc += ")"
	}
	if !aspect.AspectConstraint.AspectRequired {
		desc += " Return null if not applicable."
	}
	return desc
}
