package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
)

// ==================== 配置 ====================

// EbayConfig eBay API 配置
// BaseURL 覆盖项仅测试使用，留空按沙箱开关选择官方端点
type EbayConfig struct {
	APIBaseURL      string
	IdentityBaseURL string
	Timeout         time.Duration
}

// 访问令牌提前量：过期前 10 分钟视为过期，避免请求途中失效
const tokenExpirySkew = 10 * time.Minute

// ==================== 服务 ====================

// EbayService eBay Inventory API 客户端：铸token、建库存、开/撤 offer
type EbayService struct {
	Config   *EbayConfig
	userRepo repository.UserRepository
	client   *resty.Client
	group    singleflight.Group // 同一用户的并发刷新合并为一次
}

// NewEbayService 创建 eBay 服务
func NewEbayService(cfg *EbayConfig, userRepo repository.UserRepository) *EbayService {
	if cfg == nil {
		cfg = &EbayConfig{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7500 * time.Millisecond
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Arbitrage-Go-App/1.0")

	return &EbayService{
		Config:   cfg,
		userRepo: userRepo,
		client:   client,
	}
}

func (s *EbayService) apiBase(params *model.AppParams) string {
	if s.Config.APIBaseURL != "" {
		return s.Config.APIBaseURL
	}
	if params.EbayIsSandbox {
		return "https://api.sandbox.ebay.com"
	}
	return "https://api.ebay.com"
}

func (s *EbayService) identityBase(params *model.AppParams) string {
	if s.Config.IdentityBaseURL != "" {
		return s.Config.IdentityBaseURL
	}
	if params.EbayIsSandbox {
		return "https://api.sandbox.ebay.com"
	}
	return "https://api.ebay.com"
}

// ==================== 令牌管理 ====================

// GetAccessToken 返回可用的访问令牌，必要时用 refresh token 换新并落库
func (s *EbayService) GetAccessToken(ctx context.Context, user *model.User, params *model.AppParams) (string, error) {
	if !user.TokenExpiringSoon(time.Now(), tokenExpirySkew) {
		return user.EbayAccessToken, nil
	}

	token, err, _ := s.group.Do(user.Username, func() (interface{}, error) {
		accessToken, expiresIn, err := s.mintAccessToken(ctx, user.EbayRefreshToken, params)
		if err != nil {
			return nil, err
		}
		expiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
		user.EbayAccessToken = accessToken
		user.EbayTokenExpiresAt = expiresAt
		if err := s.userRepo.UpdateToken(ctx, user.Username, accessToken, expiresAt); err != nil {
			// 落库失败只影响下次进程重启后的冷启动，令牌本身可用
			log.Printf("[Ebay] 令牌落库失败 user=%s: %v", user.Username, err)
		}
		return accessToken, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (s *EbayService) mintAccessToken(ctx context.Context, refreshToken string, params *model.AppParams) (string, int, error) {
	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(params.EbayClientID, params.EbayClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(fmt.Sprintf("grant_type=refresh_token&refresh_token=%s", refreshToken)).
		SetResult(&result).
		Post(s.identityBase(params) + "/identity/v1/oauth2/token")
	if err != nil {
		return "", 0, fmt.Errorf("铸token请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", 0, &RemoteError{Op: "ebay.mintAccessToken", Status: resp.StatusCode(), Body: resp.String()}
	}
	if result.ExpiresIn == 0 {
		result.ExpiresIn = 7200
	}
	return result.AccessToken, result.ExpiresIn, nil
}

// ==================== Inventory API ====================

// OfferLookup offer 查询结果
type OfferLookup struct {
	Exist   bool
	OfferID string
}

// CreateOrReplaceInventoryItem 建立或覆盖库存记录
func (s *EbayService) CreateOrReplaceInventoryItem(ctx context.Context, token, sku string, payload map[string]interface{}, params *model.AppParams) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Language", "en-US").
		SetBody(payload).
		Put(fmt.Sprintf("%s/sell/inventory/v1/inventory_item/%s", s.apiBase(params), sku))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case 200, 201, 204:
		return nil
	}
	return &RemoteError{Op: "ebay.createOrReplaceInventoryItem", Status: resp.StatusCode(), Body: resp.String()}
}

// DeleteInventoryItem 删除库存记录，记录不存在返回 false
func (s *EbayService) DeleteInventoryItem(ctx context.Context, token, sku string, params *model.AppParams) (bool, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete(fmt.Sprintf("%s/sell/inventory/v1/inventory_item/%s", s.apiBase(params), sku))
	if err != nil {
		return false, err
	}
	if resp.StatusCode() == 204 {
		return true, nil
	}
	if resp.StatusCode() == 404 && firstErrorID(resp.Body()) == 25710 {
		return false, nil
	}
	return false, &RemoteError{Op: "ebay.deleteInventoryItem", Status: resp.StatusCode(), Body: resp.String()}
}

// GetOffers 按 SKU 查询 offer，查不到（errorId 25713）不算错误
func (s *EbayService) GetOffers(ctx context.Context, token, sku string, params *model.AppParams) (*OfferLookup, error) {
	var result struct {
		Total  int `json:"total"`
		Offers []struct {
			OfferID string `json:"offerId"`
		} `json:"offers"`
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("sku", sku).
		SetResult(&result).
		Get(s.apiBase(params) + "/sell/inventory/v1/offer")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 200 && result.Total == 1 {
		return &OfferLookup{Exist: true, OfferID: result.Offers[0].OfferID}, nil
	}
	if resp.StatusCode() == 404 && firstErrorID(resp.Body()) == 25713 {
		return &OfferLookup{Exist: false}, nil
	}
	return nil, &RemoteError{Op: "ebay.getOffers", Status: resp.StatusCode(), Body: resp.String()}
}

// CreateOffer 创建 offer，返回 offerId
func (s *EbayService) CreateOffer(ctx context.Context, token string, payload map[string]interface{}, params *model.AppParams) (string, error) {
	var result struct {
		OfferID string `json:"offerId"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Language", "en-US").
		SetBody(payload).
		SetResult(&result).
		Post(s.apiBase(params) + "/sell/inventory/v1/offer")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 201 {
		return "", &RemoteError{Op: "ebay.createOffer", Status: resp.StatusCode(), Body: resp.String()}
	}
	return result.OfferID, nil
}

// UpdateOffer 覆盖已有 offer
func (s *EbayService) UpdateOffer(ctx context.Context, token, offerID string, payload map[string]interface{}, params *model.AppParams) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Language", "en-US").
		SetBody(payload).
		Put(fmt.Sprintf("%s/sell/inventory/v1/offer/%s", s.apiBase(params), offerID))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case 200, 204:
		return nil
	}
	return &RemoteError{Op: "ebay.updateOffer", Status: resp.StatusCode(), Body: resp.String()}
}

// PublishOffer 发布 offer，返回 listingId
func (s *EbayService) PublishOffer(ctx context.Context, token, offerID string, params *model.AppParams) (string, error) {
	var result struct {
		ListingID string `json:"listingId"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&result).
		Post(fmt.Sprintf("%s/sell/inventory/v1/offer/%s/publish", s.apiBase(params), offerID))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", &RemoteError{Op: "ebay.publishOffer", Status: resp.StatusCode(), Body: resp.String()}
	}
	return result.ListingID, nil
}

// WithdrawOffer 撤下 offer
func (s *EbayService) WithdrawOffer(ctx context.Context, token, offerID string, params *model.AppParams) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Post(fmt.Sprintf("%s/sell/inventory/v1/offer/%s/withdraw", s.apiBase(params), offerID))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case 200, 204:
		return nil
	}
	return &RemoteError{Op: "ebay.withdrawOffer", Status: resp.StatusCode(), Body: resp.String()}
}

// ==================== 业务流程 ====================

// ListItem 上架：同步库存 → 建/更 offer → 发布
// 价格按当前来源价与汇率实时计算，上架内容用注册阶段生成的 ebay* 字段
func (s *EbayService) ListItem(ctx context.Context, item *model.Item, user *model.User, params *model.AppParams) (string, error) {
	token, err := s.GetAccessToken(ctx, user, params)
	if err != nil {
		return "", err
	}

	inventoryPayload := map[string]interface{}{
		"availability": map[string]interface{}{
			"shipToLocationAvailability": map[string]interface{}{
				"quantity": 1,
			},
		},
		"condition": item.EbayCondition,
		"product": map[string]interface{}{
			"title":       item.EbayTitle,
			"description": item.EbayDescription,
			"imageUrls":   []string(item.EbayImageUrls),
			"aspects":     item.EbayAspectParam.Data(),
		},
	}

	price := DisplayPrice(item.OrgPrice, item.ShippingYen, params.UsdJpy, user.ProfitRatio)
	offerPayload := map[string]interface{}{
		"sku":               item.EbaySku,
		"marketplaceId":     "EBAY_US",
		"format":            "FIXED_PRICE",
		"availableQuantity": 1,
		"categoryId":        item.EbayCategory,
		"listingPolicies": map[string]interface{}{
			"fulfillmentPolicyId": user.FulfillmentPolicyID,
			"paymentPolicyId":     user.PaymentPolicyID,
			"returnPolicyId":      user.ReturnPolicyID,
		},
		"pricingSummary": map[string]interface{}{
			"price": map[string]interface{}{
				"currency": "USD",
				"value":    fmt.Sprintf("%.2f", price),
			},
		},
		"merchantLocationKey": user.MerchantLocationKey,
		"storeCategoryNames":  []string{storeCategoryName(item)},
	}

	if err := s.CreateOrReplaceInventoryItem(ctx, token, item.EbaySku, inventoryPayload, params); err != nil {
		return "", err
	}

	offer, err := s.GetOffers(ctx, token, item.EbaySku, params)
	if err != nil {
		return "", err
	}

	var offerID string
	if offer.Exist {
		offerID = offer.OfferID
		if err := s.UpdateOffer(ctx, token, offerID, offerPayload, params); err != nil {
			return "", err
		}
	} else {
		offerID, err = s.CreateOffer(ctx, token, offerPayload, params)
		if err != nil {
			return "", err
		}
	}

	return s.PublishOffer(ctx, token, offerID, params)
}

// WithdrawItem 下架：查 offer 后撤下，offer 不存在视为已下架
func (s *EbayService) WithdrawItem(ctx context.Context, item *model.Item, user *model.User, params *model.AppParams) error {
	token, err := s.GetAccessToken(ctx, user, params)
	if err != nil {
		return err
	}

	offer, err := s.GetOffers(ctx, token, item.EbaySku, params)
	if err != nil {
		return err
	}
	if !offer.Exist {
		return nil
	}
	return s.WithdrawOffer(ctx, token, offer.OfferID, params)
}

// ==================== 工具函数 ====================

// storeCategoryName 店铺分类路径转成 eBay 要求的 /A/B 格式
func storeCategoryName(item *model.Item) string {
	return "/" + strings.Join(item.EbayStoreCategorySrc, "/")
}

// firstErrorID 解析 eBay 错误响应中的第一个 errorId
func firstErrorID(body []byte) int {
	var payload struct {
		Errors []struct {
			ErrorID int `json:"errorId"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return 0
	}
	return payload.Errors[0].ErrorID
}
