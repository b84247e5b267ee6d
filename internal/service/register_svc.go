package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
)

// ==================== 依赖接口 ====================

// ContentEnricher AI 上架内容生成
type ContentEnricher interface {
	Enrich(ctx context.Context, imageUrls []string, title, description string, aspects []dto.Aspect) (*dto.EnrichedContent, error)
}

// ==================== 服务 ====================

// 注册流水线整体超时
const pipelineTimeout = 10 * time.Minute

// 来源成色为全新时不做转售，新品在日本国内买更划算
const brandNewCondition = "新品、未使用"

// 描述里出现这些措辞的商品不适合代购转售
var forbiddenKeywords = []string{
	"即購入禁止",
	"即購入不可",
	"コメント必須",
	"海外製",
	"海外から発送",
	"海外からの発送",
}

// RegisterService 商品注册：同步校验 + 异步流水线（采集→过滤→生成→组装→发布）
type RegisterService struct {
	itemRepo    repository.ItemRepository
	userRepo    repository.UserRepository
	paramsRepo  repository.ParamsRepository
	scraper     StockAcquirer
	enricher    ContentEnricher
	composer    *ComposerService
	taxonomy    *TaxonomyService
	publisher   ListingPublisher
	eligibility *EligibilityService

	wg sync.WaitGroup
}

// NewRegisterService 创建注册服务
func NewRegisterService(
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	paramsRepo repository.ParamsRepository,
	scraper StockAcquirer,
	enricher ContentEnricher,
	composer *ComposerService,
	taxonomy *TaxonomyService,
	publisher ListingPublisher,
	eligibility *EligibilityService,
) *RegisterService {
	return &RegisterService{
		itemRepo:    itemRepo,
		userRepo:    userRepo,
		paramsRepo:  paramsRepo,
		scraper:     scraper,
		enricher:    enricher,
		composer:    composer,
		taxonomy:    taxonomy,
		publisher:   publisher,
		eligibility: eligibility,
	}
}

// ParseSourceURL 识别来源链接，返回平台标识和商品 SKU
func ParseSourceURL(sourceURL string) (platform, sku string, err error) {
	u, parseErr := url.Parse(sourceURL)
	if parseErr != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedURL, parseErr)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch {
	case host == "jp.mercari.com" && len(segments) == 2 && segments[0] == "item":
		return model.PlatformMercari, segments[1], nil
	case host == "jp.mercari.com" && len(segments) == 3 && segments[0] == "shops" && segments[1] == "product":
		return model.PlatformMercariShop, segments[2], nil
	case host == "mercari-shops.com" && len(segments) == 2 && segments[0] == "products":
		return model.PlatformMercariShop, segments[1], nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, sourceURL)
}

// Register 注册商品
// 链接、配额、重复注册的校验同步完成，其余环节异步执行
func (s *RegisterService) Register(ctx context.Context, username, sourceURL string) (*model.Item, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %v", username, err)
	}

	platform, sku, err := ParseSourceURL(sourceURL)
	if err != nil {
		return nil, err
	}

	// 配额在做任何重活之前检查
	if user.MaxListedCount > 0 {
		listed, err := s.itemRepo.CountListed(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("count listed: %v", err)
		}
		if listed >= int64(user.MaxListedCount) {
			return nil, ErrMaxListedCountReached
		}
	}

	id := model.ItemID(username, sku)
	if _, err := s.itemRepo.GetByID(ctx, id); err == nil {
		return nil, ErrItemExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing: %v", err)
	}

	item := &model.Item{
		ID:          id,
		Username:    username,
		EbaySku:     sku,
		OrgPlatform: platform,
		OrgURL:      sourceURL,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %v", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pipelineCtx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
		defer cancel()
		s.runPipeline(pipelineCtx, item.Clone(), user)
	}()

	return item, nil
}

// Wait 等待所有在途流水线结束，进程退出前调用
func (s *RegisterService) Wait() {
	s.wg.Wait()
}

// runPipeline 注册流水线主体
// 任何一步失败都把商品转为草稿并记录原因，不静默丢弃
func (s *RegisterService) runPipeline(ctx context.Context, item *model.Item, user *model.User) {
	log.Printf("[Register] Pipeline started: %s", item.ID)

	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("load params: %v", err))
		return
	}

	// 1. 采集来源快照
	result, err := s.scraper.Scrape(ctx, item.OrgPlatform, item.OrgURL)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("scrape: %v", err))
		return
	}
	if !result.InStock() {
		s.saveDraft(ctx, item, "source item is sold out")
		return
	}

	stock := result.StockData
	item.OrgTitle = stock.Core.Title
	item.OrgDescription = stock.Core.Description
	item.OrgPrice = stock.Core.Price
	item.OrgImageUrls = datatypes.JSONSlice[string](stock.Core.ImageUrls)
	item.OrgExtra = datatypes.NewJSONType(stock.Extra)
	item.IsOrgLive = true
	item.IsImageChanged = false

	// 2. 注册期硬过滤
	if reason := s.rejectReason(item, user, &stock.Extra); reason != "" {
		s.saveDraft(ctx, item, reason)
		return
	}

	// 3. AI 生成上架内容，风险清单命中即拦截
	categorySrc := []string(params.DefaultCategorySrc)
	categoryID, err := s.taxonomy.LeafCategoryID(ctx, categorySrc)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("category: %v", err))
		return
	}
	aspects, err := s.taxonomy.Aspects(ctx, categoryID)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("aspects: %v", err))
		return
	}

	enriched, err := s.enricher.Enrich(ctx, item.OrgImageUrls, item.OrgTitle, item.OrgDescription, aspects)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("enrich: %v", err))
		return
	}
	if enriched.RiskChecklist.Flagged() {
		riskErr := &RiskError{Explanation: enriched.RiskChecklist.ResultExplanation}
		s.saveDraft(ctx, item, riskErr.Error())
		return
	}

	// 4. 组装上架内容
	draft, err := s.composer.Compose(ctx, item, params, enriched)
	if err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("compose: %v", err))
		return
	}
	applyListingDraft(item, draft)

	if err := s.itemRepo.Update(ctx, item); err != nil {
		log.Printf("[Register] Persist %s failed: %v", item.ID, err)
		return
	}

	// 5. 发布到 eBay，失败同样转草稿，原因落在商品上供人工处理
	if _, err := s.publisher.ListItem(ctx, item, user, params); err != nil {
		s.saveDraft(ctx, item, fmt.Sprintf("list: %v", err))
		return
	}
	item.IsListed = true
	if err := s.itemRepo.Update(ctx, item); err != nil {
		log.Printf("[Register] Persist %s failed: %v", item.ID, err)
		return
	}
	log.Printf("[Register] Pipeline finished: %s listed", item.ID)
}

// rejectReason 注册期过滤，返回空串表示放行
func (s *RegisterService) rejectReason(item *model.Item, user *model.User, extra *model.StockExtra) string {
	if extra.ItemCondition == brandNewCondition {
		return "brand-new items are not resold"
	}
	for _, keyword := range forbiddenKeywords {
		if strings.Contains(item.OrgDescription, keyword) {
			return fmt.Sprintf("forbidden keyword in description: %s", keyword)
		}
	}
	if !s.eligibility.ShouldList(item, user) {
		return "listing criteria not met"
	}
	return ""
}

// applyListingDraft 把组装产出落到商品字段上
func applyListingDraft(item *model.Item, draft *dto.ListingDraft) {
	item.EbayTitle = truncateTitle(draft.EbayTitle)
	item.EbayDescription = draft.EbayDescription
	item.EbayCategorySrc = datatypes.JSONSlice[string](draft.EbayCategorySrc)
	item.EbayCategory = draft.EbayCategory
	item.EbayStoreCategorySrc = datatypes.JSONSlice[string](draft.EbayStoreCategorySrc)
	item.EbayCondition = draft.EbayCondition
	item.EbayConditionDescription = draft.EbayConditionDescription
	item.EbayImageUrls = datatypes.JSONSlice[string](draft.EbayImageUrls)
	item.EbayAspectParam = datatypes.NewJSONType(draft.EbayAspectParam)
	item.ShippingYen = draft.ShippingYen
	item.WeightGram = draft.WeightGram
	item.BoxSizeCm = datatypes.JSONSlice[float64](draft.BoxSizeCm)
}

// truncateTitle eBay 标题上限 80 字符，超长时截断
func truncateTitle(title string) string {
	if len(title) <= 80 {
		return title
	}
	return title[:80]
}

// saveDraft 把商品转为草稿并落库
func (s *RegisterService) saveDraft(ctx context.Context, item *model.Item, reason string) {
	log.Printf("[Register] Draft %s: %s", item.ID, reason)
	item.MarkDraft(reason)
	if err := s.itemRepo.Update(ctx, item); err != nil {
		log.Printf("[Register] Persist draft %s failed: %v", item.ID, err)
	}
}
