package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
)

// ==================== 依赖接口 ====================

// StockAcquirer 来源快照采集
type StockAcquirer interface {
	Scrape(ctx context.Context, platform, url string) (*dto.ScrapeResult, error)
}

// ListingPublisher 市场侧上下架
type ListingPublisher interface {
	ListItem(ctx context.Context, item *model.Item, user *model.User, params *model.AppParams) (string, error)
	WithdrawItem(ctx context.Context, item *model.Item, user *model.User, params *model.AppParams) error
}

// ==================== 服务 ====================

// 一次扫描分页拉取的条数
const scanBatchSize = 100

// InventoryService 库存巡检：逐条判定删除 / 补采 / 上架 / 下架并落库
type InventoryService struct {
	itemRepo    repository.ItemRepository
	userRepo    repository.UserRepository
	paramsRepo  repository.ParamsRepository
	scraper     StockAcquirer
	publisher   ListingPublisher
	eligibility *EligibilityService
}

// NewInventoryService 创建巡检服务
func NewInventoryService(
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	paramsRepo repository.ParamsRepository,
	scraper StockAcquirer,
	publisher ListingPublisher,
	eligibility *EligibilityService,
) *InventoryService {
	return &InventoryService{
		itemRepo:    itemRepo,
		userRepo:    userRepo,
		paramsRepo:  paramsRepo,
		scraper:     scraper,
		publisher:   publisher,
		eligibility: eligibility,
	}
}

// ScanReport 一轮巡检的结果统计
type ScanReport struct {
	Processed int
	Failed    int
}

// ScanAll 全量巡检
// 单条失败只记日志不中断，保证一轮扫描能走完全部库存
func (s *InventoryService) ScanAll(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{}

	params, err := s.paramsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load params: %v", err)
	}
	if !params.ScanEnabled {
		log.Println("[Inventory] Scan disabled, skipping")
		return report, nil
	}

	// 同一轮扫描内用户信息只查一次
	users := make(map[string]*model.User)

	afterID := ""
	for {
		items, err := s.itemRepo.ScanBatch(ctx, afterID, scanBatchSize)
		if err != nil {
			return report, fmt.Errorf("scan batch after %q: %v", afterID, err)
		}
		if len(items) == 0 {
			break
		}
		afterID = items[len(items)-1].ID

		for i := range items {
			item := &items[i]
			if !model.IsItemID(item.ID) {
				continue
			}

			user, ok := users[item.Username]
			if !ok {
				user, err = s.userRepo.GetByUsername(ctx, item.Username)
				if err != nil {
					log.Printf("[Inventory] Load user %s failed: %v", item.Username, err)
					report.Failed++
					continue
				}
				users[item.Username] = user
			}

			if err := s.ProcessItem(ctx, item, user, params); err != nil {
				log.Printf("[Inventory] Process %s failed: %v", item.ID, err)
				report.Failed++
				continue
			}
			report.Processed++
		}
	}

	log.Printf("[Inventory] Scan finished: %d processed, %d failed", report.Processed, report.Failed)
	return report, nil
}

// ProcessItem 处理单个商品
// 先深拷贝再修改，任一环节失败时不污染调用方持有的对象
func (s *InventoryService) ProcessItem(ctx context.Context, item *model.Item, user *model.User, params *model.AppParams) error {
	now := time.Now()
	clone := item.Clone()

	// 1. 超期未上架的商品直接清理
	if s.eligibility.ShouldDelete(clone, now) {
		log.Printf("[Inventory] Delete item: %s", clone.ID)
		return s.itemRepo.HardDelete(ctx, clone.ID)
	}

	// 2. 草稿等待人工处理，扫描不自动上架
	if clone.IsDraft {
		return nil
	}

	// 3. 补采来源快照，刷新在售状态与价格
	if s.eligibility.ShouldScrape(clone) {
		log.Printf("[Inventory] Scrape item: %s", clone.ID)
		result, err := s.scraper.Scrape(ctx, clone.OrgPlatform, clone.OrgURL)
		if err != nil {
			return fmt.Errorf("scrape: %v", err)
		}
		if result == nil {
			return fmt.Errorf("scrape: empty result")
		}

		clone.IsOrgLive = result.InStock()
		if result.InStock() {
			stock := result.StockData
			// 换图说明卖家可能换了货，上架内容不再可信
			clone.IsImageChanged = clone.IsImageChanged ||
				!sameImageUrls(clone.OrgImageUrls, stock.Core.ImageUrls)
			clone.OrgImageUrls = datatypes.JSONSlice[string](stock.Core.ImageUrls)
			clone.OrgPrice = stock.Core.Price
			clone.OrgExtra = datatypes.NewJSONType(stock.Extra)
		}
	}

	// 4. 按当前快照决定上架还是下架
	if s.eligibility.ShouldList(clone, user) {
		log.Printf("[Inventory] List item: %s", clone.ID)
		if _, err := s.publisher.ListItem(ctx, clone, user, params); err != nil {
			return fmt.Errorf("list: %v", err)
		}
		clone.IsListed = true
		clone.NextRecheckAt = nil
	} else if clone.IsListed || s.eligibility.RecheckDue(clone, now) {
		log.Printf("[Inventory] Unlist item: %s", clone.ID)
		if err := s.publisher.WithdrawItem(ctx, clone, user, params); err != nil {
			return fmt.Errorf("unlist: %v", err)
		}
		clone.IsListed = false
		recheckAt := now.AddDate(0, 0, params.RecheckIntervalDays)
		clone.NextRecheckAt = &recheckAt
	}

	// 5. 无论走到哪个分支，本轮得到的属性都要落库
	if err := s.itemRepo.Update(ctx, clone); err != nil {
		return fmt.Errorf("persist: %v", err)
	}
	return nil
}

func sameImageUrls(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
