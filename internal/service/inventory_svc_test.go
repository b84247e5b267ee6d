package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	if err := db.AutoMigrate(&model.Item{}, &model.User{}, &model.AppParams{}); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// fakeAcquirer 返回预设快照
type fakeAcquirer struct {
	result *dto.ScrapeResult
	err    error
	calls  int
}

func (f *fakeAcquirer) Scrape(_ context.Context, _, _ string) (*dto.ScrapeResult, error) {
	f.calls++
	return f.result, f.err
}

// fakePublisher 记录上下架调用
type fakePublisher struct {
	listed    []string
	withdrawn []string
	listErr   error
}

func (f *fakePublisher) ListItem(_ context.Context, item *model.Item, _ *model.User, _ *model.AppParams) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	f.listed = append(f.listed, item.ID)
	return "listing-1", nil
}

func (f *fakePublisher) WithdrawItem(_ context.Context, item *model.Item, _ *model.User, _ *model.AppParams) error {
	f.withdrawn = append(f.withdrawn, item.ID)
	return nil
}

type inventoryFixture struct {
	svc       *InventoryService
	itemRepo  repository.ItemRepository
	userRepo  repository.UserRepository
	acquirer  *fakeAcquirer
	publisher *fakePublisher
	user      *model.User
	params    *model.AppParams
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	t.Helper()
	db := setupInventoryTestDB(t)

	itemRepo := repository.NewItemRepository(db)
	userRepo := repository.NewUserRepository(db)
	paramsRepo := repository.NewParamsRepository(db)

	user := eligibleUser()
	if err := userRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}

	acquirer := &fakeAcquirer{}
	publisher := &fakePublisher{}
	svc := NewInventoryService(itemRepo, userRepo, paramsRepo, acquirer, publisher, NewEligibilityService())

	params, err := paramsRepo.Get(context.Background())
	if err != nil {
		t.Fatalf("读取参数失败: %v", err)
	}

	return &inventoryFixture{
		svc:       svc,
		itemRepo:  itemRepo,
		userRepo:  userRepo,
		acquirer:  acquirer,
		publisher: publisher,
		user:      user,
		params:    params,
	}
}

func inStockResult(imageUrls []string, price float64) *dto.ScrapeResult {
	return &dto.ScrapeResult{
		StockStatus: model.StockStatusInStock,
		StockData: &dto.StockData{
			Core: dto.StockCore{
				Title:       "title",
				Description: "description",
				Price:       price,
				ImageUrls:   imageUrls,
			},
			Extra: model.StockExtra{
				ShippedFrom:    "東京都",
				ShippedWithin:  "1~2日で発送",
				ShippingMethod: "らくらくメルカリ便",
				SellerID:       "/user/profile/1",
			},
		},
	}
}

// ==================== 单元测试 ====================

func TestInventoryService_ProcessItem_DeletesExpired(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = false
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}
	// 创建时间回拨到半年以前
	f.itemRepo.UpdateFields(context.Background(), item.ID,
		map[string]interface{}{"created_at": time.Now().AddDate(0, 0, -200)})
	item.CreatedAt = time.Now().AddDate(0, 0, -200)

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	if _, err := f.itemRepo.GetByID(context.Background(), item.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("超期商品应被删除, err = %v", err)
	}
}

func TestInventoryService_ProcessItem_ScrapeMergesSnapshot(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = true
	item.OrgImageUrls = datatypes.JSONSlice[string]{"https://img/old.jpg"}
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	// 图片没变，只是降价
	f.acquirer.result = inStockResult([]string{"https://img/old.jpg"}, 4500)

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	saved, err := f.itemRepo.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("读取商品失败: %v", err)
	}
	if saved.OrgPrice != 4500 {
		t.Errorf("orgPrice = %v, want 4500", saved.OrgPrice)
	}
	if saved.IsImageChanged {
		t.Error("图片未变不应标记 isImageChanged")
	}
	if !saved.IsListed {
		t.Error("快照正常的商品应保持在架")
	}
	if len(f.publisher.listed) != 1 {
		t.Errorf("list calls = %d, want 1", len(f.publisher.listed))
	}
	// 入参对象不应被巡检修改
	if item.OrgPrice != 5000 {
		t.Errorf("原对象 orgPrice = %v, 不应被修改", item.OrgPrice)
	}
}

func TestInventoryService_ProcessItem_ImageChangedUnlists(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = true
	item.OrgImageUrls = datatypes.JSONSlice[string]{"https://img/old.jpg"}
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	f.acquirer.result = inStockResult([]string{"https://img/new.jpg"}, 5000)

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	saved, _ := f.itemRepo.GetByID(context.Background(), item.ID)
	if !saved.IsImageChanged {
		t.Error("换图应标记 isImageChanged")
	}
	if saved.IsListed {
		t.Error("换图商品应被下架")
	}
	if len(f.publisher.withdrawn) != 1 {
		t.Errorf("withdraw calls = %d, want 1", len(f.publisher.withdrawn))
	}
	if saved.NextRecheckAt == nil {
		t.Error("下架后应排定复核时刻")
	}
}

func TestInventoryService_ProcessItem_OutOfStockUnlists(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = true
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	f.acquirer.result = &dto.ScrapeResult{StockStatus: model.StockStatusOutOfStock}

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	saved, _ := f.itemRepo.GetByID(context.Background(), item.ID)
	if saved.IsOrgLive {
		t.Error("来源售罄应标记 isOrgLive=false")
	}
	if saved.IsListed {
		t.Error("来源售罄应下架")
	}
}

func TestInventoryService_ProcessItem_SkipsDraft(t *testing.T) {
	f := newInventoryFixture(t)

	// 草稿保留完整的来源快照，但上架内容尚未生成
	item := eligibleItem()
	item.MarkDraft("risk checklist flagged: counterfeit suspicion")
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	if len(f.publisher.listed) != 0 {
		t.Errorf("草稿不应被自动上架, list calls = %d", len(f.publisher.listed))
	}
	if f.acquirer.calls != 0 {
		t.Error("草稿不应触发补采")
	}

	saved, err := f.itemRepo.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("读取商品失败: %v", err)
	}
	if !saved.IsDraft || saved.IsListed {
		t.Errorf("草稿状态应保持不变, isDraft = %v, isListed = %v", saved.IsDraft, saved.IsListed)
	}
}

func TestInventoryService_ProcessItem_EmptyScrapeResult(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = true
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	// 采集器无错误但也没有快照
	f.acquirer.result = nil

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err == nil {
		t.Fatal("空快照应返回错误")
	}

	// 出错时不应落库任何变更
	saved, _ := f.itemRepo.GetByID(context.Background(), item.ID)
	if !saved.IsListed {
		t.Error("采集异常不应改动在架状态")
	}
}

func TestInventoryService_ProcessItem_RecheckNotDueSkipsWithdraw(t *testing.T) {
	f := newInventoryFixture(t)

	item := eligibleItem()
	item.IsListed = false
	item.IsOrgLive = false // 不满足上架条件
	future := time.Now().AddDate(0, 0, 5)
	item.NextRecheckAt = &future
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	if err := f.svc.ProcessItem(context.Background(), item, f.user, f.params); err != nil {
		t.Fatalf("ProcessItem() error = %v", err)
	}

	if len(f.publisher.withdrawn) != 0 {
		t.Errorf("复核未到期不应重复下架, withdraw calls = %d", len(f.publisher.withdrawn))
	}
}

func TestInventoryService_ScanAll(t *testing.T) {
	f := newInventoryFixture(t)

	listed := eligibleItem()
	listed.IsListed = true
	listed.OrgImageUrls = datatypes.JSONSlice[string]{"https://img/1.jpg"}
	if err := f.itemRepo.Create(context.Background(), listed); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	f.acquirer.result = inStockResult([]string{"https://img/1.jpg"}, 5000)

	report, err := f.svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want 1 processed / 0 failed", report)
	}

	if f.acquirer.calls != 1 {
		t.Errorf("scrape calls = %d, want 1", f.acquirer.calls)
	}
	if len(f.publisher.listed) != 1 {
		t.Errorf("list calls = %d, want 1", len(f.publisher.listed))
	}
}

func TestInventoryService_ScanAll_WithdrawsBlacklistedSeller(t *testing.T) {
	f := newInventoryFixture(t)

	// 商品上架之后卖家才进黑名单
	f.user.SellerBlacklist = datatypes.JSONSlice[string]{"/user/profile/1"}
	if err := f.userRepo.Update(context.Background(), f.user); err != nil {
		t.Fatalf("更新用户失败: %v", err)
	}

	item := eligibleItem()
	item.IsListed = true
	item.OrgImageUrls = datatypes.JSONSlice[string]{"https://img/1.jpg"}
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	f.acquirer.result = inStockResult([]string{"https://img/1.jpg"}, 5000)

	report, err := f.svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Errorf("report = %+v, want 1 processed / 0 failed", report)
	}

	if len(f.publisher.withdrawn) != 1 {
		t.Fatalf("withdraw calls = %d, want 1", len(f.publisher.withdrawn))
	}
	saved, _ := f.itemRepo.GetByID(context.Background(), item.ID)
	if saved.IsListed {
		t.Error("黑名单卖家的商品应被下架")
	}
	if saved.NextRecheckAt == nil {
		t.Error("下架后应排定复核时刻")
	}
}

func TestInventoryService_ScanAll_Disabled(t *testing.T) {
	f := newInventoryFixture(t)

	f.params.ScanEnabled = false
	if err := f.svc.paramsRepo.Save(context.Background(), f.params); err != nil {
		t.Fatalf("保存参数失败: %v", err)
	}

	item := eligibleItem()
	item.IsListed = true
	if err := f.itemRepo.Create(context.Background(), item); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	if _, err := f.svc.ScanAll(context.Background()); err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if f.acquirer.calls != 0 {
		t.Error("扫描关闭时不应触发采集")
	}
}

func TestInventoryService_ScanAll_ContinuesOnItemError(t *testing.T) {
	f := newInventoryFixture(t)

	bad := eligibleItem()
	bad.IsListed = true
	if err := f.itemRepo.Create(context.Background(), bad); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	good := eligibleItem()
	good.ID = model.ItemID("alice", "m999")
	good.EbaySku = "m999"
	good.IsListed = false
	if err := f.itemRepo.Create(context.Background(), good); err != nil {
		t.Fatalf("创建商品失败: %v", err)
	}

	// 采集失败会让 bad 出错，good 不需要采集仍应被处理
	f.acquirer.err = errors.New("boom")
	f.publisher.listErr = nil

	report, err := f.svc.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	if report.Processed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want 1 processed / 1 failed", report)
	}

	// good 满足上架条件，应被上架
	if len(f.publisher.listed) != 1 {
		t.Errorf("list calls = %d, want 1", len(f.publisher.listed))
	}
}
