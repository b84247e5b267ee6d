package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/service"
)

type ItemController struct {
	registerService *service.RegisterService
	itemRepo        repository.ItemRepository
	userRepo        repository.UserRepository
	paramsRepo      repository.ParamsRepository
	publisher       service.ListingPublisher
}

func NewItemController(
	registerService *service.RegisterService,
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	paramsRepo repository.ParamsRepository,
	publisher service.ListingPublisher,
) *ItemController {
	return &ItemController{
		registerService: registerService,
		itemRepo:        itemRepo,
		userRepo:        userRepo,
		paramsRepo:      paramsRepo,
		publisher:       publisher,
	}
}

// ==================== 注册接口 ====================

// Register 注册商品，校验通过后流水线异步执行
func (ctrl *ItemController) Register(c *gin.Context) {
	var req dto.RegisterItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	item, err := ctrl.registerService.Register(c.Request.Context(), req.Username, req.SourceURL)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnsupportedURL):
		c.JSON(400, gin.H{"code": 400, "message": "无法识别的来源链接"})
		return
	case errors.Is(err, service.ErrItemExists):
		c.JSON(409, gin.H{"code": 409, "message": "商品已注册"})
		return
	case errors.Is(err, service.ErrMaxListedCountReached):
		c.JSON(409, gin.H{"code": 409, "message": "在架商品数量已达上限"})
		return
	default:
		c.JSON(500, gin.H{"code": 500, "message": "注册失败: " + err.Error()})
		return
	}

	c.JSON(202, dto.RegisterItemResponse{
		ItemID:   item.ID,
		EbaySku:  item.EbaySku,
		Platform: item.OrgPlatform,
		Status:   "accepted",
	})
}

// ==================== 查询接口 ====================

// GetItems 获取商品列表
func (ctrl *ItemController) GetItems(c *gin.Context) {
	var req dto.ItemListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	items, total, err := ctrl.itemRepo.List(c.Request.Context(), repository.ItemFilter{
		Username: req.Username,
		Platform: req.Platform,
		IsListed: req.IsListed,
		IsDraft:  req.IsDraft,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	respList := make([]dto.ItemResp, 0, len(items))
	for i := range items {
		respList = append(respList, toItemResp(&items[i]))
	}

	c.JSON(200, dto.ItemListResponse{
		Code:     0,
		Message:  "success",
		Data:     respList,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

// GetItem 获取商品详情
func (ctrl *ItemController) GetItem(c *gin.Context) {
	username := c.Query("username")
	sku := c.Param("sku")
	if username == "" || sku == "" {
		c.JSON(400, gin.H{"code": 400, "message": "username 和 sku 不能为空"})
		return
	}

	item, err := ctrl.itemRepo.GetByID(c.Request.Context(), model.ItemID(username, sku))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"code": 404, "message": "商品不存在"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"code": 0, "message": "success", "data": toItemResp(item)})
}

// ==================== 删除接口 ====================

// DeleteItem 删除商品，在架商品先撤下再删
func (ctrl *ItemController) DeleteItem(c *gin.Context) {
	username := c.Query("username")
	sku := c.Param("sku")
	if username == "" || sku == "" {
		c.JSON(400, gin.H{"code": 400, "message": "username 和 sku 不能为空"})
		return
	}

	ctx := c.Request.Context()
	item, err := ctrl.itemRepo.GetByID(ctx, model.ItemID(username, sku))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(404, gin.H{"code": 404, "message": "商品不存在"})
		return
	}
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	if item.IsListed && ctrl.publisher != nil {
		user, err := ctrl.userRepo.GetByUsername(ctx, username)
		if err == nil {
			params, paramsErr := ctrl.paramsRepo.Get(ctx)
			if paramsErr == nil {
				// 撤架失败不阻断删除，留下日志便于手工处理
				if err := ctrl.publisher.WithdrawItem(ctx, item, user, params); err != nil {
					log.Printf("[Item] Withdraw %s before delete failed: %v", item.ID, err)
				}
			}
		}
	}

	if err := ctrl.itemRepo.HardDelete(ctx, item.ID); err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "删除失败: " + err.Error()})
		return
	}
	c.JSON(200, gin.H{"code": 0, "message": "success"})
}

// ==================== 视图转换 ====================

func toItemResp(item *model.Item) dto.ItemResp {
	return dto.ItemResp{
		ID:             item.ID,
		Username:       item.Username,
		EbaySku:        item.EbaySku,
		OrgPlatform:    item.OrgPlatform,
		OrgURL:         item.OrgURL,
		OrgTitle:       item.OrgTitle,
		OrgPrice:       item.OrgPrice,
		EbayTitle:      item.EbayTitle,
		EbayCategory:   item.EbayCategory,
		ShippingYen:    item.ShippingYen,
		IsListed:       item.IsListed,
		IsOrgLive:      item.IsOrgLive,
		IsImageChanged: item.IsImageChanged,
		IsDraft:        item.IsDraft,
		DraftReason:    item.DraftReason,
		ImageUrls:      item.OrgImageUrls,
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
	}
}
