package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ==================== 测试夹具 ====================

const mercItemPage = `<html><body>
<div id="main">
<article>
  <div data-testid="image-0"><img src="https://static.mercdn.net/item/detail/orig/photos/m111_1.jpg"></div>
  <div data-testid="image-1"><img src="https://static.mercdn.net/item/detail/orig/photos/m111_2.jpg"></div>
</article>
<div id="item-info">
  <h1>カルビー 野球カード ステッカー セット</h1>
  <div data-testid="price"><span>¥</span><span>12,800</span></div>
  <div data-testid="description">昭和レトロのステッカーセットです。バラ売り不可。</div>
  <span data-testid="配送料の負担">送料込み(出品者負担)</span>
  <span data-testid="配送の方法">らくらくメルカリ便</span>
  <span data-testid="発送元の地域">東京都</span>
  <span data-testid="発送までの日数">1~2日で発送</span>
  <span data-testid="商品の状態">目立った傷や汚れなし</span>
</div>
<a data-location="item_details:seller_info" href="https://jp.mercari.com/user/profile/123456">出品者</a>
<div class="merUserObject">
  <div class="merRating" aria-label="4.9"><span class="count__abc123">357</span></div>
</div>
</div>
</body></html>`

const mercSoldOutPage = `<html><body>
<div id="main">
<article>
  <div data-testid="image-0" aria-label="売り切れ"><img src="https://static.mercdn.net/item/detail/orig/photos/m111_1.jpg"></div>
</article>
<div id="item-info">
  <h1>カルビー 野球カード ステッカー セット</h1>
  <div data-testid="price"><span>¥</span><span>12,800</span></div>
</div>
</div>
</body></html>`

const mercEmptyPage = `<html><body>
<div id="main"><div class="merEmptyState">ページが見つかりません</div></div>
</body></html>`

const mshopProductPage = `<html><body>
<div id="main">
<article>
  <div data-testid="image-0"><img src="https://mshop.example/photos/p1.jpg"></div>
</article>
<div id="product-info">
  <h1>限定 ヴィンテージ ステッカー</h1>
  <div data-testid="product-price"><span>¥</span><span>5,400</span></div>
  <div data-testid="product-description">ショップ限定品です。</div>
  <span data-testid="配送料の負担">着払い(購入者負担)</span>
  <span data-testid="配送の方法">未定</span>
  <span data-testid="発送元の地域">大阪府</span>
  <span data-testid="発送までの日数">2~3日で発送</span>
</div>
<a data-location="item_details:shop_info" href="/shops/xyz789">ショップ</a>
</div>
</body></html>`

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// ==================== 单元测试 ====================

func TestParseMerc(t *testing.T) {
	result := parseMerc(docFromHTML(t, mercItemPage))

	if !result.InStock() {
		t.Fatalf("stockStatus = %s, want instock", result.StockStatus)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	core := result.StockData.Core
	if core.Title != "カルビー 野球カード ステッカー セット" {
		t.Errorf("title = %s", core.Title)
	}
	// 千分位逗号应被剥掉
	if core.Price != 12800 {
		t.Errorf("price = %v, want 12800", core.Price)
	}
	if len(core.ImageUrls) != 2 {
		t.Errorf("imageUrls = %d, want 2", len(core.ImageUrls))
	}

	extra := result.StockData.Extra
	if extra.IsPayOnDelivery == nil || *extra.IsPayOnDelivery {
		t.Errorf("isPayOnDelivery = %v, want false", extra.IsPayOnDelivery)
	}
	if extra.ShippedFrom != "東京都" {
		t.Errorf("shippedFrom = %s", extra.ShippedFrom)
	}
	if extra.ShippingMethod != "らくらくメルカリ便" {
		t.Errorf("shippingMethod = %s", extra.ShippingMethod)
	}
	if extra.ShippedWithin != "1~2日で発送" {
		t.Errorf("shippedWithin = %s", extra.ShippedWithin)
	}
	if extra.ItemCondition != "目立った傷や汚れなし" {
		t.Errorf("itemCondition = %s", extra.ItemCondition)
	}
	// 绝对链接只保留路径部分
	if extra.SellerID != "/user/profile/123456" {
		t.Errorf("sellerId = %s", extra.SellerID)
	}
	if extra.RateScore == nil || *extra.RateScore != 4.9 {
		t.Errorf("rateScore = %v, want 4.9", extra.RateScore)
	}
	if extra.RateCount == nil || *extra.RateCount != 357 {
		t.Errorf("rateCount = %v, want 357", extra.RateCount)
	}
}

func TestParseMerc_SoldOut(t *testing.T) {
	result := parseMerc(docFromHTML(t, mercSoldOutPage))

	if result.InStock() {
		t.Error("首图带売り切れ水印应判定为已售出")
	}
	if result.StockData != nil {
		t.Error("已售出不应携带快照")
	}
}

func TestParseMerc_EmptyPage(t *testing.T) {
	result := parseMerc(docFromHTML(t, mercEmptyPage))

	if result.InStock() {
		t.Error("空页面占位应判定为已下架")
	}
}

func TestParseMerc_IncompleteSnapshot(t *testing.T) {
	// 去掉发货地字段，校验应报出缺失项
	html := strings.Replace(mercItemPage, `<span data-testid="発送元の地域">東京都</span>`, "", 1)
	result := parseMerc(docFromHTML(t, html))

	err := result.Validate()
	if err == nil {
		t.Fatal("缺字段的快照应校验失败")
	}
	if !strings.Contains(err.Error(), "shippedFrom") {
		t.Errorf("error = %v, 应点名 shippedFrom", err)
	}
}

func TestParseMshop(t *testing.T) {
	result := parseMshop(docFromHTML(t, mshopProductPage))

	if !result.InStock() {
		t.Fatalf("stockStatus = %s, want instock", result.StockStatus)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	core := result.StockData.Core
	if core.Price != 5400 {
		t.Errorf("price = %v, want 5400", core.Price)
	}

	extra := result.StockData.Extra
	if extra.IsPayOnDelivery == nil || !*extra.IsPayOnDelivery {
		t.Errorf("isPayOnDelivery = %v, want true", extra.IsPayOnDelivery)
	}
	if extra.SellerID != "/shops/xyz789" {
		t.Errorf("sellerId = %s", extra.SellerID)
	}
	// 店铺页没有评分区块
	if extra.RateScore != nil || extra.RateCount != nil {
		t.Errorf("rating = %v/%v, want nil/nil", extra.RateScore, extra.RateCount)
	}
}

func TestScraperService_Scrape_UnknownPlatform(t *testing.T) {
	svc := NewScraperService(nil)

	_, err := svc.Scrape(context.Background(), "yahoo", "https://example.com/item/1")
	if !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("error = %v, want ErrUnsupportedURL", err)
	}
}
