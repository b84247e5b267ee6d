package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/singleflight"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/pkg/net"
)

// ==================== 配置 ====================

const (
	// 页面元素等待上限
	elementWaitTimeout = 16 * time.Second

	// 一次采集最多尝试次数，失败后重启浏览器再试
	scrapeMaxAttempts = 2

	// 代理轮换器里浏览器 worker 的标识
	scraperWorkerKey = "scraper-browser"

	scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// ==================== 服务 ====================

// ScraperService 来源商品快照采集：chromedp 渲染页面，goquery 解析字段
// 浏览器惰性启动并跨请求复用，失败重试前会重启并轮换出口代理
type ScraperService struct {
	rotator net.Rotator
	group   singleflight.Group

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewScraperService 创建采集服务
func NewScraperService(rotator net.Rotator) *ScraperService {
	return &ScraperService{rotator: rotator}
}

// Scrape 采集来源商品快照
// 采集失败 (页面结构变化、超时等) 时重启浏览器后重试一次
func (s *ScraperService) Scrape(ctx context.Context, platform, url string) (*dto.ScrapeResult, error) {
	var parse func(*goquery.Document) *dto.ScrapeResult
	var waitSelectors []string
	switch platform {
	case model.PlatformMercari:
		parse = parseMerc
		waitSelectors = mercWaitSelectors
	case model.PlatformMercariShop:
		parse = parseMshop
		waitSelectors = mshopWaitSelectors
	default:
		return nil, fmt.Errorf("%w: unknown platform %s", ErrUnsupportedURL, platform)
	}

	var lastErr error
	for attempt := 1; attempt <= scrapeMaxAttempts; attempt++ {
		if attempt > 1 {
			log.Printf("[Scraper] Attempt %d for %s, restarting browser...", attempt, url)
			if err := s.Restart(ctx); err != nil {
				return nil, fmt.Errorf("browser restart failed: %v", err)
			}
		}

		html, err := s.fetchHTML(ctx, url, waitSelectors)
		if err != nil {
			lastErr = err
			continue
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			lastErr = err
			continue
		}

		result := parse(doc)
		if err := result.Validate(); err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrScrapeFailed, lastErr)
}

// Shutdown 关闭浏览器，进程退出前调用
func (s *ScraperService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.browserCtx = nil
}

// Restart 重启浏览器并轮换出口代理
func (s *ScraperService) Restart(ctx context.Context) error {
	s.Shutdown()
	if s.rotator != nil {
		if _, err := s.rotator.Rotate(ctx, scraperWorkerKey); err != nil {
			return err
		}
	}
	_, err := s.ensureBrowser()
	return err
}

// ==================== 浏览器生命周期 ====================

// ensureBrowser 惰性启动浏览器，singleflight 防止并发重复启动
func (s *ScraperService) ensureBrowser() (context.Context, error) {
	s.mu.Lock()
	running := s.browserCtx
	s.mu.Unlock()
	if running != nil {
		return running, nil
	}

	result, err, _ := s.group.Do("browser", func() (interface{}, error) {
		s.mu.Lock()
		if s.browserCtx != nil {
			ctx := s.browserCtx
			s.mu.Unlock()
			return ctx, nil
		}
		s.mu.Unlock()

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", "new"),
			chromedp.UserAgent(scraperUserAgent),
		)
		if s.rotator != nil {
			if proxy := s.rotator.Acquire(scraperWorkerKey); proxy != "" {
				opts = append(opts, chromedp.ProxyServer(proxy))
			}
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// 先跑一个空任务把浏览器真正拉起来
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			return nil, err
		}

		s.mu.Lock()
		s.browserCtx = browserCtx
		s.browserCancel = browserCancel
		s.allocCancel = allocCancel
		s.mu.Unlock()
		log.Println("[Scraper] Browser started")
		return browserCtx, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(context.Context), nil
}

// fetchHTML 打开页面，等待关键元素出现后返回完整 HTML
func (s *ScraperService) fetchHTML(ctx context.Context, url string, waitSelectors []string) (string, error) {
	browserCtx, err := s.ensureBrowser()
	if err != nil {
		return "", err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	tasks := []chromedp.Action{
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "ja-JP,ja;q=0.9,en-US;q=0.8",
		})),
		chromedp.Navigate(url),
	}
	for _, selector := range waitSelectors {
		tasks = append(tasks, waitAnyVisible(selector))
	}
	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	runCtx, runCancel := context.WithTimeout(tabCtx, 2*time.Minute)
	defer runCancel()
	if err := chromedp.Run(runCtx, tasks...); err != nil {
		return "", fmt.Errorf("navigate %s: %v", url, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return html, nil
}

// waitAnyVisible 等待若干选择器中的任意一个出现
// 售罄占位和正常内容共用一次等待，两者都没出现才算超时
func waitAnyVisible(selectors string) chromedp.Action {
	expr := fmt.Sprintf("document.querySelector(%q) != null", selectors)
	var found bool
	return chromedp.Poll(expr, &found, chromedp.WithPollingTimeout(elementWaitTimeout))
}

// ==================== 页面解析 ====================

// 失败占位和关键内容的组合等待：占位出现说明已下架，内容出现说明可解析
var mercWaitSelectors = []string{
	`#main div.merEmptyState, #item-info div[data-testid="price"]`,
	`#main div.merEmptyState, article div[data-testid="image-0"] img`,
	`#main div.merEmptyState, div.merUserObject`,
}

var mshopWaitSelectors = []string{
	`#main div.merEmptyState, #product-info div[data-testid="product-price"]`,
	`#main div.merEmptyState, article div[data-testid="image-0"] img`,
	`#main div.merEmptyState, div.merUserObject`,
}

// parseMerc 解析个人卖家商品页
func parseMerc(doc *goquery.Document) *dto.ScrapeResult {
	if soldOut(doc) {
		return &dto.ScrapeResult{StockStatus: model.StockStatusOutOfStock}
	}

	data := &dto.StockData{
		Core: dto.StockCore{
			Title:       strings.TrimSpace(doc.Find("#item-info h1").First().Text()),
			Description: strings.TrimSpace(doc.Find(`#item-info div[data-testid="description"]`).First().Text()),
			Price:       parsePrice(doc, `#item-info div[data-testid="price"] span`),
			ImageUrls:   parseImageUrls(doc),
		},
		Extra: model.StockExtra{
			IsPayOnDelivery: parsePayOnDelivery(doc, "#item-info"),
			ShippingMethod:  spanText(doc, `#item-info span[data-testid="配送の方法"]`),
			ShippedFrom:     spanText(doc, `#item-info span[data-testid="発送元の地域"]`),
			ShippedWithin:   spanText(doc, `#item-info span[data-testid="発送までの日数"]`),
			SellerID:        sellerPath(doc, `a[data-location="item_details:seller_info"]`),
			ItemCondition:   spanText(doc, `#item-info span[data-testid="商品の状態"]`),
		},
	}
	data.Extra.RateScore, data.Extra.RateCount = parseSellerRating(doc)
	return &dto.ScrapeResult{StockStatus: model.StockStatusInStock, StockData: data}
}

// parseMshop 解析店铺商品页，布局与个人页相近但容器和档位不同
func parseMshop(doc *goquery.Document) *dto.ScrapeResult {
	if soldOut(doc) {
		return &dto.ScrapeResult{StockStatus: model.StockStatusOutOfStock}
	}

	data := &dto.StockData{
		Core: dto.StockCore{
			Title:       strings.TrimSpace(doc.Find("#product-info h1").First().Text()),
			Description: strings.TrimSpace(doc.Find(`#product-info div[data-testid="product-description"]`).First().Text()),
			Price:       parsePrice(doc, `#product-info div[data-testid="product-price"] span`),
			ImageUrls:   parseImageUrls(doc),
		},
		Extra: model.StockExtra{
			IsPayOnDelivery: parsePayOnDelivery(doc, "#product-info"),
			ShippingMethod:  spanText(doc, `#product-info span[data-testid="配送の方法"]`),
			ShippedFrom:     spanText(doc, `#product-info span[data-testid="発送元の地域"]`),
			ShippedWithin:   spanText(doc, `#product-info span[data-testid="発送までの日数"]`),
			SellerID:        sellerPath(doc, `a[data-location="item_details:shop_info"]`),
			ItemCondition:   spanText(doc, `#product-info span[data-testid="商品の状態"]`),
		},
	}
	data.Extra.RateScore, data.Extra.RateCount = parseSellerRating(doc)
	return &dto.ScrapeResult{StockStatus: model.StockStatusInStock, StockData: data}
}

// soldOut 空页面占位或首图盖了"売り切れ"水印都视为已下架
func soldOut(doc *goquery.Document) bool {
	if doc.Find("#main div.merEmptyState").Length() > 0 {
		return true
	}
	return doc.Find(`article div[data-testid="image-0"][aria-label="売り切れ"]`).Length() > 0
}

func parseImageUrls(doc *goquery.Document) []string {
	var urls []string
	doc.Find(`article div[data-testid^="image-"] img`).Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// parsePrice 价格区域第二个 span 是数字本体，第一个是货币符号
func parsePrice(doc *goquery.Document, selector string) float64 {
	spans := doc.Find(selector)
	if spans.Length() < 2 {
		return 0
	}
	text := strings.ReplaceAll(strings.TrimSpace(spans.Eq(1).Text()), ",", "")
	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return price
}

func parsePayOnDelivery(doc *goquery.Document, container string) *bool {
	sel := doc.Find(container + ` span[data-testid="配送料の負担"]`)
	if sel.Length() == 0 {
		return nil
	}
	v := strings.Contains(sel.First().Text(), "着払い")
	return &v
}

func spanText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// sellerPath 卖家标识取链接的路径部分，如 /user/profile/123
func sellerPath(doc *goquery.Document, selector string) string {
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	// 绝对链接只保留 pathname
	if idx := strings.Index(href, "://"); idx >= 0 {
		rest := href[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			return rest[slash:]
		}
		return "/"
	}
	return href
}

// parseSellerRating 评分在 aria-label 上，评价数在 count__ 前缀的 span 里
// 店铺页可能没有评分区块，此时两者均为 nil
func parseSellerRating(doc *goquery.Document) (*float64, *int) {
	var score *float64
	var count *int

	rating := doc.Find("div.merUserObject div.merRating").First()
	if label, ok := rating.Attr("aria-label"); ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(label), 64); err == nil {
			score = &v
		}
	}

	countText := strings.TrimSpace(doc.Find(`div.merUserObject div.merRating span[class^="count__"]`).First().Text())
	if v, err := strconv.Atoi(countText); err == nil {
		count = &v
	}
	return score, count
}
