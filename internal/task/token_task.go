package task

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/service"
)

// TokenTask eBay 访问令牌保活
// 访问令牌两小时有效，提前批量续期可以避免巡检和注册流程在请求路径上等待换token
type TokenTask struct {
	UserRepo    repository.UserRepository
	ParamsRepo  repository.ParamsRepository
	EbayService *service.EbayService
	Cron        *cron.Cron

	// 控制并发刷新的数量，防止触发 eBay 身份端点限流
	concurrencyLimit int
	sleepTime        time.Duration
}

func NewTokenTask(userRepo repository.UserRepository, paramsRepo repository.ParamsRepository, ebayService *service.EbayService) *TokenTask {
	return &TokenTask{
		UserRepo:         userRepo,
		ParamsRepo:       paramsRepo,
		EbayService:      ebayService,
		Cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		concurrencyLimit: 10,
		sleepTime:        50 * time.Millisecond, // 每个协程启动间隔，平滑波峰
	}
}

// Start 启动定时任务
func (t *TokenTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		log.Println("[Task] 服务启动，正在执行首次 Token 检查...")
		t.refreshJob(ctx)
	}()

	// 定时策略
	_, err := t.Cron.AddFunc("0 0/40 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		t.refreshJob(ctx)
	})

	if err != nil {
		log.Fatalf("无法启动 Token 定时任务: %v", err)
	}

	t.Cron.Start()
	log.Println("Token 保活任务已启动 (每40分钟检查一次)")
}

// Stop 停止定时任务
func (t *TokenTask) Stop() {
	t.Cron.Stop()
}

// 自动刷新逻辑
func (t *TokenTask) refreshJob(ctx context.Context) {
	params, err := t.ParamsRepo.Get(ctx)
	if err != nil {
		log.Printf("[Cron] 全局参数读取失败: %v", err)
		return
	}

	// 一小时内到期的都提前续上
	users, err := t.UserRepo.FindExpiring(ctx, time.Now().Add(time.Hour))
	if err != nil {
		log.Printf("[Cron] 用户令牌过期状态查询失败: %v", err)
		return
	}

	// 1. 定义信号量通道，容量即为并发上限
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	log.Printf("[Cron] 开始处理 %d 个用户的 Token 刷新，并发上限: %d", len(users), t.concurrencyLimit)

	for _, user := range users {
		// 检查上下文是否已取消（超时处理）
		select {
		case <-ctx.Done():
			log.Println("[Cron] 任务超时停止")
			return
		default:
		}

		// 2. 获取信号量（如果已满则阻塞在此，起到限流作用）
		sem <- struct{}{}
		wg.Add(1)

		// 3. 平滑波峰
		time.Sleep(t.sleepTime)

		go func(u model.User) {
			defer wg.Done()
			defer func() { <-sem }() // 任务结束释放信号量

			// 执行核心业务
			if _, err := t.EbayService.GetAccessToken(ctx, &u, params); err != nil {
				// 日志仅记录，不中断其他协程
				log.Printf("[Cron] 用户 [%s] 刷新失败: %v", u.Username, err)
			}
		}(user)
	}

	// 4. 等待所有 Goroutine 完成
	wg.Wait()
	log.Println("[Cron] 本轮 Token 刷新任务完成")
}
