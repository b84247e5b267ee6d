package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"ebay_dev_v1_202608/internal/controller"
	"ebay_dev_v1_202608/internal/model"
	"ebay_dev_v1_202608/internal/repository"
	"ebay_dev_v1_202608/internal/router"
	"ebay_dev_v1_202608/internal/service"
	"ebay_dev_v1_202608/internal/task"
	"ebay_dev_v1_202608/pkg/database"
	"ebay_dev_v1_202608/pkg/net"
)

func main() {
	// 1. 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用进程环境变量")
	}

	// 2. 初始化数据库
	db := initDatabase()

	// 3. 初始化依赖
	deps := initDependencies(db)

	// 4. 启动定时任务
	initTasks(deps)

	// 5. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Item, deps.Controllers.Scan)

	// 6. 启动服务
	startServer(r, deps)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Tasks       *Tasks
	Controllers *Controllers
}

// Repositories 仓库集合
type Repositories struct {
	Item    repository.ItemRepository
	User    repository.UserRepository
	Params  repository.ParamsRepository
	ScanRun repository.ScanRunRepository
}

// Services 服务集合
type Services struct {
	Eligibility *service.EligibilityService
	Shipping    *service.ShippingService
	Taxonomy    *service.TaxonomyService
	Composer    *service.ComposerService
	AI          *service.AIService
	Ebay        *service.EbayService
	Scraper     *service.ScraperService
	Inventory   *service.InventoryService
	Register    *service.RegisterService
}

// Tasks 定时任务集合
type Tasks struct {
	Scan      *task.ScanTask
	Token     *task.TokenTask
	Partition *database.PartitionTask
}

// Controllers 控制器集合
type Controllers struct {
	Item *controller.ItemController
	Scan *controller.ScanController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
// scan_runs 走分区建表，其余表走 AutoMigrate
func initDatabase() *gorm.DB {
	dsn := getEnv("DATABASE_DSN",
		"host=localhost user=ebay_admin password=1234 dbname=ebay_arbitrage port=5432 sslmode=disable")
	db := database.InitDB(dsn)

	if err := database.QuickInit(db, []interface{}{
		&model.Item{},
		&model.User{},
		&model.AppParams{},
	}); err != nil {
		log.Fatalf("数据库初始化失败: %v", err)
	}
	return db
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Item:    repository.NewItemRepository(db),
		User:    repository.NewUserRepository(db),
		Params:  repository.NewParamsRepository(db),
		ScanRun: repository.NewScanRunRepository(db),
	}

	// -------- 基础服务 --------
	store, err := service.NewS3ObjectStore(&service.TaxonomyConfig{
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", "us-east-1"),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	})
	if err != nil {
		log.Fatalf("词库存储初始化失败: %v", err)
	}

	rotator := net.NewRotator(splitEnvList("PROXY_ENDPOINTS"), nil)

	// -------- 业务服务 --------
	services := &Services{
		Eligibility: service.NewEligibilityService(),
		Shipping:    service.NewShippingService(),
		Taxonomy:    service.NewTaxonomyService(store, getEnv("TAXONOMY_PREFIX", "taxonomy")),
		AI: service.NewAIService(&service.AIConfig{
			ApiKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", ""),
		}),
		Ebay:    service.NewEbayService(&service.EbayConfig{}, repos.User),
		Scraper: service.NewScraperService(rotator),
	}
	services.Composer = service.NewComposerService(services.Taxonomy, services.Shipping)
	services.Inventory = service.NewInventoryService(
		repos.Item, repos.User, repos.Params,
		services.Scraper, services.Ebay, services.Eligibility,
	)
	services.Register = service.NewRegisterService(
		repos.Item, repos.User, repos.Params,
		services.Scraper, services.AI, services.Composer,
		services.Taxonomy, services.Ebay, services.Eligibility,
	)

	// -------- Task 层 --------
	tasks := &Tasks{
		Scan:      task.NewScanTask(services.Inventory, repos.ScanRun),
		Token:     task.NewTokenTask(repos.User, repos.Params, services.Ebay),
		Partition: database.NewPartitionTask(database.Global().GetManager()),
	}

	// -------- Controller 层 --------
	controllers := &Controllers{
		Item: controller.NewItemController(
			services.Register, repos.Item, repos.User, repos.Params, services.Ebay,
		),
		Scan: controller.NewScanController(tasks.Scan, repos.ScanRun),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Tasks:       tasks,
		Controllers: controllers,
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	deps.Tasks.Token.Start()
	deps.Tasks.Scan.Start()
	deps.Tasks.Partition.Start()
	log.Println("定时任务已启动")
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, deps *Dependencies) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 先停任务与在途流水线，再关 HTTP
	deps.Tasks.Partition.Stop()
	deps.Tasks.Scan.Stop()
	deps.Tasks.Token.Stop()
	deps.Services.Register.Wait()
	deps.Services.Scraper.Shutdown()

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitEnvList 逗号分隔的环境变量转列表
func splitEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
