package router

import (
	"github.com/gin-gonic/gin"

	"ebay_dev_v1_202608/internal/controller"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	itemCtl *controller.ItemController,
	scanCtl *controller.ScanController) {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API 路由组
	api := r.Group("/api")
	{
		// items 商品管理
		items := api.Group("/items")
		{
			// POST /api/items/register
			items.POST("/register", itemCtl.Register)
			// GET /api/items
			items.GET("", itemCtl.GetItems)
			// GET /api/items/:sku?username=
			items.GET("/:sku", itemCtl.GetItem)
			// DELETE /api/items/:sku?username=
			items.DELETE("/:sku", itemCtl.DeleteItem)
		}

		// scan 巡检
		scan := api.Group("/scan")
		{
			// POST /api/scan/trigger
			scan.POST("/trigger", scanCtl.Trigger)
			// GET /api/scan/status
			scan.GET("/status", scanCtl.Status)
			// GET /api/scan/history?limit=
			scan.GET("/history", scanCtl.History)
		}
	}
}
