package api

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册 /api 下的全部路由
func RegisterRoutes(r gin.IRouter, businesses *BusinessHandler, sync *SyncHandler, platforms *PlatformHandler) {
	g := r.Group("/api")

	g.POST("/businesses", businesses.SaveBusiness)
	g.GET("/businesses/:business_id", businesses.GetBusiness)

	g.POST("/sync/submit", sync.Submit)
	g.GET("/sync/batches/:batch_id", sync.BatchStatus)
	g.GET("/sync/batches/:batch_id/report", sync.BatchReport)
	g.POST("/sync/batches/:batch_id/cancel", sync.CancelBatch)
	g.GET("/sync/mappings/:business_id/:platform", sync.GetMapping)
	g.DELETE("/sync/mappings/:business_id/:platform", sync.DeleteListing)
	g.GET("/sync/mappings/:business_id/:platform/transitions", sync.Transitions)
	g.GET("/sync/listings/:business_id/:platform/:operation", sync.Invoke)
	g.POST("/sync/verify", sync.Verify)

	g.GET("/platforms", platforms.ListPlatforms)
	g.POST("/platforms/rank", platforms.RankPlatforms)
}
