// Package routers 组装 HTTP 路由
package routers

import (
	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snapvault/vm-backup-service/internal/app"
	"github.com/snapvault/vm-backup-service/internal/middleware"
	"github.com/snapvault/vm-backup-service/internal/routers/api_router"
)

// NewRouter 创建 gin 引擎并注册全部 API 路由
func NewRouter(appContainer *app.App, uni *ut.UniversalTranslator) *gin.Engine {

	r := gin.New()

	// 运维端点不过业务中间件
	healthHandler := api_router.NewHealthHandler(appContainer)
	r.GET("/healthcheck", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.Use(middleware.LangWithTranslator(uni))
		api.Use(middleware.AccessLog())
		api.Use(middleware.RecoveryWithLogger(appContainer.Logger()))

		// 创建 Handlers（注入 App Container）
		scheduleHandler := api_router.NewScheduleHandler(appContainer)
		restoreHandler := api_router.NewRestoreHandler(appContainer)
		orphanHandler := api_router.NewOrphanHandler(appContainer)

		api.GET("/schedules", scheduleHandler.List)
		api.POST("/schedules", scheduleHandler.CreateOrUpdate)
		api.GET("/schedules/:id", scheduleHandler.Get)
		api.DELETE("/schedules/:id", scheduleHandler.Delete)

		api.POST("/backups", scheduleHandler.BackupNow)

		api.GET("/restore-points", restoreHandler.ListRestorePoints)
		api.POST("/restores", restoreHandler.Run)

		api.GET("/orphans", orphanHandler.List)
		api.DELETE("/orphans/clone", orphanHandler.DeleteClone)
		api.DELETE("/orphans/snapshot", orphanHandler.DeleteSnapshot)

		api.GET("/health", healthHandler.Check)
	}

	return r
}
