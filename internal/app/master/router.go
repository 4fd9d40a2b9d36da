/**
 * 路由:路由注册
 * @author: sun977
 * @date: 2025.08.29
 * @description: API路由注册与中间件装配
 * @func: Router
 */
package master

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chainscan/internal/config"
	fuzzhandler "chainscan/internal/handler/fuzz"
	reporthandler "chainscan/internal/handler/report"
	scanhandler "chainscan/internal/handler/scan"
	"chainscan/internal/model"
)

// Router 路由器
type Router struct {
	engine     *gin.Engine
	middleware *MiddlewareManager

	projectHandler   *scanhandler.ProjectHandler
	scanHandler      *scanhandler.ScanHandler
	generatorHandler *scanhandler.GeneratorHandler
	campaignHandler  *fuzzhandler.CampaignHandler
	reportHandler    *reporthandler.ReportHandler

	healthCheck func() map[string]string
	appCfg      *config.AppConfig
}

// NewRouter 创建路由器
func NewRouter(
	serverMode string,
	middleware *MiddlewareManager,
	projectHandler *scanhandler.ProjectHandler,
	scanHandler *scanhandler.ScanHandler,
	generatorHandler *scanhandler.GeneratorHandler,
	campaignHandler *fuzzhandler.CampaignHandler,
	reportHandler *reporthandler.ReportHandler,
	healthCheck func() map[string]string,
	appCfg *config.AppConfig,
) *Router {
	gin.SetMode(serverMode)
	return &Router{
		engine:           gin.New(),
		middleware:       middleware,
		projectHandler:   projectHandler,
		scanHandler:      scanHandler,
		generatorHandler: generatorHandler,
		campaignHandler:  campaignHandler,
		reportHandler:    reportHandler,
		healthCheck:      healthCheck,
		appCfg:           appCfg,
	}
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// SetupRoutes 注册全部路由
func (r *Router) SetupRoutes() {
	r.engine.Use(
		r.middleware.GinRecoveryMiddleware(),
		r.middleware.GinLoggingMiddleware(),
		r.middleware.GinCORSMiddleware(),
		r.middleware.GinSecurityHeadersMiddleware(),
		r.middleware.GinRateLimitMiddleware(),
	)

	r.engine.GET("/health", r.handleHealth)

	api := r.engine.Group("/api")
	{
		projects := api.Group("/projects")
		{
			projects.POST("", r.projectHandler.CreateProject)
			projects.GET("", r.projectHandler.ListProjects)
			projects.GET("/:id", r.projectHandler.GetProject)
			projects.DELETE("/:id", r.projectHandler.DeleteProject)
		}

		scans := api.Group("/scans")
		{
			scans.POST("", r.scanHandler.StartScan)
			scans.POST("/quick", r.scanHandler.QuickScan)
			scans.GET("", r.scanHandler.ListScans)
			scans.GET("/:id", r.scanHandler.GetScan)
			scans.POST("/:id/cancel", r.scanHandler.CancelScan)
		}

		contracts := api.Group("/contracts")
		{
			contracts.POST("/generate-and-scan", r.generatorHandler.GenerateAndScan)
		}

		reports := api.Group("/reports")
		{
			reports.GET("/:scan_id/json", r.reportHandler.ExportScanJSON)
			reports.GET("/:scan_id/sarif", r.reportHandler.ExportScanSARIF)
			reports.GET("/campaigns/:campaign_id/json", r.reportHandler.ExportCampaignJSON)
		}

		campaigns := api.Group("/campaigns")
		{
			campaigns.POST("", r.campaignHandler.CreateCampaign)
			campaigns.GET("", r.campaignHandler.ListCampaigns)
			campaigns.POST("/from-scan/:scan_id", r.campaignHandler.BootstrapFromScan)
			campaigns.GET("/:id", r.campaignHandler.GetCampaign)
			campaigns.POST("/:id/status", r.campaignHandler.TransitionCampaign)
			campaigns.POST("/:id/seeds", r.campaignHandler.AddSeed)
			campaigns.POST("/:id/coverage", r.campaignHandler.AddCoverage)
			campaigns.POST("/:id/crashes", r.campaignHandler.ReportCrash)
		}
	}
}

// handleHealth 健康检查
// 汇总MySQL和Redis的连通状态，任一依赖异常时返回503
func (r *Router) handleHealth(c *gin.Context) {
	checks := map[string]string{}
	if r.healthCheck != nil {
		checks = r.healthCheck()
	}

	status := http.StatusOK
	overall := "healthy"
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
			break
		}
	}

	c.JSON(status, model.APIResponse{
		Code:    status,
		Status:  overall,
		Message: "health check",
		Data: map[string]interface{}{
			"app":     r.appCfg.Name,
			"version": r.appCfg.Version,
			"checks":  checks,
		},
	})
}
